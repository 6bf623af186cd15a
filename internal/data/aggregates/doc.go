// Package aggregates owns the derived last-activity timestamps on parent
// records and the transaction boundary the rest of the write path runs
// in. Child mutations (tasks under a project, next steps and
// communications under an opportunity) call the maintainer inside their
// own transaction; the parent row is locked first, so concurrent child
// writes to the same parent serialize and every recompute sees a
// consistent snapshot. A failed recompute fails the whole transaction:
// a rejected write beats a silently wrong aggregate.
package aggregates
