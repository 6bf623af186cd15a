package aggregates

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/data/repos"
	"github.com/avelari/workbase-backend/internal/platform/dbctx"
	"github.com/avelari/workbase-backend/internal/platform/logger"
)

// ActivityMaintainer keeps one parent's derived last-activity timestamp
// consistent with its child records. Both entry points must run inside
// the transaction of the triggering child mutation; dbc.Tx is required,
// its absence is a programming error, not a recoverable condition.
//
// OnChildUpserted takes the incremental shortcut: a created or updated
// child's own timestamp is necessarily the newest fact, so
// max(current, childTS) is correct without a scan. OnChildDeleted cannot
// assume the deleted child held the maximum and performs the full
// recompute over every remaining child relation plus the parent's own
// updated_at. The recompute writes its result unconditionally, which
// makes it idempotent whether or not the deleted child was the maximum.
type ActivityMaintainer interface {
	OnChildUpserted(dbc dbctx.Context, parentID uuid.UUID, childTS time.Time) error
	OnChildDeleted(dbc dbctx.Context, parentID uuid.UUID) error
}

type projectActivity struct {
	log      *logger.Logger
	projects repos.ProjectRepo
	tasks    repos.TaskRepo
}

// NewProjectActivity maintains project.last_activity_at from the
// project's tasks.
func NewProjectActivity(log *logger.Logger, projects repos.ProjectRepo, tasks repos.TaskRepo) ActivityMaintainer {
	return &projectActivity{
		log:      log.With("aggregate", "ProjectActivity"),
		projects: projects,
		tasks:    tasks,
	}
}

func (a *projectActivity) OnChildUpserted(dbc dbctx.Context, projectID uuid.UUID, childTS time.Time) error {
	if err := requireTx(dbc); err != nil {
		return fmt.Errorf("project activity upsert: %w", err)
	}
	project, err := a.projects.LockByID(dbc, projectID)
	if err != nil {
		return fmt.Errorf("project activity upsert: lock project %s: %w", projectID, err)
	}
	if !childTS.After(project.LastActivityAt) {
		return nil
	}
	if err := a.projects.SetLastActivity(dbc, projectID, childTS); err != nil {
		return fmt.Errorf("project activity upsert: write last_activity_at: %w", err)
	}
	return nil
}

func (a *projectActivity) OnChildDeleted(dbc dbctx.Context, projectID uuid.UUID) error {
	if err := requireTx(dbc); err != nil {
		return fmt.Errorf("project activity recompute: %w", err)
	}
	project, err := a.projects.LockByID(dbc, projectID)
	if err != nil {
		return fmt.Errorf("project activity recompute: lock project %s: %w", projectID, err)
	}
	latest := project.UpdatedAt
	taskTS, err := a.tasks.LatestUpdatedAtByProject(dbc, projectID)
	if err != nil {
		return fmt.Errorf("project activity recompute: latest task: %w", err)
	}
	latest = maxTime(latest, taskTS)
	if err := a.projects.SetLastActivity(dbc, projectID, latest); err != nil {
		return fmt.Errorf("project activity recompute: write last_activity_at: %w", err)
	}
	a.log.Debug("project activity recomputed", "projectID", projectID, "lastActivityAt", latest)
	return nil
}

type opportunityActivity struct {
	log            *logger.Logger
	opportunities  repos.OpportunityRepo
	nextSteps      repos.NextStepRepo
	communications repos.CommunicationRepo
}

// NewOpportunityActivity maintains opportunity.last_activity_at from two
// child relations: next steps contribute their updated_at,
// communications their occurred_at.
func NewOpportunityActivity(
	log *logger.Logger,
	opportunities repos.OpportunityRepo,
	nextSteps repos.NextStepRepo,
	communications repos.CommunicationRepo,
) ActivityMaintainer {
	return &opportunityActivity{
		log:            log.With("aggregate", "OpportunityActivity"),
		opportunities:  opportunities,
		nextSteps:      nextSteps,
		communications: communications,
	}
}

func (a *opportunityActivity) OnChildUpserted(dbc dbctx.Context, opportunityID uuid.UUID, childTS time.Time) error {
	if err := requireTx(dbc); err != nil {
		return fmt.Errorf("opportunity activity upsert: %w", err)
	}
	opp, err := a.opportunities.LockByID(dbc, opportunityID)
	if err != nil {
		return fmt.Errorf("opportunity activity upsert: lock opportunity %s: %w", opportunityID, err)
	}
	if !childTS.After(opp.LastActivityAt) {
		return nil
	}
	if err := a.opportunities.SetLastActivity(dbc, opportunityID, childTS); err != nil {
		return fmt.Errorf("opportunity activity upsert: write last_activity_at: %w", err)
	}
	return nil
}

func (a *opportunityActivity) OnChildDeleted(dbc dbctx.Context, opportunityID uuid.UUID) error {
	if err := requireTx(dbc); err != nil {
		return fmt.Errorf("opportunity activity recompute: %w", err)
	}
	opp, err := a.opportunities.LockByID(dbc, opportunityID)
	if err != nil {
		return fmt.Errorf("opportunity activity recompute: lock opportunity %s: %w", opportunityID, err)
	}
	latest := opp.UpdatedAt
	stepTS, err := a.nextSteps.LatestUpdatedAtByOpportunity(dbc, opportunityID)
	if err != nil {
		return fmt.Errorf("opportunity activity recompute: latest next step: %w", err)
	}
	latest = maxTime(latest, stepTS)
	commTS, err := a.communications.LatestOccurredAtByOpportunity(dbc, opportunityID)
	if err != nil {
		return fmt.Errorf("opportunity activity recompute: latest communication: %w", err)
	}
	latest = maxTime(latest, commTS)
	if err := a.opportunities.SetLastActivity(dbc, opportunityID, latest); err != nil {
		return fmt.Errorf("opportunity activity recompute: write last_activity_at: %w", err)
	}
	a.log.Debug("opportunity activity recomputed", "opportunityID", opportunityID, "lastActivityAt", latest)
	return nil
}

func requireTx(dbc dbctx.Context) error {
	if dbc.Tx == nil {
		return fmt.Errorf("maintainer requires the caller's transaction (dbc.Tx is nil)")
	}
	return nil
}

func maxTime(current time.Time, candidate *time.Time) time.Time {
	if candidate != nil && candidate.After(current) {
		return *candidate
	}
	return current
}
