package realtime

import (
	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/platform/logger"
)

// Dispatcher fans mutation events out to registered connections. Publish
// is fire-and-forget relative to the mutation that produced the event:
// it enqueues onto per-connection buffers and returns; it never reports
// delivery problems back to the caller.
type Dispatcher struct {
	reg *Registry
	log *logger.Logger
}

func NewDispatcher(reg *Registry, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		reg: reg,
		log: log.With("component", "Dispatcher"),
	}
}

// Publish delivers ev to every registered connection not owned by
// excludeIdentity. Pass the originating identity to keep an actor's own
// clients from re-applying a change they already made locally.
func (d *Dispatcher) Publish(ev MutationEvent, excludeIdentity uuid.UUID) {
	d.fanOut(ev, excludeIdentity, true)
}

// PublishToAll delivers ev to every registered connection, the origin's
// included. Used for events with no meaningful originator, such as
// system-wide creations everyone should see.
func (d *Dispatcher) PublishToAll(ev MutationEvent) {
	d.fanOut(ev, uuid.Nil, false)
}

func (d *Dispatcher) fanOut(ev MutationEvent, exclude uuid.UUID, excludeSet bool) {
	frame, err := EncodeDataChange(ev)
	if err != nil {
		d.log.Error("encode data_change failed", "entity", ev.Entity, "operation", ev.Operation, "error", err)
		return
	}
	for _, c := range d.reg.AllConnections() {
		if excludeSet && c.UserID == exclude {
			continue
		}
		deliverFrame(d.reg, d.log, c, frame, "data_change")
	}
}

// deliverFrame isolates one subscriber's failure from the rest of a
// fan-out: log, deregister, close, move on.
func deliverFrame(reg *Registry, log *logger.Logger, c *Conn, frame []byte, kind string) {
	if err := c.Enqueue(frame); err != nil {
		log.Warn("delivery failed, dropping connection",
			"frame", kind, "connID", c.ID, "userID", c.UserID, "error", err)
		reg.Deregister(c.ID)
		c.Close()
	}
}
