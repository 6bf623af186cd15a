package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/platform/logger"
)

// NotificationEvent is the live-push view of a persisted notification.
// The row is always written before Deliver is called; the push is an
// optimization over the client eventually pulling it.
type NotificationEvent struct {
	ID        uuid.UUID
	Target    uuid.UUID
	Kind      string
	Title     string
	Message   string
	Data      json.RawMessage
	CreatedAt time.Time
	Read      bool
}

// NotificationDelivery pushes notifications to one identity's live
// connections. Best-effort, at most once per connection; with no
// connections open it does nothing, and that is not an error.
type NotificationDelivery struct {
	reg *Registry
	log *logger.Logger
}

func NewNotificationDelivery(reg *Registry, log *logger.Logger) *NotificationDelivery {
	return &NotificationDelivery{
		reg: reg,
		log: log.With("component", "NotificationDelivery"),
	}
}

func (d *NotificationDelivery) Deliver(ev NotificationEvent) {
	conns := d.reg.ConnectionsFor(ev.Target)
	if len(conns) == 0 {
		d.log.Debug("no live connections for target, skipping push", "userID", ev.Target)
		return
	}
	frame, err := EncodeNotification(ev)
	if err != nil {
		d.log.Error("encode notification failed", "notificationID", ev.ID, "error", err)
		return
	}
	for _, c := range conns {
		deliverFrame(d.reg, d.log, c, frame, "notification")
	}
}
