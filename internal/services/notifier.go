package services

import (
	"github.com/google/uuid"

	"github.com/avelari/workbase-backend/internal/realtime"
)

// Publisher is the slice of the broadcast dispatcher the mutation
// services depend on. Both calls are fire-and-forget: they enqueue and
// return, and per-subscriber failures never reach the mutation flow.
type Publisher interface {
	Publish(ev realtime.MutationEvent, excludeIdentity uuid.UUID)
	PublishToAll(ev realtime.MutationEvent)
}

// Deliverer pushes an already-persisted notification to its target's
// live connections, best-effort.
type Deliverer interface {
	Deliver(ev realtime.NotificationEvent)
}

var (
	_ Publisher = (*realtime.Dispatcher)(nil)
	_ Deliverer = (*realtime.NotificationDelivery)(nil)
)
