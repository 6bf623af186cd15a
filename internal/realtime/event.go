package realtime

import (
	"time"

	"github.com/google/uuid"
)

// Entity names every record type whose mutations are broadcast to live
// connections. The set is closed: dashboards key their cached queries off
// these tags, so an unknown tag has no subscriber that could use it.
type Entity string

const (
	EntityProject      Entity = "project"
	EntityTask         Entity = "task"
	EntityClient       Entity = "client"
	EntityCompany      Entity = "company"
	EntityUser         Entity = "user"
	EntityInvoice      Entity = "invoice"
	EntityExpense      Entity = "expense"
	EntityTicket       Entity = "ticket"
	EntityPayment      Entity = "payment"
	EntityNotification Entity = "notification"
)

func (e Entity) Valid() bool {
	switch e {
	case EntityProject, EntityTask, EntityClient, EntityCompany, EntityUser,
		EntityInvoice, EntityExpense, EntityTicket, EntityPayment, EntityNotification:
		return true
	default:
		return false
	}
}

type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// MutationEvent is the ephemeral record handed to the dispatcher after a
// mutation commits. It is consumed once by fan-out and discarded.
type MutationEvent struct {
	Entity      Entity
	Operation   Operation
	Data        Snapshot
	Origin      uuid.UUID
	CommittedAt time.Time
}
