package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Snapshot is the minimal structural contract an event payload must meet:
// an identifier, an entity tag, and the timestamp of the mutation it
// captures. Payloads are a closed union of the shapes below; nothing
// loosely typed travels through dispatch.
type Snapshot interface {
	SnapshotID() uuid.UUID
	SnapshotEntity() Entity
	SnapshotTime() time.Time
}

type ProjectSnapshot struct {
	ID             uuid.UUID  `json:"id"`
	ClientID       *uuid.UUID `json:"client_id,omitempty"`
	Name           string     `json:"name"`
	Status         string     `json:"status"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (s ProjectSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s ProjectSnapshot) SnapshotEntity() Entity  { return EntityProject }
func (s ProjectSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type TaskSnapshot struct {
	ID         uuid.UUID  `json:"id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	AssigneeID *uuid.UUID `json:"assignee_id,omitempty"`
	Title      string     `json:"title"`
	Status     string     `json:"status"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (s TaskSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s TaskSnapshot) SnapshotEntity() Entity  { return EntityTask }
func (s TaskSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type ClientSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	CompanyID *uuid.UUID `json:"company_id,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Status    string     `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s ClientSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s ClientSnapshot) SnapshotEntity() Entity  { return EntityClient }
func (s ClientSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type CompanySnapshot struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s CompanySnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s CompanySnapshot) SnapshotEntity() Entity  { return EntityCompany }
func (s CompanySnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type UserSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s UserSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s UserSnapshot) SnapshotEntity() Entity  { return EntityUser }
func (s UserSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type InvoiceSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Number    string     `json:"number"`
	Amount    float64    `json:"amount"`
	Status    string     `json:"status"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s InvoiceSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s InvoiceSnapshot) SnapshotEntity() Entity  { return EntityInvoice }
func (s InvoiceSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type ExpenseSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`
	Category  string     `json:"category"`
	Amount    float64    `json:"amount"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s ExpenseSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s ExpenseSnapshot) SnapshotEntity() Entity  { return EntityExpense }
func (s ExpenseSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type TicketSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	ClientID  *uuid.UUID `json:"client_id,omitempty"`
	Subject   string     `json:"subject"`
	Status    string     `json:"status"`
	Priority  string     `json:"priority"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s TicketSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s TicketSnapshot) SnapshotEntity() Entity  { return EntityTicket }
func (s TicketSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type PaymentSnapshot struct {
	ID        uuid.UUID  `json:"id"`
	InvoiceID *uuid.UUID `json:"invoice_id,omitempty"`
	Amount    float64    `json:"amount"`
	Method    string     `json:"method"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (s PaymentSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s PaymentSnapshot) SnapshotEntity() Entity  { return EntityPayment }
func (s PaymentSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

type NotificationSnapshot struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Kind      string    `json:"kind"`
	Read      bool      `json:"read"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s NotificationSnapshot) SnapshotID() uuid.UUID   { return s.ID }
func (s NotificationSnapshot) SnapshotEntity() Entity  { return EntityNotification }
func (s NotificationSnapshot) SnapshotTime() time.Time { return s.UpdatedAt }

// DecodeSnapshot parses raw into the payload shape registered for entity.
// Unknown entities and payloads missing an identifier or timestamp are
// rejected; this is the choke point that keeps the union closed.
func DecodeSnapshot(entity Entity, raw json.RawMessage) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	switch entity {
	case EntityProject:
		snap, err = decodeInto[ProjectSnapshot](raw)
	case EntityTask:
		snap, err = decodeInto[TaskSnapshot](raw)
	case EntityClient:
		snap, err = decodeInto[ClientSnapshot](raw)
	case EntityCompany:
		snap, err = decodeInto[CompanySnapshot](raw)
	case EntityUser:
		snap, err = decodeInto[UserSnapshot](raw)
	case EntityInvoice:
		snap, err = decodeInto[InvoiceSnapshot](raw)
	case EntityExpense:
		snap, err = decodeInto[ExpenseSnapshot](raw)
	case EntityTicket:
		snap, err = decodeInto[TicketSnapshot](raw)
	case EntityPayment:
		snap, err = decodeInto[PaymentSnapshot](raw)
	case EntityNotification:
		snap, err = decodeInto[NotificationSnapshot](raw)
	default:
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s snapshot: %w", entity, err)
	}
	if snap.SnapshotID() == uuid.Nil {
		return nil, fmt.Errorf("%s snapshot missing id", entity)
	}
	if snap.SnapshotTime().IsZero() {
		return nil, fmt.Errorf("%s snapshot missing timestamp", entity)
	}
	return snap, nil
}

func decodeInto[T Snapshot](raw json.RawMessage) (Snapshot, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
