package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Opportunity struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID *uuid.UUID `gorm:"type:uuid;index;column:client_id" json:"client_id,omitempty"`
	OwnerID  uuid.UUID  `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Name     string     `gorm:"not null;column:name" json:"name"`
	Stage    string     `gorm:"not null;default:'new';column:stage" json:"stage"`
	Amount   float64    `gorm:"not null;default:0;column:amount" json:"amount"`

	// LastActivityAt is derived from next steps and logged communications.
	// Written only by the activity maintainer, never by callers.
	LastActivityAt time.Time `gorm:"not null;column:last_activity_at" json:"last_activity_at"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Opportunity) TableName() string { return "opportunity" }

func (o *Opportunity) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.LastActivityAt.IsZero() {
		o.LastActivityAt = time.Now().UTC()
	}
	return nil
}
