package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Project struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID    *uuid.UUID `gorm:"type:uuid;index;column:client_id" json:"client_id,omitempty"`
	OwnerID     uuid.UUID  `gorm:"type:uuid;not null;index;column:owner_id" json:"owner_id"`
	Name        string     `gorm:"not null;column:name" json:"name"`
	Description string     `gorm:"column:description" json:"description"`
	Status      string     `gorm:"not null;default:'active';column:status" json:"status"`

	// LastActivityAt is derived from the project's tasks. It is written
	// only by the activity maintainer, inside the transaction of the
	// child mutation that moved it.
	LastActivityAt time.Time `gorm:"not null;column:last_activity_at" json:"last_activity_at"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Project) TableName() string { return "project" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.LastActivityAt.IsZero() {
		p.LastActivityAt = time.Now().UTC()
	}
	return nil
}
