package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpportunityCommunication is a logged touchpoint (call, email, meeting).
// Its occurred_at, not its row timestamps, contributes to the owning
// opportunity's last_activity_at: a communication logged today may have
// happened last week.
type OpportunityCommunication struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	OpportunityID uuid.UUID    `gorm:"type:uuid;not null;index;column:opportunity_id" json:"opportunity_id"`
	Opportunity   *Opportunity `gorm:"constraint:OnDelete:CASCADE;foreignKey:OpportunityID;references:ID" json:"opportunity,omitempty"`
	Kind          string       `gorm:"not null;column:kind" json:"kind"`
	Summary       string       `gorm:"column:summary" json:"summary"`
	OccurredAt    time.Time    `gorm:"not null;index;column:occurred_at" json:"occurred_at"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (OpportunityCommunication) TableName() string { return "opportunity_communication" }

func (c *OpportunityCommunication) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
