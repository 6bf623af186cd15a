package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OpportunityNextStep contributes its updated_at to the owning
// opportunity's last_activity_at.
type OpportunityNextStep struct {
	ID            uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	OpportunityID uuid.UUID    `gorm:"type:uuid;not null;index;column:opportunity_id" json:"opportunity_id"`
	Opportunity   *Opportunity `gorm:"constraint:OnDelete:CASCADE;foreignKey:OpportunityID;references:ID" json:"opportunity,omitempty"`
	Description   string       `gorm:"not null;column:description" json:"description"`
	DueDate       *time.Time   `gorm:"column:due_date" json:"due_date,omitempty"`
	Done          bool         `gorm:"not null;default:false;column:done" json:"done"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}

func (OpportunityNextStep) TableName() string { return "opportunity_next_step" }

func (s *OpportunityNextStep) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
