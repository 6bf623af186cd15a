package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task may be standalone or belong to a project; only project-bound tasks
// feed the project's derived activity timestamp.
type Task struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ProjectID  *uuid.UUID `gorm:"type:uuid;index;column:project_id" json:"project_id,omitempty"`
	Project    *Project   `gorm:"constraint:OnDelete:CASCADE;foreignKey:ProjectID;references:ID" json:"project,omitempty"`
	AssigneeID *uuid.UUID `gorm:"type:uuid;index;column:assignee_id" json:"assignee_id,omitempty"`
	CreatorID  uuid.UUID  `gorm:"type:uuid;not null;column:creator_id" json:"creator_id"`
	Title      string     `gorm:"not null;column:title" json:"title"`
	Notes      string     `gorm:"column:notes" json:"notes"`
	Status     string     `gorm:"not null;default:'open';column:status" json:"status"`
	DueDate    *time.Time `gorm:"column:due_date" json:"due_date,omitempty"`

	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TableName() string { return "task" }

func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
