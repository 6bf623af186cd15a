package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification is the durable record behind live pushes. Delivery over an
// open connection is an optimization; this row is the system of record and
// is what pull-based retrieval reads.
type Notification struct {
	ID      uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID  uuid.UUID      `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	User    *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	Kind    string         `gorm:"not null;column:kind" json:"kind"`
	Title   string         `gorm:"not null;column:title" json:"title"`
	Message string         `gorm:"column:message" json:"message"`
	Data    datatypes.JSON `gorm:"column:data;type:jsonb" json:"data,omitempty"`
	Read    bool           `gorm:"not null;default:false;column:read" json:"read"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Notification) TableName() string { return "notification" }

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
