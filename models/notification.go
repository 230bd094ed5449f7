package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification queue statuses. Items start pending, are claimed as
// processing by exactly one delivery pass, and end sent or failed.
const (
	NotificationPending    = "pending"
	NotificationProcessing = "processing"
	NotificationSent       = "sent"
	NotificationFailed     = "failed"
)

type QueuedNotification struct {
	ID           string            `gorm:"type:uuid;primaryKey" json:"id"`
	UserID       *string           `gorm:"type:uuid;index" json:"user_id"`
	Type         string            `gorm:"size:32;not null" json:"type"`
	Title        string            `gorm:"size:128;not null" json:"title"`
	Body         string            `gorm:"type:text" json:"body"`
	Data         datatypes.JSONMap `json:"data"`
	Status       string            `gorm:"size:16;default:pending;index" json:"status"`
	ErrorMessage string            `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	ProcessedAt  *time.Time        `json:"processed_at,omitempty"`
}

func (n *QueuedNotification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
