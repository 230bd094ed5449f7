package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PushSubscription is one subscribed device: the push-service URL plus
// the key material needed to encrypt payloads for it. A user may hold
// several rows (multi-device); guests hold none.
type PushSubscription struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id"`
	Endpoint  string    `gorm:"size:512;uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `gorm:"size:128;not null" json:"p256dh"`
	Auth      string    `gorm:"size:32;not null" json:"auth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *PushSubscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
