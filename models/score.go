package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Score is append-only: rows are inserted once and never updated.
type Score struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    *string   `gorm:"type:uuid;index" json:"user_id"`
	GameID    string    `gorm:"size:64;not null;index:idx_scores_game_score" json:"game_id"`
	Nickname  string    `gorm:"size:32;not null" json:"nickname"`
	Score     int       `gorm:"not null;index:idx_scores_game_score" json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Score) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
