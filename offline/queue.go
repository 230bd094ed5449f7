// Package offline holds the client-side half of the score pipeline: a
// durable queue of score submissions made without connectivity and the
// reconciler that drains it when the app comes back online.
package offline

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PendingScore is a score submission not yet confirmed by the backend.
// The id doubles as the idempotency key: it is assigned once at
// enqueue time and survives every retry.
type PendingScore struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	GameID    string    `gorm:"size:64;index" json:"game_id"`
	Score     int       `json:"score"`
	Synced    bool      `gorm:"index" json:"synced"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreQueue is a sqlite-backed durable store. Every operation is a
// single-row transaction: a crash mid-enqueue leaves the record either
// fully persisted or absent, never half-written.
type ScoreQueue struct {
	db *gorm.DB
}

func OpenScoreQueue(path string) (*ScoreQueue, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open score queue: %w", err)
	}
	if err := db.AutoMigrate(&PendingScore{}); err != nil {
		return nil, fmt.Errorf("migrate score queue: %w", err)
	}
	return &ScoreQueue{db: db}, nil
}

// Enqueue stores a score for later sync and returns its id. The id
// combines a millisecond clock reading with random bits so it stays
// unique across process restarts.
func (q *ScoreQueue) Enqueue(gameID string, score int) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := fmt.Sprintf("%s_%d_%s", gameID, time.Now().UnixMilli(), hex.EncodeToString(buf))

	rec := PendingScore{ID: id, GameID: gameID, Score: score}
	if err := q.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("enqueue pending score: %w", err)
	}
	return id, nil
}

// ListUnsynced returns unconfirmed scores oldest-first.
func (q *ScoreQueue) ListUnsynced() ([]PendingScore, error) {
	var pending []PendingScore
	err := q.db.
		Where("synced = ?", false).
		Order("created_at ASC, id ASC").
		Find(&pending).Error
	return pending, err
}

func (q *ScoreQueue) MarkSynced(id string) error {
	res := q.db.Model(&PendingScore{}).Where("id = ?", id).Update("synced", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteSynced bulk-removes confirmed rows.
func (q *ScoreQueue) DeleteSynced() error {
	return q.db.Where("synced = ?", true).Delete(&PendingScore{}).Error
}

func (q *ScoreQueue) CountUnsynced() (int64, error) {
	var n int64
	err := q.db.Model(&PendingScore{}).Where("synced = ?", false).Count(&n).Error
	return n, err
}
