package services

import (
	"fmt"

	"github.com/znehraks/mini-game-heaven/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// nemesisScanLimit bounds dethrone detection to the ten beaten scores
// closest to the new one. Rivalry is about near competitors, not the
// whole historical tail.
const nemesisScanLimit = 10

type NemesisService struct {
	db *gorm.DB
}

func NewNemesisService(db *gorm.DB) *NemesisService {
	return &NemesisService{db: db}
}

// DetectDethroned runs once per inserted score and queues one nemesis
// notification per distinct dethroned player that can receive push.
// Guests (no user id) are detected but never queued: there is no device
// identity to target. Returns (dethroned, queued, err).
//
// The trigger source delivers at least once, so a duplicate invocation
// may queue duplicate notifications. That is an accepted tradeoff; the
// detector stays stateless.
func (s *NemesisService) DetectDethroned(newScore models.Score) (int, int, error) {
	var beaten []models.Score
	err := s.db.
		Where("game_id = ? AND score < ?", newScore.GameID, newScore.Score).
		Order("score DESC").
		Limit(nemesisScanLimit).
		Find(&beaten).Error
	if err != nil {
		return 0, 0, fmt.Errorf("query dethroned scores: %w", err)
	}

	seen := make(map[string]struct{}, len(beaten))
	var queue []models.QueuedNotification
	dethroned := 0

	for _, old := range beaten {
		// Never notify the submitter about their own score. The
		// nickname check also covers guests colliding on name.
		if old.UserID != nil && newScore.UserID != nil && *old.UserID == *newScore.UserID {
			continue
		}
		if old.Nickname == newScore.Nickname {
			continue
		}

		key := old.Nickname
		if old.UserID != nil {
			key = *old.UserID
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		dethroned++

		if old.UserID == nil {
			continue
		}
		queue = append(queue, models.QueuedNotification{
			UserID: old.UserID,
			Type:   "nemesis",
			Title:  "Your throne is under attack!",
			Body:   fmt.Sprintf("%s just beat your score of %d with %d!", newScore.Nickname, old.Score, newScore.Score),
			Data: datatypes.JSONMap{
				"game_id":    newScore.GameID,
				"challenger": newScore.Nickname,
				"old_score":  old.Score,
				"new_score":  newScore.Score,
			},
			Status: models.NotificationPending,
		})
	}

	if len(queue) == 0 {
		return dethroned, 0, nil
	}
	if err := s.db.Create(&queue).Error; err != nil {
		return dethroned, 0, fmt.Errorf("queue notifications: %w", err)
	}
	return dethroned, len(queue), nil
}
