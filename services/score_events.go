package services

import (
	"log"

	"github.com/znehraks/mini-game-heaven/models"
)

type scoreEventDeps struct {
	nemesis *NemesisService
	hub     *LeaderboardHub
}

var _scoreEvents scoreEventDeps

func InitScoreEvents(nemesis *NemesisService, hub *LeaderboardHub) {
	_scoreEvents = scoreEventDeps{nemesis: nemesis, hub: hub}
}

// EmitScoreInsert is the in-process change feed for score inserts: it
// kicks off dethrone detection and notifies live leaderboard viewers.
// Safe to call anywhere; detection failures never surface to the
// caller, score persistence already happened.
func EmitScoreInsert(score models.Score) {
	if _scoreEvents.nemesis != nil {
		go func() {
			dethroned, queued, err := _scoreEvents.nemesis.DetectDethroned(score)
			if err != nil {
				log.Printf("nemesis: detection failed for score %s: %v", score.ID, err)
				return
			}
			if dethroned > 0 {
				log.Printf("nemesis: score %s dethroned %d players, queued %d notifications", score.ID, dethroned, queued)
			}
		}()
	}
	if _scoreEvents.hub != nil {
		_scoreEvents.hub.BroadcastScore(score)
	}
}
