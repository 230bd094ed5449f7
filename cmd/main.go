package main

import (
	"errors"
	"log"

	"github.com/znehraks/mini-game-heaven/config"
	"github.com/znehraks/mini-game-heaven/routes"
	"github.com/znehraks/mini-game-heaven/services"
	"github.com/znehraks/mini-game-heaven/utils"

	"github.com/robfig/cron/v3"
)

func main() {
	config.InitDB()

	vapidKeys, err := utils.LoadVAPIDKeysFromEnv()
	if err != nil {
		// The server still runs; the send endpoint answers 500 until
		// keys are configured.
		log.Printf("push delivery disabled: %v", err)
	}

	hub := services.NewLeaderboardHub()
	nemesis := services.NewNemesisService(config.DB)
	push := services.NewPushService(config.DB, vapidKeys)
	services.InitScoreEvents(nemesis, hub)

	c := cron.New()
	_, err = c.AddFunc("@every 1m", func() {
		result, err := push.ProcessBatch(100, "")
		if err != nil {
			if !errors.Is(err, services.ErrVAPIDNotConfigured) {
				log.Printf("push: scheduled batch failed: %v", err)
			}
			return
		}
		if result.Processed > 0 {
			log.Printf("push: processed=%d sent=%d failed=%d expired=%d",
				result.Processed, result.Sent, result.Failed, result.ExpiredSubscriptions)
		}
	})
	if err != nil {
		log.Fatalf("failed to schedule push batch: %v", err)
	}
	c.Start()

	r := routes.SetupRouter(push, nemesis, hub)
	r.Run(":8080")
}
