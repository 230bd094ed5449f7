package routes

import (
	"github.com/znehraks/mini-game-heaven/controllers"
	"github.com/znehraks/mini-game-heaven/middlewares"
	"github.com/znehraks/mini-game-heaven/services"

	"github.com/gin-gonic/gin"
)

func SetupRouter(push *services.PushService, nemesis *services.NemesisService, hub *services.LeaderboardHub) *gin.Engine {
	r := gin.Default()

	auth := r.Group("/auth")
	{
		auth.POST("/register", controllers.Register)
		auth.POST("/login", controllers.Login)
	}

	scores := r.Group("/scores")
	scores.Use(middlewares.OptionalAuth())
	{
		scores.POST("", controllers.SubmitScore)
	}

	r.GET("/games/:game_id/leaderboard", controllers.GetLeaderboard)

	user := r.Group("/user")
	user.Use(middlewares.AuthMiddleware())
	{
		user.GET("/scores", controllers.GetMyScores)
	}

	pushCtl := controllers.NewPushController(push)
	p := r.Group("/push")
	{
		p.POST("/subscribe", pushCtl.Subscribe)
		p.DELETE("/subscribe", pushCtl.Unsubscribe)
		p.POST("/resubscribe", pushCtl.Resubscribe)
		p.POST("/send", pushCtl.Send)
	}

	webhookCtl := controllers.NewWebhookController(nemesis)
	r.POST("/webhooks/scores", webhookCtl.HandleScoreChange)

	realtimeCtl := controllers.NewRealtimeController(hub)
	r.GET("/ws/games/:game_id", realtimeCtl.GameFeed)

	return r
}
