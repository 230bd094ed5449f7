package controllers

import (
	"net/http"

	"github.com/znehraks/mini-game-heaven/models"
	"github.com/znehraks/mini-game-heaven/services"

	"github.com/gin-gonic/gin"
)

type WebhookController struct {
	Nemesis *services.NemesisService
}

func NewWebhookController(ns *services.NemesisService) *WebhookController {
	return &WebhookController{Nemesis: ns}
}

// scoreChangePayload is the row-change event shape delivered by the
// database trigger (or any other CDC source).
type scoreChangePayload struct {
	Type   string       `json:"type"`
	Table  string       `json:"table"`
	Record models.Score `json:"record"`
}

// POST /webhooks/scores
func (wc *WebhookController) HandleScoreChange(c *gin.Context) {
	var payload scoreChangePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if payload.Type != "INSERT" || payload.Table != "scores" {
		c.JSON(http.StatusOK, gin.H{"message": "Ignored: not a score insert"})
		return
	}

	dethroned, queued, err := wc.Nemesis.DetectDethroned(payload.Record)
	if err != nil {
		// Reported here but never propagated to the score write: the
		// insert that fired this event already committed.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}

	if dethroned == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No users were dethroned", "dethroned": 0})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Nemesis detection complete",
		"dethroned": dethroned,
		"queued":    queued,
	})
}
