package controllers

import (
	"errors"
	"net/http"

	"github.com/znehraks/mini-game-heaven/config"
	"github.com/znehraks/mini-game-heaven/models"
	"github.com/znehraks/mini-game-heaven/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

type PushController struct {
	Push *services.PushService
}

func NewPushController(ps *services.PushService) *PushController {
	return &PushController{Push: ps}
}

type subscribeReq struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	UserID   string `json:"user_id"`
}

// POST /push/subscribe
func (pc *PushController) Subscribe(c *gin.Context) {
	var req subscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := models.PushSubscription{
		Endpoint: req.Endpoint,
		P256dh:   req.P256dh,
		Auth:     req.Auth,
	}
	if req.UserID != "" {
		sub.UserID = &req.UserID
	}

	err := config.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	// On conflict the row keeps its original id; re-read for the response.
	var saved models.PushSubscription
	if err := config.DB.Where("endpoint = ?", req.Endpoint).First(&saved).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": saved.ID})
}

// DELETE /push/subscribe?endpoint=...
func (pc *PushController) Unsubscribe(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing endpoint parameter"})
		return
	}

	if err := config.DB.Where("endpoint = ?", endpoint).Delete(&models.PushSubscription{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type resubscribeReq struct {
	OldEndpoint     string `json:"oldEndpoint"`
	NewSubscription struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	} `json:"newSubscription" binding:"required"`
}

// POST /push/resubscribe
//
// Called when the browser rotates a subscription: carries the user
// association over from the old endpoint, which is then removed.
func (pc *PushController) Resubscribe(c *gin.Context) {
	var req resubscribeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid new subscription data"})
		return
	}

	var userID *string
	if req.OldEndpoint != "" {
		var old models.PushSubscription
		if err := config.DB.Where("endpoint = ?", req.OldEndpoint).First(&old).Error; err == nil {
			userID = old.UserID
		}
		if err := config.DB.Where("endpoint = ?", req.OldEndpoint).Delete(&models.PushSubscription{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
			return
		}
	}

	sub := models.PushSubscription{
		Endpoint: req.NewSubscription.Endpoint,
		P256dh:   req.NewSubscription.Keys.P256dh,
		Auth:     req.NewSubscription.Keys.Auth,
		UserID:   userID,
	}
	err := config.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "user_id", "updated_at"}),
	}).Create(&sub).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	var saved models.PushSubscription
	if err := config.DB.Where("endpoint = ?", req.NewSubscription.Endpoint).First(&saved).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": saved.ID})
}

type sendReq struct {
	Limit          int    `json:"limit"`
	NotificationID string `json:"notification_id"`
}

// POST /push/send
func (pc *PushController) Send(c *gin.Context) {
	var req sendReq
	// An empty body means default limit, whole pending queue.
	_ = c.ShouldBindJSON(&req)

	result, err := pc.Push.ProcessBatch(req.Limit, req.NotificationID)
	if err != nil {
		if errors.Is(err, services.ErrVAPIDNotConfigured) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "VAPID keys not configured"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":               "Push processing complete",
		"processed":             result.Processed,
		"sent":                  result.Sent,
		"failed":                result.Failed,
		"expired_subscriptions": result.ExpiredSubscriptions,
	})
}
