package controllers

import (
	"net/http"
	"strconv"

	"github.com/znehraks/mini-game-heaven/config"
	"github.com/znehraks/mini-game-heaven/models"
	"github.com/znehraks/mini-game-heaven/services"

	"github.com/gin-gonic/gin"
)

type submitScoreReq struct {
	GameID   string `json:"game_id" binding:"required"`
	Nickname string `json:"nickname" binding:"required"`
	Score    int    `json:"score"`
}

// POST /scores
func SubmitScore(c *gin.Context) {
	var req submitScoreReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	score := models.Score{
		GameID:   req.GameID,
		Nickname: req.Nickname,
		Score:    req.Score,
	}
	if uid := c.GetString("userID"); uid != "" {
		score.UserID = &uid
	}

	if err := config.DB.Create(&score).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Notification is best-effort secondary behavior; the score row is
	// already durable by the time the event fires.
	services.EmitScoreInsert(score)

	c.JSON(http.StatusCreated, gin.H{"id": score.ID})
}

// GET /games/:game_id/leaderboard
func GetLeaderboard(c *gin.Context) {
	gameID := c.Param("game_id")

	limit := 50
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	var scores []models.Score
	err := config.DB.
		Where("game_id = ?", gameID).
		Order("score DESC, created_at ASC").
		Limit(limit).
		Find(&scores).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"game_id": gameID, "scores": scores})
}

// GET /user/scores
func GetMyScores(c *gin.Context) {
	uid := c.GetString("userID")

	limit := 10
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}

	query := config.DB.Where("user_id = ?", uid)
	if gameID := c.Query("game_id"); gameID != "" {
		query = query.Where("game_id = ?", gameID)
	}

	var scores []models.Score
	if err := query.Order("created_at DESC").Limit(limit).Find(&scores).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"scores": scores})
}
