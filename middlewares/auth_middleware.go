package middlewares

import (
	"net/http"
	"strings"

	"github.com/znehraks/mini-game-heaven/utils"

	"github.com/gin-gonic/gin"
)

func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		userID, err := utils.ParseJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// OptionalAuth attaches the user id when a valid token is present but
// lets guests through. Score submission works for both.
func OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			if userID, err := utils.ParseJWT(strings.TrimPrefix(authHeader, "Bearer ")); err == nil {
				c.Set("userID", userID)
			}
		}
		c.Next()
	}
}
