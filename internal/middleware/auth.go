package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"printfleet/internal/auth"
)

const agentIDContextKey = "agentID"

func AgentIDFromContext(c *gin.Context) (string, bool) {
	agentID, ok := c.Get(agentIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := agentID.(string)
	return value, ok && value != ""
}

// RequireAgentAuth guards endpoints that only an enrolled agent may call,
// such as driver artifact downloads.
func RequireAgentAuth(cfg auth.TokenConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			c.Abort()
			return
		}

		c.Set(agentIDContextKey, claims.AgentID)
		c.Next()
	}
}
