package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/streamspace/fleetconsole/internal/auth"
	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
)

// extractAPIKey reads the bearer key from either Authorization: Bearer <key>
// or the X-Api-Key header.
func extractAPIKey(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if strings.HasPrefix(h, "Bearer ") {
			return strings.TrimPrefix(h, "Bearer ")
		}
	}
	return c.GetHeader("X-Api-Key")
}

// RequireAPIKey authenticates every request by its API key hash, rejecting
// missing, malformed, unknown, or expired keys with 401. On success it sets
// apiKeyID, userID, and role in the Gin context for downstream middleware
// (rate limiting, RBAC) and handlers.
func RequireAPIKey(database *db.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractAPIKey(c)
		if raw == "" {
			err := apperrors.Unauthorized("missing API key")
			c.JSON(err.StatusCode, err.ToResponse())
			c.Abort()
			return
		}
		if err := auth.ValidateAPIKeyFormat(raw); err != nil {
			appErr := apperrors.Unauthorized("malformed API key")
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			c.Abort()
			return
		}

		hash := auth.HashAPIKey(raw)
		key, user, err := db.NewAPIKeyDB(database).FindByHash(c.Request.Context(), hash)
		if err != nil || key == nil {
			appErr := apperrors.Unauthorized("invalid API key")
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			c.Abort()
			return
		}
		if key.Expired(time.Now().UTC()) {
			appErr := apperrors.Unauthorized("API key expired")
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			c.Abort()
			return
		}

		c.Set("apiKeyID", key.ID)
		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		c.Next()
	}
}
