package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/streamspace/fleetconsole/internal/auth"
	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
)

// RequirePermission checks the fixed role matrix only — use for routes with
// no single-instance target (e.g. listing, fleet-wide views).
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := roleFromContext(c)
		if !auth.CanPerform(role, perm) {
			err := apperrors.Forbidden("insufficient permissions")
			c.JSON(err.StatusCode, err.ToResponse())
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireInstanceAccess checks the fixed role matrix AND, for non-ADMIN
// roles, that the caller belongs to the team owning instanceParam (a route
// param name, e.g. "id"). ADMIN bypasses team scoping entirely per §4.8.
func RequireInstanceAccess(database *db.Database, perm auth.Permission, instanceParam string) gin.HandlerFunc {
	teamDB := db.NewTeamDB(database)
	return func(c *gin.Context) {
		role := roleFromContext(c)
		if !auth.CanPerform(role, perm) {
			err := apperrors.Forbidden("insufficient permissions")
			c.JSON(err.StatusCode, err.ToResponse())
			c.Abort()
			return
		}

		if !auth.RequiresTeamScope(role) {
			c.Next()
			return
		}

		userIDVal, _ := c.Get("userID")
		userID, _ := userIDVal.(string)
		instanceID := c.Param(instanceParam)

		belongs, err := teamDB.UserBelongsToInstanceTeam(c.Request.Context(), userID, instanceID)
		if err != nil {
			appErr := apperrors.DatabaseError(err)
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			c.Abort()
			return
		}
		if !belongs {
			appErr := apperrors.Forbidden("insufficient permissions")
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			c.Abort()
			return
		}

		c.Next()
	}
}

func roleFromContext(c *gin.Context) models.Role {
	roleVal, _ := c.Get("role")
	role, _ := roleVal.(models.Role)
	return role
}
