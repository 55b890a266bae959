package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/validator"
)

// AlertRuleHandler serves alert rule CRUD and the per-instance event history
// an evaluation engine (outside this surface) writes through AlertEventDB.
type AlertRuleHandler struct {
	rules  *db.AlertRuleDB
	events *db.AlertEventDB
}

func NewAlertRuleHandler(database *db.Database) *AlertRuleHandler {
	return &AlertRuleHandler{rules: db.NewAlertRuleDB(database), events: db.NewAlertEventDB(database)}
}

func (h *AlertRuleHandler) RegisterRoutes(group *gin.RouterGroup) {
	rules := group.Group("/alert-rules")
	rules.GET("", h.List)
	rules.GET("/:id", h.Get)
	rules.POST("", h.Create)
	rules.PUT("/:id", h.Update)
	rules.DELETE("/:id", h.Delete)

	group.GET("/instances/:id/alert-events", h.EventsForInstance)
}

type alertRuleRequest struct {
	Name           string                  `json:"name" validate:"required"`
	Conditions     models.AlertConditions  `json:"conditions" validate:"required,min=1,dive"`
	Combinator     string                  `json:"combinator" validate:"required,oneof=AND OR"`
	Severity       string                  `json:"severity" validate:"required,oneof=info warning critical"`
	EvalWindowSec  int                     `json:"evalWindowSec" validate:"required,min=1"`
	PendingForSec  int                     `json:"pendingForSec"`
	CooldownSec    int                     `json:"cooldownSec"`
	TargetInstance string                  `json:"targetInstance"`
	Notify         models.NotifyTargets    `json:"notify"`
	Enabled        bool                    `json:"enabled"`
}

func (h *AlertRuleHandler) List(c *gin.Context) {
	all, err := h.rules.Enabled(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *AlertRuleHandler) Get(c *gin.Context) {
	rule, err := h.rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if rule == nil {
		respondError(c, apperrors.NotFound("alert rule"))
		return
	}
	c.JSON(200, rule)
}

func (h *AlertRuleHandler) Create(c *gin.Context) {
	var req alertRuleRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	now := time.Now().UTC()
	rule := ruleFromRequest(req)
	rule.ID = uuid.NewString()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := h.rules.Create(c.Request.Context(), rule); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, rule)
}

func (h *AlertRuleHandler) Update(c *gin.Context) {
	var req alertRuleRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	existing, err := h.rules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if existing == nil {
		respondError(c, apperrors.NotFound("alert rule"))
		return
	}
	rule := ruleFromRequest(req)
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()
	if err := h.rules.Update(c.Request.Context(), rule); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, rule)
}

func ruleFromRequest(req alertRuleRequest) *models.AlertRule {
	rule := &models.AlertRule{
		Name:          req.Name,
		Conditions:    req.Conditions,
		Combinator:    models.Combinator(req.Combinator),
		Severity:      models.Severity(req.Severity),
		EvalWindowSec: req.EvalWindowSec,
		PendingForSec: req.PendingForSec,
		CooldownSec:   req.CooldownSec,
		Notify:        req.Notify,
		Enabled:       req.Enabled,
	}
	if req.TargetInstance != "" {
		rule.TargetInstance = &req.TargetInstance
	}
	return rule
}

func (h *AlertRuleHandler) Delete(c *gin.Context) {
	if err := h.rules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}

func (h *AlertRuleHandler) EventsForInstance(c *gin.Context) {
	_, pageSize := pageParams(c)
	events, err := h.events.ListForInstance(c.Request.Context(), c.Param("id"), pageSize)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": events})
}
