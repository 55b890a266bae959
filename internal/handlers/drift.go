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

// DriftReportHandler serves the read/acknowledge/remediate surface over
// reports a drift-detection engine (outside this package) writes, plus
// suppress-rule management.
type DriftReportHandler struct {
	reports     *db.DriftReportDB
	remediation *db.RemediationJobDB
	suppress    *db.DriftSuppressRuleDB
}

func NewDriftReportHandler(database *db.Database) *DriftReportHandler {
	return &DriftReportHandler{
		reports:     db.NewDriftReportDB(database),
		remediation: db.NewRemediationJobDB(database),
		suppress:    db.NewDriftSuppressRuleDB(database),
	}
}

func (h *DriftReportHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/instances/:id/drift", h.ListForInstance)
	group.GET("/drift-reports/:id", h.Get)
	group.PATCH("/drift-reports/:id/status", h.UpdateStatus)
	group.POST("/drift-reports/:id/remediate", h.Remediate)

	rules := group.Group("/drift-suppress-rules")
	rules.GET("", h.ListSuppressRules)
	rules.POST("", h.CreateSuppressRule)
	rules.DELETE("/:id", h.DeleteSuppressRule)
}

func (h *DriftReportHandler) ListForInstance(c *gin.Context) {
	reports, err := h.reports.ListActiveForInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": reports})
}

func (h *DriftReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if report == nil {
		respondError(c, apperrors.NotFound("drift report"))
		return
	}
	c.JSON(200, report)
}

type updateDriftStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DETECTED ACKNOWLEDGED REMEDIATING RESOLVED SUPPRESSED"`
}

func (h *DriftReportHandler) UpdateStatus(c *gin.Context) {
	var req updateDriftStatusRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.reports.UpdateStatus(c.Request.Context(), id, models.DriftReportStatus(req.Status)); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"id": id, "status": req.Status})
}

type remediateRequest struct {
	Mode string `json:"mode" validate:"required,oneof=MANUAL AUTOMATIC"`
}

// Remediate records a remediation job against the report; actually applying
// the fix against the agent is out of this REST surface's scope.
func (h *DriftReportHandler) Remediate(c *gin.Context) {
	var req remediateRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	job := &models.RemediationJob{
		ID:          uuid.NewString(),
		ReportID:    c.Param("id"),
		Mode:        models.RemediationMode(req.Mode),
		TriggeredBy: userID(c),
		Status:      "PENDING",
		StartedAt:   time.Now().UTC(),
	}
	if err := h.remediation.Create(c.Request.Context(), job); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if err := h.reports.UpdateStatus(c.Request.Context(), job.ReportID, models.DriftRemediating); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, job)
}

func (h *DriftReportHandler) ListSuppressRules(c *gin.Context) {
	all, err := h.suppress.All(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": all})
}

type createSuppressRuleRequest struct {
	InstanceID string `json:"instanceId"`
	DriftType  string `json:"driftType"`
	Reason     string `json:"reason"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}

func (h *DriftReportHandler) CreateSuppressRule(c *gin.Context) {
	var req createSuppressRuleRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	rule := &models.DriftSuppressRule{
		ID:        uuid.NewString(),
		Reason:    req.Reason,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	}
	if req.InstanceID != "" {
		rule.InstanceID = &req.InstanceID
	}
	if req.DriftType != "" {
		dt := models.DriftItemType(req.DriftType)
		rule.DriftType = &dt
	}
	if err := h.suppress.Create(c.Request.Context(), rule); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, rule)
}

func (h *DriftReportHandler) DeleteSuppressRule(c *gin.Context) {
	if err := h.suppress.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}
