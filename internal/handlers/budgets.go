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

// CostHandler serves read access to ingested spend, fleet/instance cost
// reports, and the recurring budget configuration a cost-evaluation engine
// (outside this surface) checks against. Optimization recommendations are
// read-only from here — a background job populates them; this handler only
// lists them. Cost anomalies are not served by any route of this handler.
type CostHandler struct {
	entries *db.CostEntryDB
	budgets *db.BudgetDB
	alerts  *db.BudgetAlertDB
	anomalies *db.CostAnomalyDB
	recs    *db.OptimizationRecommendationDB
}

func NewCostHandler(database *db.Database) *CostHandler {
	return &CostHandler{
		entries:   db.NewCostEntryDB(database),
		budgets:   db.NewBudgetDB(database),
		alerts:    db.NewBudgetAlertDB(database),
		anomalies: db.NewCostAnomalyDB(database),
		recs:      db.NewOptimizationRecommendationDB(database),
	}
}

func (h *CostHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/instances/:id/cost", h.CostForInstance)
	group.GET("/fleet/cost", h.FleetCost)

	budgets := group.Group("/budgets")
	budgets.GET("", h.ListBudgets)
	budgets.POST("", h.CreateBudget)

	group.GET("/instances/:id/optimizations", h.Optimizations)
}

func parseRange(c *gin.Context) (time.Time, time.Time, *apperrors.AppError) {
	from, fromErr := time.Parse(time.RFC3339, c.Query("from"))
	to, toErr := time.Parse(time.RFC3339, c.Query("to"))
	if fromErr != nil || toErr != nil {
		return time.Time{}, time.Time{}, apperrors.BadRequest("from and to must be RFC3339 timestamps")
	}
	return from, to, nil
}

func (h *CostHandler) CostForInstance(c *gin.Context) {
	from, to, appErr := parseRange(c)
	if appErr != nil {
		respondError(c, appErr)
		return
	}
	entries, err := h.entries.ForInstance(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": entries})
}

func (h *CostHandler) FleetCost(c *gin.Context) {
	from, to, appErr := parseRange(c)
	if appErr != nil {
		respondError(c, appErr)
		return
	}
	total, err := h.entries.TotalForFleet(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"totalUsd": total, "from": from, "to": to})
}

func (h *CostHandler) ListBudgets(c *gin.Context) {
	all, err := h.budgets.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

type createBudgetRequest struct {
	Name       string  `json:"name" validate:"required"`
	Scope      string  `json:"scope" validate:"required,oneof=team instance fleet"`
	ScopeRefID string  `json:"scopeRefId"`
	Period     string  `json:"period" validate:"required,oneof=daily weekly monthly"`
	LimitUSD   float64 `json:"limitUsd" validate:"required,min=0"`
	Thresholds []int   `json:"thresholds"`
}

func (h *CostHandler) CreateBudget(c *gin.Context) {
	var req createBudgetRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	budget := &models.Budget{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Scope:      models.BudgetScope(req.Scope),
		Period:     models.BudgetPeriod(req.Period),
		LimitUSD:   req.LimitUSD,
		Thresholds: req.Thresholds,
		CreatedAt:  time.Now().UTC(),
	}
	if req.ScopeRefID != "" {
		budget.ScopeRefID = &req.ScopeRefID
	}
	if err := h.budgets.Create(c.Request.Context(), budget); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, budget)
}

func (h *CostHandler) Optimizations(c *gin.Context) {
	recs, err := h.recs.ListForInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": recs})
}
