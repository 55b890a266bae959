package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/protocol"
	"github.com/streamspace/fleetconsole/internal/validator"
)

// ScheduledTaskHandler serves cron-task CRUD and execution history; the
// actual cron registry and dispatch loop lives outside this REST surface.
type ScheduledTaskHandler struct {
	tasks      *db.ScheduledTaskDB
	executions *db.TaskExecutionDB
}

func NewScheduledTaskHandler(database *db.Database) *ScheduledTaskHandler {
	return &ScheduledTaskHandler{tasks: db.NewScheduledTaskDB(database), executions: db.NewTaskExecutionDB(database)}
}

func (h *ScheduledTaskHandler) RegisterRoutes(group *gin.RouterGroup) {
	tasks := group.Group("/scheduled-tasks")
	tasks.GET("", h.List)
	tasks.GET("/:id", h.Get)
	tasks.POST("", h.Create)
	tasks.PATCH("/:id/status", h.UpdateStatus)
	tasks.DELETE("/:id", h.Delete)
	tasks.GET("/:id/executions", h.Executions)
}

func (h *ScheduledTaskHandler) List(c *gin.Context) {
	all, err := h.tasks.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *ScheduledTaskHandler) Get(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if task == nil {
		respondError(c, apperrors.NotFound("scheduled task"))
		return
	}
	c.JSON(200, task)
}

type createTaskRequest struct {
	Name            string `json:"name" validate:"required"`
	CronExpr        string `json:"cronExpr" validate:"required"`
	Timezone        string `json:"timezone" validate:"required"`
	Command         string `json:"command" validate:"required,min=1"`
	TargetInstance  string `json:"targetInstance"`
	TimeoutSeconds  int    `json:"timeoutSeconds"`
	MaxRetries      int    `json:"maxRetries"`
	NotifyOnFailure bool   `json:"notifyOnFailure"`
}

func (h *ScheduledTaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	timeout, appErr := protocol.ValidateCommandTimeout(req.TimeoutSeconds)
	if appErr != nil {
		respondError(c, appErr)
		return
	}

	now := time.Now().UTC()
	task := &models.ScheduledTask{
		ID:              uuid.NewString(),
		Name:            req.Name,
		CronExpr:        req.CronExpr,
		Timezone:        req.Timezone,
		Command:         req.Command,
		Status:          models.TaskActive,
		TimeoutSeconds:  timeout,
		MaxRetries:      req.MaxRetries,
		NotifyOnFailure: req.NotifyOnFailure,
		CreatedBy:       userID(c),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.TargetInstance != "" {
		task.TargetInstance = &req.TargetInstance
	}
	if err := h.tasks.Create(c.Request.Context(), task); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, task)
}

type updateTaskStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE PAUSED DISABLED"`
}

func (h *ScheduledTaskHandler) UpdateStatus(c *gin.Context) {
	var req updateTaskStatusRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.tasks.UpdateStatus(c.Request.Context(), id, models.TaskStatus(req.Status)); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"id": id, "status": req.Status})
}

func (h *ScheduledTaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}

func (h *ScheduledTaskHandler) Executions(c *gin.Context) {
	_, pageSize := pageParams(c)
	runs, err := h.executions.ListForTask(c.Request.Context(), c.Param("id"), pageSize)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": runs})
}
