package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/sessionhub"
	"github.com/streamspace/fleetconsole/internal/validator"
)

// InstanceHandler serves instance CRUD, lifecycle transitions, and the
// REST entry points into the live terminal/command sessions sessionhub
// manages — create/attach happens here, the actual bytes flow over the
// viewer WebSocket upgrade.
type InstanceHandler struct {
	db         *db.Database
	instances  *db.InstanceDB
	heartbeats *db.HeartbeatDB
	terminals  *sessionhub.TerminalManager
	commands   *sessionhub.CommandManager
}

func NewInstanceHandler(database *db.Database, terminals *sessionhub.TerminalManager, commands *sessionhub.CommandManager) *InstanceHandler {
	return &InstanceHandler{
		db:         database,
		instances:  db.NewInstanceDB(database),
		heartbeats: db.NewHeartbeatDB(database),
		terminals:  terminals,
		commands:   commands,
	}
}

func (h *InstanceHandler) RegisterRoutes(group *gin.RouterGroup) {
	instances := group.Group("/instances")
	instances.POST("", h.Create)
	instances.GET("", h.List)
	instances.GET("/:id", h.Get)
	instances.PATCH("/:id/status", h.UpdateStatus)
	instances.PATCH("/:id/config", h.UpdateConfig)
	instances.DELETE("/:id", h.Delete)
	instances.GET("/:id/heartbeat", h.GetHeartbeat)

	instances.POST("/:id/terminal", h.CreateTerminal)
	instances.DELETE("/:id/terminal/:sessionId", h.DetachTerminal)

	instances.POST("/:id/commands", h.ExecCommand)
	instances.POST("/:id/commands/:sessionId/cancel", h.CancelCommand)
}

type createInstanceRequest struct {
	Name       string   `json:"name" validate:"required,min=1,max=255"`
	Provider   string   `json:"provider" validate:"required,oneof=fly docker devpod e2b kubernetes"`
	Region     string   `json:"region"`
	Extensions []string `json:"extensions"`
	ConfigHash string   `json:"configHash" validate:"required,hexadecimal"`
	TeamID     string   `json:"teamId"`
}

func (h *InstanceHandler) Create(c *gin.Context) {
	var req createInstanceRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	now := time.Now().UTC()
	inst := &models.Instance{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Provider:   models.Provider(req.Provider),
		Extensions: models.ExtensionSlugs(req.Extensions),
		ConfigHash: req.ConfigHash,
		Status:     models.StatusDeploying,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.Region != "" {
		inst.Region = &req.Region
	}
	if req.TeamID != "" {
		inst.TeamID = &req.TeamID
	}

	if err := h.instances.Create(c.Request.Context(), inst); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, inst)
}

func (h *InstanceHandler) List(c *gin.Context) {
	var teamID *string
	if v := c.Query("teamId"); v != "" {
		teamID = &v
	}

	all, err := h.instances.List(c.Request.Context(), teamID)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}

	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *InstanceHandler) Get(c *gin.Context) {
	inst, err := h.instances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if inst == nil {
		respondError(c, apperrors.NotFound("instance"))
		return
	}
	c.JSON(200, inst)
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=DEPLOYING RUNNING SUSPENDED STOPPED DESTROYING ERROR UNKNOWN"`
}

func (h *InstanceHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	inst, err := h.instances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if inst == nil {
		respondError(c, apperrors.NotFound("instance"))
		return
	}

	to := models.InstanceStatus(req.Status)
	if !models.CanTransition(inst.Status, to) {
		respondError(c, apperrors.InvalidState(string(inst.Status), string(to)))
		return
	}

	if err := h.instances.UpdateStatus(c.Request.Context(), inst.ID, to); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	inst.Status = to
	c.JSON(200, inst)
}

type updateConfigRequest struct {
	Extensions []string `json:"extensions"`
	ConfigHash string   `json:"configHash" validate:"required,hexadecimal"`
}

func (h *InstanceHandler) UpdateConfig(c *gin.Context) {
	var req updateConfigRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.instances.UpdateConfig(c.Request.Context(), id, models.ExtensionSlugs(req.Extensions), req.ConfigHash); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"id": id, "extensions": req.Extensions, "configHash": req.ConfigHash})
}

func (h *InstanceHandler) Delete(c *gin.Context) {
	if err := h.instances.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}

func (h *InstanceHandler) GetHeartbeat(c *gin.Context) {
	hb, err := h.heartbeats.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if hb == nil {
		respondError(c, apperrors.NotFound("heartbeat"))
		return
	}
	c.JSON(200, hb)
}

type createTerminalRequest struct {
	Cols int `json:"cols" validate:"required,min=10"`
	Rows int `json:"rows" validate:"required,min=1"`
}

// CreateTerminal opens a terminal session against the instance's agent
// link and returns its id. No route attaches a viewer WebSocket to the
// session: the only upgrade route serves instance links, so terminal:data
// output goes to a fanout topic with no subscriber and input has no route.
func (h *InstanceHandler) CreateTerminal(c *gin.Context) {
	var req createTerminalRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	uid := userID(c)
	sess, appErr := h.terminals.Create(c.Request.Context(), c.Param("id"), uid, uid, req.Cols, req.Rows)
	if appErr != nil {
		respondError(c, appErr)
		return
	}
	c.JSON(201, gin.H{"sessionId": sess.ID, "status": sess.State})
}

func (h *InstanceHandler) DetachTerminal(c *gin.Context) {
	h.terminals.Detach(c.Param("sessionId"), userID(c))
	c.Status(204)
}

type execCommandRequest struct {
	Command        string `json:"command" validate:"required,min=1"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// ExecCommand dispatches a command to the instance and blocks for its
// result (complete, failed, or timed out per §4.1's default/max timeout).
func (h *InstanceHandler) ExecCommand(c *gin.Context) {
	var req execCommandRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	uid := userID(c)
	run, appErr := h.commands.Exec(c.Request.Context(), c.Param("id"), uid, uid, req.Command, req.TimeoutSeconds)
	if appErr != nil {
		respondError(c, appErr)
		return
	}

	res, waitErr := h.commands.Wait(c.Request.Context(), run.ID)
	if waitErr != nil {
		respondError(c, waitErr)
		return
	}
	c.JSON(200, res)
}

func (h *InstanceHandler) CancelCommand(c *gin.Context) {
	if appErr := h.commands.Cancel(c.Param("sessionId"), userID(c)); appErr != nil {
		respondError(c, appErr)
		return
	}
	c.Status(204)
}
