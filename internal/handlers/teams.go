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

// TeamHandler serves team CRUD and membership — the scoping unit
// middleware.RequireInstanceAccess checks for non-ADMIN roles.
type TeamHandler struct {
	teams *db.TeamDB
}

func NewTeamHandler(database *db.Database) *TeamHandler {
	return &TeamHandler{teams: db.NewTeamDB(database)}
}

func (h *TeamHandler) RegisterRoutes(group *gin.RouterGroup) {
	teams := group.Group("/teams")
	teams.GET("", h.List)
	teams.GET("/:id", h.Get)
	teams.POST("", h.Create)
	teams.GET("/:id/members", h.ListMembers)
	teams.POST("/:id/members", h.AddMember)
	teams.DELETE("/:id/members/:userId", h.RemoveMember)
}

func (h *TeamHandler) List(c *gin.Context) {
	all, err := h.teams.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *TeamHandler) Get(c *gin.Context) {
	team, err := h.teams.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if team == nil {
		respondError(c, apperrors.NotFound("team"))
		return
	}
	c.JSON(200, team)
}

type createTeamRequest struct {
	Name        string `json:"name" validate:"required"`
	Slug        string `json:"slug" validate:"required,lowercase,alphanum"`
	Description string `json:"description"`
}

func (h *TeamHandler) Create(c *gin.Context) {
	var req createTeamRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	team := &models.Team{ID: uuid.NewString(), Name: req.Name, Slug: req.Slug, Description: req.Description, CreatedAt: time.Now().UTC()}
	if err := h.teams.Create(c.Request.Context(), team); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, team)
}

func (h *TeamHandler) ListMembers(c *gin.Context) {
	members, err := h.teams.ListMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": members})
}

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required,oneof=ADMIN OPERATOR DEVELOPER VIEWER"`
}

func (h *TeamHandler) AddMember(c *gin.Context) {
	var req addMemberRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	member := &models.TeamMember{TeamID: c.Param("id"), UserID: req.UserID, Role: models.Role(req.Role), JoinedAt: time.Now().UTC()}
	if err := h.teams.AddMember(c.Request.Context(), member); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, member)
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	if err := h.teams.RemoveMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}
