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

// UserHandler serves operator account CRUD; the fixed four-role matrix
// lives in internal/auth.CanPerform, not here.
type UserHandler struct {
	users *db.UserDB
}

func NewUserHandler(database *db.Database) *UserHandler {
	return &UserHandler{users: db.NewUserDB(database)}
}

func (h *UserHandler) RegisterRoutes(group *gin.RouterGroup) {
	users := group.Group("/users")
	users.GET("", h.List)
	users.GET("/:id", h.Get)
	users.POST("", h.Create)
	users.PATCH("/:id/role", h.UpdateRole)
	users.DELETE("/:id", h.Delete)
}

func (h *UserHandler) List(c *gin.Context) {
	all, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *UserHandler) Get(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if u == nil {
		respondError(c, apperrors.NotFound("user"))
		return
	}
	c.JSON(200, u)
}

type createUserRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=ADMIN OPERATOR DEVELOPER VIEWER"`
}

func (h *UserHandler) Create(c *gin.Context) {
	var req createUserRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	now := time.Now().UTC()
	u := &models.User{ID: uuid.NewString(), Email: req.Email, Role: models.Role(req.Role), CreatedAt: now, UpdatedAt: now}
	if err := h.users.Create(c.Request.Context(), u); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, u)
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN OPERATOR DEVELOPER VIEWER"`
}

func (h *UserHandler) UpdateRole(c *gin.Context) {
	var req updateRoleRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.users.UpdateRole(c.Request.Context(), id, models.Role(req.Role)); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"id": id, "role": req.Role})
}

func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}
