package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/streamspace/fleetconsole/internal/auth"
	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/validator"
)

// APIKeyHandler mints and manages the bearer credentials middleware.RequireAPIKey
// authenticates against. The plaintext key is only ever in the Create/Rotate
// response body — auth.IssueAPIKey persists just the hash.
type APIKeyHandler struct {
	keys *db.APIKeyDB
}

func NewAPIKeyHandler(database *db.Database) *APIKeyHandler {
	return &APIKeyHandler{keys: db.NewAPIKeyDB(database)}
}

func (h *APIKeyHandler) RegisterRoutes(group *gin.RouterGroup) {
	keys := group.Group("/api-keys")
	keys.GET("", h.ListAll)
	keys.GET("/mine", h.ListMine)
	keys.POST("", h.Create)
	keys.POST("/:id/rotate", h.Rotate)
	keys.DELETE("/:id", h.Revoke)
}

type createAPIKeyRequest struct {
	Name           string `json:"name" validate:"required,min=1,max=255"`
	ExpiresInHours int    `json:"expiresInHours"`
}

func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createAPIKeyRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}

	issued, err := auth.IssueAPIKey()
	if err != nil {
		respondError(c, apperrors.Internal("failed to generate api key"))
		return
	}

	key := &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    userID(c),
		KeyHash:   issued.Hash,
		Name:      req.Name,
		CreatedAt: issued.CreatedAt,
	}
	if req.ExpiresInHours > 0 {
		expires := issued.CreatedAt.Add(time.Duration(req.ExpiresInHours) * time.Hour)
		key.ExpiresAt = &expires
	}

	if err := h.keys.Create(c.Request.Context(), key); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, gin.H{"key": issued.PlaintextKey, "apiKey": key})
}

func (h *APIKeyHandler) ListAll(c *gin.Context) {
	all, err := h.keys.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *APIKeyHandler) ListMine(c *gin.Context) {
	all, err := h.keys.ListForUser(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

// Rotate revokes the existing key and issues a fresh one for the same user,
// so a leaked key can be replaced without losing the owning identity.
func (h *APIKeyHandler) Rotate(c *gin.Context) {
	existing, err := h.keys.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if existing == nil {
		respondError(c, apperrors.NotFound("api key"))
		return
	}
	if existing.UserID != userID(c) {
		respondError(c, apperrors.Forbidden("cannot rotate another user's api key"))
		return
	}

	issued, genErr := auth.IssueAPIKey()
	if genErr != nil {
		respondError(c, apperrors.Internal("failed to generate api key"))
		return
	}

	replacement := &models.ApiKey{
		ID:        uuid.NewString(),
		UserID:    existing.UserID,
		KeyHash:   issued.Hash,
		Name:      existing.Name,
		CreatedAt: issued.CreatedAt,
		ExpiresAt: existing.ExpiresAt,
	}
	if err := h.keys.Create(c.Request.Context(), replacement); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if err := h.keys.Revoke(c.Request.Context(), existing.ID); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, gin.H{"key": issued.PlaintextKey, "apiKey": replacement})
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	if err := h.keys.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.Status(204)
}
