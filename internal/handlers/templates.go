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

// TemplateHandler serves the deployment-wizard's template catalog.
type TemplateHandler struct {
	templates *db.DeploymentTemplateDB
}

func NewTemplateHandler(database *db.Database) *TemplateHandler {
	return &TemplateHandler{templates: db.NewDeploymentTemplateDB(database)}
}

func (h *TemplateHandler) RegisterRoutes(group *gin.RouterGroup) {
	templates := group.Group("/templates")
	templates.GET("", h.List)
	templates.GET("/:slug", h.Get)
	templates.POST("", h.Create)
}

func (h *TemplateHandler) List(c *gin.Context) {
	all, err := h.templates.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *TemplateHandler) Get(c *gin.Context) {
	tmpl, err := h.templates.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if tmpl == nil {
		respondError(c, apperrors.NotFound("template"))
		return
	}
	c.JSON(200, tmpl)
}

type createTemplateRequest struct {
	Name                    string   `json:"name" validate:"required"`
	Slug                    string   `json:"slug" validate:"required,lowercase,alphanum"`
	Category                string   `json:"category" validate:"required"`
	Description             string   `json:"description"`
	Extensions              []string `json:"extensions"`
	ProviderRecommendations []string `json:"providerRecommendations"`
	YAMLContent             string   `json:"yamlContent" validate:"required"`
}

func (h *TemplateHandler) Create(c *gin.Context) {
	var req createTemplateRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	tmpl := &models.DeploymentTemplate{
		ID:                      uuid.NewString(),
		Name:                    req.Name,
		Slug:                    req.Slug,
		Category:                req.Category,
		Description:             req.Description,
		Extensions:              models.StringList(req.Extensions),
		ProviderRecommendations: models.StringList(req.ProviderRecommendations),
		YAMLContent:             req.YAMLContent,
		CreatedBy:               userID(c),
		CreatedAt:               time.Now().UTC(),
	}
	if err := h.templates.Create(c.Request.Context(), tmpl); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, tmpl)
}

// ExtensionHandler serves the approved-extension catalog and per-instance
// installation records.
type ExtensionHandler struct {
	extensions *db.ExtensionDB
}

func NewExtensionHandler(database *db.Database) *ExtensionHandler {
	return &ExtensionHandler{extensions: db.NewExtensionDB(database)}
}

func (h *ExtensionHandler) RegisterRoutes(group *gin.RouterGroup) {
	ext := group.Group("/extensions")
	ext.GET("", h.List)
	ext.GET("/:slug", h.Get)
	ext.GET("/installations/:instanceId", h.Installations)
	ext.POST("/installations", h.Install)
}

func (h *ExtensionHandler) List(c *gin.Context) {
	all, err := h.extensions.ListApproved(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	page, pageSize := pageParams(c)
	page2, total := paginate(all, page, pageSize)
	paginated(c, page2, page, pageSize, total)
}

func (h *ExtensionHandler) Get(c *gin.Context) {
	ext, err := h.extensions.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if ext == nil {
		respondError(c, apperrors.NotFound("extension"))
		return
	}
	c.JSON(200, ext)
}

func (h *ExtensionHandler) Installations(c *gin.Context) {
	installs, err := h.extensions.ListInstallations(c.Request.Context(), c.Param("instanceId"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": installs})
}

type installExtensionRequest struct {
	InstanceID  string `json:"instanceId" validate:"required"`
	ExtensionID string `json:"extensionId" validate:"required"`
	Version     string `json:"version" validate:"required"`
}

func (h *ExtensionHandler) Install(c *gin.Context) {
	var req installExtensionRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	inst := &models.ExtensionInstallation{
		ID:          uuid.NewString(),
		InstanceID:  req.InstanceID,
		ExtensionID: req.ExtensionID,
		Version:     req.Version,
		InstalledAt: time.Now().UTC(),
	}
	if err := h.extensions.RecordInstallation(c.Request.Context(), inst); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(201, inst)
}
