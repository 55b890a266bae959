package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/streamspace/fleetconsole/internal/db"
	apperrors "github.com/streamspace/fleetconsole/internal/errors"
	"github.com/streamspace/fleetconsole/internal/models"
	"github.com/streamspace/fleetconsole/internal/validator"
)

// SecurityHandler serves the per-instance SBOM/CVE/secret-finding/score read
// surface a scanning pipeline (outside this package) populates.
type SecurityHandler struct {
	sboms   *db.SBOMDB
	cves    *db.CveVulnerabilityDB
	secrets *db.SecretFindingDB
	scores  *db.SecurityScoreDB
}

func NewSecurityHandler(database *db.Database) *SecurityHandler {
	return &SecurityHandler{
		sboms:   db.NewSBOMDB(database),
		cves:    db.NewCveVulnerabilityDB(database),
		secrets: db.NewSecretFindingDB(database),
		scores:  db.NewSecurityScoreDB(database),
	}
}

func (h *SecurityHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/instances/:id/sbom", h.SBOM)
	group.GET("/instances/:id/secrets", h.SecretFindings)
	group.GET("/instances/:id/security-score", h.Score)
	group.PATCH("/cve/:id/status", h.UpdateCVEStatus)
}

func (h *SecurityHandler) SBOM(c *gin.Context) {
	sbom, err := h.sboms.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if sbom == nil {
		respondError(c, apperrors.NotFound("sbom"))
		return
	}
	components, err := h.sboms.Components(c.Request.Context(), sbom.ID)
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}

	vulnsByComponent := make(map[string][]*models.CveVulnerability, len(components))
	for _, comp := range components {
		vulns, err := h.cves.MatchingComponent(c.Request.Context(), comp.Purl, comp.Version)
		if err != nil {
			respondError(c, apperrors.DatabaseError(err))
			return
		}
		if len(vulns) > 0 {
			vulnsByComponent[comp.ID] = vulns
		}
	}

	c.JSON(200, gin.H{"sbom": sbom, "components": components, "vulnerabilities": vulnsByComponent})
}

func (h *SecurityHandler) SecretFindings(c *gin.Context) {
	findings, err := h.secrets.ListForInstance(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"items": findings})
}

func (h *SecurityHandler) Score(c *gin.Context) {
	score, err := h.scores.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	if score == nil {
		respondError(c, apperrors.NotFound("security score"))
		return
	}
	c.JSON(200, score)
}

type updateCVEStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=OPEN ACKNOWLEDGED PATCHING FIXED ACCEPTED_RISK FALSE_POSITIVE"`
}

func (h *SecurityHandler) UpdateCVEStatus(c *gin.Context) {
	var req updateCVEStatusRequest
	if !validator.BindAndValidate(c, &req) {
		return
	}
	id := c.Param("id")
	if err := h.cves.UpdateStatus(c.Request.Context(), id, models.VulnerabilityStatus(req.Status)); err != nil {
		respondError(c, apperrors.DatabaseError(err))
		return
	}
	c.JSON(200, gin.H{"id": id, "status": req.Status})
}
