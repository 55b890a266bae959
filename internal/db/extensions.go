package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type ExtensionDB struct {
	db *Database
}

func NewExtensionDB(database *Database) *ExtensionDB {
	return &ExtensionDB{db: database}
}

func (e *ExtensionDB) Create(ctx context.Context, ext *models.Extension) error {
	_, err := e.db.DB().ExecContext(ctx,
		`INSERT INTO extensions (id, slug, name, description, status, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		ext.ID, ext.Slug, ext.Name, ext.Description, ext.Status, ext.CreatedAt,
	)
	return err
}

func (e *ExtensionDB) GetBySlug(ctx context.Context, slug string) (*models.Extension, error) {
	row := e.db.DB().QueryRowContext(ctx,
		`SELECT id, slug, name, description, status, created_at FROM extensions WHERE slug = $1`, slug)
	ext := &models.Extension{}
	err := row.Scan(&ext.ID, &ext.Slug, &ext.Name, &ext.Description, &ext.Status, &ext.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ext, err
}

func (e *ExtensionDB) ListApproved(ctx context.Context) ([]*models.Extension, error) {
	rows, err := e.db.DB().QueryContext(ctx,
		`SELECT id, slug, name, description, status, created_at FROM extensions WHERE status = 'APPROVED' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Extension
	for rows.Next() {
		ext := &models.Extension{}
		if err := rows.Scan(&ext.ID, &ext.Slug, &ext.Name, &ext.Description, &ext.Status, &ext.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, rows.Err()
}

func (e *ExtensionDB) AddVersion(ctx context.Context, v *models.ExtensionVersion) error {
	_, err := e.db.DB().ExecContext(ctx,
		`INSERT INTO extension_versions (id, extension_id, version, released_at) VALUES ($1,$2,$3,$4)`,
		v.ID, v.ExtensionID, v.Version, v.ReleasedAt,
	)
	return err
}

func (e *ExtensionDB) RecordInstallation(ctx context.Context, inst *models.ExtensionInstallation) error {
	_, err := e.db.DB().ExecContext(ctx,
		`INSERT INTO extension_installations (id, instance_id, extension_id, version, installed_at) VALUES ($1,$2,$3,$4,$5)`,
		inst.ID, inst.InstanceID, inst.ExtensionID, inst.Version, inst.InstalledAt,
	)
	return err
}

func (e *ExtensionDB) ListInstallations(ctx context.Context, instanceID string) ([]*models.ExtensionInstallation, error) {
	rows, err := e.db.DB().QueryContext(ctx,
		`SELECT id, instance_id, extension_id, version, installed_at FROM extension_installations WHERE instance_id = $1`,
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ExtensionInstallation
	for rows.Next() {
		inst := &models.ExtensionInstallation{}
		if err := rows.Scan(&inst.ID, &inst.InstanceID, &inst.ExtensionID, &inst.Version, &inst.InstalledAt); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

type DeploymentTemplateDB struct {
	db *Database
}

func NewDeploymentTemplateDB(database *Database) *DeploymentTemplateDB {
	return &DeploymentTemplateDB{db: database}
}

func (t *DeploymentTemplateDB) Create(ctx context.Context, tmpl *models.DeploymentTemplate) error {
	_, err := t.db.DB().ExecContext(ctx, `
		INSERT INTO deployment_templates (id, name, slug, category, description, extensions,
			provider_recommendations, yaml_content, is_official, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		tmpl.ID, tmpl.Name, tmpl.Slug, tmpl.Category, tmpl.Description, tmpl.Extensions,
		tmpl.ProviderRecommendations, tmpl.YAMLContent, tmpl.IsOfficial, tmpl.CreatedBy, tmpl.CreatedAt,
	)
	return err
}

func (t *DeploymentTemplateDB) GetBySlug(ctx context.Context, slug string) (*models.DeploymentTemplate, error) {
	row := t.db.DB().QueryRowContext(ctx, `
		SELECT id, name, slug, category, description, extensions, provider_recommendations, yaml_content, is_official, created_by, created_at
		FROM deployment_templates WHERE slug = $1`, slug)
	return scanTemplate(row)
}

func (t *DeploymentTemplateDB) List(ctx context.Context) ([]*models.DeploymentTemplate, error) {
	rows, err := t.db.DB().QueryContext(ctx, `
		SELECT id, name, slug, category, description, extensions, provider_recommendations, yaml_content, is_official, created_by, created_at
		FROM deployment_templates ORDER BY is_official DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DeploymentTemplate
	for rows.Next() {
		tmpl := &models.DeploymentTemplate{}
		if err := rows.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Slug, &tmpl.Category, &tmpl.Description, &tmpl.Extensions,
			&tmpl.ProviderRecommendations, &tmpl.YAMLContent, &tmpl.IsOfficial, &tmpl.CreatedBy, &tmpl.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, tmpl)
	}
	return out, rows.Err()
}

func scanTemplate(row *sql.Row) (*models.DeploymentTemplate, error) {
	tmpl := &models.DeploymentTemplate{}
	err := row.Scan(&tmpl.ID, &tmpl.Name, &tmpl.Slug, &tmpl.Category, &tmpl.Description, &tmpl.Extensions,
		&tmpl.ProviderRecommendations, &tmpl.YAMLContent, &tmpl.IsOfficial, &tmpl.CreatedBy, &tmpl.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return tmpl, err
}
