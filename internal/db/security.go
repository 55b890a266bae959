package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type SBOMDB struct {
	db *Database
}

func NewSBOMDB(database *Database) *SBOMDB {
	return &SBOMDB{db: database}
}

func (s *SBOMDB) Create(ctx context.Context, sbom *models.SBOM) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO sboms (id, instance_id, generated_at) VALUES ($1,$2,$3)`,
		sbom.ID, sbom.InstanceID, sbom.GeneratedAt,
	)
	return err
}

func (s *SBOMDB) Latest(ctx context.Context, instanceID string) (*models.SBOM, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT id, instance_id, generated_at FROM sboms WHERE instance_id = $1 ORDER BY generated_at DESC LIMIT 1`,
		instanceID)
	sbom := &models.SBOM{}
	err := row.Scan(&sbom.ID, &sbom.InstanceID, &sbom.GeneratedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sbom, err
}

func (s *SBOMDB) AddComponent(ctx context.Context, c *models.SbomComponent) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO sbom_components (id, sbom_id, purl, version, license) VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.SbomID, c.Purl, c.Version, c.License,
	)
	return err
}

func (s *SBOMDB) Components(ctx context.Context, sbomID string) ([]*models.SbomComponent, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, sbom_id, purl, version, license FROM sbom_components WHERE sbom_id = $1`, sbomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SbomComponent
	for rows.Next() {
		c := &models.SbomComponent{}
		if err := rows.Scan(&c.ID, &c.SbomID, &c.Purl, &c.Version, &c.License); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type CveVulnerabilityDB struct {
	db *Database
}

func NewCveVulnerabilityDB(database *Database) *CveVulnerabilityDB {
	return &CveVulnerabilityDB{db: database}
}

func (c *CveVulnerabilityDB) Create(ctx context.Context, v *models.CveVulnerability) error {
	_, err := c.db.DB().ExecContext(ctx, `
		INSERT INTO cve_vulnerabilities (id, cve_id, affected_component, affected_version, cvss, severity, status, description, discovered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		v.ID, v.CVEID, v.AffectedComponent, v.AffectedVersion, v.CVSS, v.Severity, v.Status, v.Description, v.DiscoveredAt,
	)
	return err
}

// MatchingComponent finds vulnerabilities for an exact (component, version)
// pair — called once per SBOM component during a scan.
func (c *CveVulnerabilityDB) MatchingComponent(ctx context.Context, purl, version string) ([]*models.CveVulnerability, error) {
	rows, err := c.db.DB().QueryContext(ctx, `
		SELECT id, cve_id, affected_component, affected_version, cvss, severity, status, description, discovered_at
		FROM cve_vulnerabilities WHERE affected_component = $1 AND affected_version = $2 AND status NOT IN ('FIXED','FALSE_POSITIVE')`,
		purl, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CveVulnerability
	for rows.Next() {
		v := &models.CveVulnerability{}
		if err := rows.Scan(&v.ID, &v.CVEID, &v.AffectedComponent, &v.AffectedVersion, &v.CVSS, &v.Severity,
			&v.Status, &v.Description, &v.DiscoveredAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (c *CveVulnerabilityDB) UpdateStatus(ctx context.Context, id string, status models.VulnerabilityStatus) error {
	_, err := c.db.DB().ExecContext(ctx, `UPDATE cve_vulnerabilities SET status = $1 WHERE id = $2`, status, id)
	return err
}

type SecretFindingDB struct {
	db *Database
}

func NewSecretFindingDB(database *Database) *SecretFindingDB {
	return &SecretFindingDB{db: database}
}

func (s *SecretFindingDB) Create(ctx context.Context, f *models.SecretFinding) error {
	_, err := s.db.DB().ExecContext(ctx,
		`INSERT INTO secret_findings (id, instance_id, location, kind, rotated_at, detected_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		f.ID, f.InstanceID, f.Location, f.Kind, f.RotatedAt, f.DetectedAt,
	)
	return err
}

func (s *SecretFindingDB) ListForInstance(ctx context.Context, instanceID string) ([]*models.SecretFinding, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, instance_id, location, kind, rotated_at, detected_at FROM secret_findings WHERE instance_id = $1`,
		instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SecretFinding
	for rows.Next() {
		f := &models.SecretFinding{}
		if err := rows.Scan(&f.ID, &f.InstanceID, &f.Location, &f.Kind, &f.RotatedAt, &f.DetectedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type SecurityScoreDB struct {
	db *Database
}

func NewSecurityScoreDB(database *Database) *SecurityScoreDB {
	return &SecurityScoreDB{db: database}
}

func (s *SecurityScoreDB) Upsert(ctx context.Context, score *models.SecurityScore) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO security_scores (instance_id, score, grade, computed_at) VALUES ($1,$2,$3,$4)
		ON CONFLICT (instance_id) DO UPDATE SET score = EXCLUDED.score, grade = EXCLUDED.grade, computed_at = EXCLUDED.computed_at`,
		score.InstanceID, score.Score, score.Grade, score.ComputedAt,
	)
	return err
}

func (s *SecurityScoreDB) Get(ctx context.Context, instanceID string) (*models.SecurityScore, error) {
	row := s.db.DB().QueryRowContext(ctx,
		`SELECT instance_id, score, grade, computed_at FROM security_scores WHERE instance_id = $1`, instanceID)
	score := &models.SecurityScore{}
	err := row.Scan(&score.InstanceID, &score.Score, &score.Grade, &score.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return score, err
}
