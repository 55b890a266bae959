package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type DriftReportDB struct {
	db *Database
}

func NewDriftReportDB(database *Database) *DriftReportDB {
	return &DriftReportDB{db: database}
}

func (d *DriftReportDB) Create(ctx context.Context, r *models.DriftReport) error {
	_, err := d.db.DB().ExecContext(ctx, `
		INSERT INTO drift_reports (id, instance_id, severity, status, detected_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.InstanceID, r.Severity, r.Status, r.DetectedAt, r.ResolvedAt,
	)
	return err
}

// Get loads a report and populates Items from drift_items.
func (d *DriftReportDB) Get(ctx context.Context, id string) (*models.DriftReport, error) {
	row := d.db.DB().QueryRowContext(ctx, `
		SELECT id, instance_id, severity, status, detected_at, resolved_at FROM drift_reports WHERE id = $1`, id)

	r := &models.DriftReport{}
	err := row.Scan(&r.ID, &r.InstanceID, &r.Severity, &r.Status, &r.DetectedAt, &r.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := d.items(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Items = items
	return r, nil
}

func (d *DriftReportDB) items(ctx context.Context, reportID string) ([]models.DriftItem, error) {
	rows, err := d.db.DB().QueryContext(ctx, `
		SELECT id, report_id, drift_type, severity, field, expected, actual
		FROM drift_items WHERE report_id = $1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DriftItem
	for rows.Next() {
		var item models.DriftItem
		if err := rows.Scan(&item.ID, &item.ReportID, &item.DriftType, &item.Severity, &item.Field, &item.Expected, &item.Actual); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (d *DriftReportDB) AddItem(ctx context.Context, item *models.DriftItem) error {
	_, err := d.db.DB().ExecContext(ctx, `
		INSERT INTO drift_items (id, report_id, drift_type, severity, field, expected, actual)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		item.ID, item.ReportID, item.DriftType, item.Severity, item.Field, item.Expected, item.Actual,
	)
	return err
}

func (d *DriftReportDB) UpdateStatus(ctx context.Context, id string, status models.DriftReportStatus) error {
	_, err := d.db.DB().ExecContext(ctx, `UPDATE drift_reports SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (d *DriftReportDB) ListActiveForInstance(ctx context.Context, instanceID string) ([]*models.DriftReport, error) {
	rows, err := d.db.DB().QueryContext(ctx, `
		SELECT id, instance_id, severity, status, detected_at, resolved_at
		FROM drift_reports WHERE instance_id = $1 AND status NOT IN ('RESOLVED','SUPPRESSED')
		ORDER BY detected_at DESC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DriftReport
	for rows.Next() {
		r := &models.DriftReport{}
		if err := rows.Scan(&r.ID, &r.InstanceID, &r.Severity, &r.Status, &r.DetectedAt, &r.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type RemediationJobDB struct {
	db *Database
}

func NewRemediationJobDB(database *Database) *RemediationJobDB {
	return &RemediationJobDB{db: database}
}

func (j *RemediationJobDB) Create(ctx context.Context, job *models.RemediationJob) error {
	_, err := j.db.DB().ExecContext(ctx, `
		INSERT INTO remediation_jobs (id, report_id, mode, triggered_by, status, log, started_at, finished_at, duration_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		job.ID, job.ReportID, job.Mode, job.TriggeredBy, job.Status, job.Log, job.StartedAt, job.FinishedAt, job.DurationMs,
	)
	return err
}

func (j *RemediationJobDB) UpdateResult(ctx context.Context, job *models.RemediationJob) error {
	_, err := j.db.DB().ExecContext(ctx, `
		UPDATE remediation_jobs SET status=$1, log=$2, finished_at=$3, duration_ms=$4 WHERE id=$5`,
		job.Status, job.Log, job.FinishedAt, job.DurationMs, job.ID,
	)
	return err
}

// DriftSuppressRuleDB wraps suppress rules that the drift detector consults
// before creating a new report for a given (instance, drift type) pair.
type DriftSuppressRuleDB struct {
	db *Database
}

func NewDriftSuppressRuleDB(database *Database) *DriftSuppressRuleDB {
	return &DriftSuppressRuleDB{db: database}
}

func (s *DriftSuppressRuleDB) Create(ctx context.Context, r *models.DriftSuppressRule) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO drift_suppress_rules (id, instance_id, drift_type, reason, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		r.ID, r.InstanceID, r.DriftType, r.Reason, r.ExpiresAt, r.CreatedAt,
	)
	return err
}

// All returns every suppress rule; the set is small enough to fetch in full
// and filter in memory against models.DriftSuppressRule.Matches.
func (s *DriftSuppressRuleDB) All(ctx context.Context) ([]*models.DriftSuppressRule, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT id, instance_id, drift_type, reason, expires_at, created_at FROM drift_suppress_rules`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.DriftSuppressRule
	for rows.Next() {
		r := &models.DriftSuppressRule{}
		if err := rows.Scan(&r.ID, &r.InstanceID, &r.DriftType, &r.Reason, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *DriftSuppressRuleDB) Delete(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM drift_suppress_rules WHERE id = $1`, id)
	return err
}
