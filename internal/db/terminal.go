package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type TerminalSessionDB struct {
	db *Database
}

func NewTerminalSessionDB(database *Database) *TerminalSessionDB {
	return &TerminalSessionDB{db: database}
}

func (t *TerminalSessionDB) Create(ctx context.Context, ts *models.TerminalSession) error {
	_, err := t.db.DB().ExecContext(ctx, `
		INSERT INTO terminal_sessions (id, instance_id, user_id, status, cols, rows, created_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ts.ID, ts.InstanceID, ts.UserID, ts.Status, ts.Cols, ts.Rows, ts.CreatedAt, ts.ClosedAt,
	)
	return err
}

func (t *TerminalSessionDB) UpdateStatus(ctx context.Context, id string, status models.TerminalStatus) error {
	_, err := t.db.DB().ExecContext(ctx, `UPDATE terminal_sessions SET status = $1 WHERE id = $2`, status, id)
	return err
}

func (t *TerminalSessionDB) Close(ctx context.Context, id string) error {
	_, err := t.db.DB().ExecContext(ctx,
		`UPDATE terminal_sessions SET status = 'closed', closed_at = now() WHERE id = $1`, id)
	return err
}

func (t *TerminalSessionDB) Get(ctx context.Context, id string) (*models.TerminalSession, error) {
	row := t.db.DB().QueryRowContext(ctx, `
		SELECT id, instance_id, user_id, status, cols, rows, created_at, closed_at
		FROM terminal_sessions WHERE id = $1`, id)
	ts := &models.TerminalSession{}
	err := row.Scan(&ts.ID, &ts.InstanceID, &ts.UserID, &ts.Status, &ts.Cols, &ts.Rows, &ts.CreatedAt, &ts.ClosedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ts, err
}

// CommandSessionDB wraps command_sessions — the open/close audit marker
// for command executions. Command output and live state are transient and
// never touch this table; see sessionhub.CommandManager.
type CommandSessionDB struct {
	db *Database
}

func NewCommandSessionDB(database *Database) *CommandSessionDB {
	return &CommandSessionDB{db: database}
}

func (c *CommandSessionDB) Create(ctx context.Context, cs *models.CommandSession) error {
	_, err := c.db.DB().ExecContext(ctx, `
		INSERT INTO command_sessions (id, instance_id, user_id, status, exit_code, created_at, closed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		cs.ID, cs.InstanceID, cs.UserID, cs.Status, cs.ExitCode, cs.CreatedAt, cs.ClosedAt,
	)
	return err
}

func (c *CommandSessionDB) UpdateStatus(ctx context.Context, id string, status models.CommandStatus) error {
	_, err := c.db.DB().ExecContext(ctx, `UPDATE command_sessions SET status = $1 WHERE id = $2`, status, id)
	return err
}

// Close records the terminal status and exit code and stamps closed_at.
func (c *CommandSessionDB) Close(ctx context.Context, id string, status models.CommandStatus, exitCode int) error {
	_, err := c.db.DB().ExecContext(ctx,
		`UPDATE command_sessions SET status = $1, exit_code = $2, closed_at = now() WHERE id = $3`,
		status, exitCode, id)
	return err
}

func (c *CommandSessionDB) Get(ctx context.Context, id string) (*models.CommandSession, error) {
	row := c.db.DB().QueryRowContext(ctx, `
		SELECT id, instance_id, user_id, status, exit_code, created_at, closed_at
		FROM command_sessions WHERE id = $1`, id)
	cs := &models.CommandSession{}
	err := row.Scan(&cs.ID, &cs.InstanceID, &cs.UserID, &cs.Status, &cs.ExitCode, &cs.CreatedAt, &cs.ClosedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cs, err
}

// AuditEntryDB wraps read access to audit_entries — writes go through
// middleware.AuditLogger.
type AuditEntryDB struct {
	db *Database
}

func NewAuditEntryDB(database *Database) *AuditEntryDB {
	return &AuditEntryDB{db: database}
}

func (a *AuditEntryDB) ListForResource(ctx context.Context, resourceType, resourceID string, limit int) ([]*models.AuditEntry, error) {
	rows, err := a.db.DB().QueryContext(ctx, `
		SELECT id, actor_user_id, action, resource_type, resource_id, before, after, outcome, ip, timestamp
		FROM audit_entries WHERE resource_type = $1 AND resource_id = $2 ORDER BY timestamp DESC LIMIT $3`,
		resourceType, resourceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Before, &e.After, &e.Outcome, &e.IP, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *AuditEntryDB) ListRecent(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	rows, err := a.db.DB().QueryContext(ctx, `
		SELECT id, actor_user_id, action, resource_type, resource_id, before, after, outcome, ip, timestamp
		FROM audit_entries ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AuditEntry
	for rows.Next() {
		e := &models.AuditEntry{}
		if err := rows.Scan(&e.ID, &e.ActorUserID, &e.Action, &e.ResourceType, &e.ResourceID,
			&e.Before, &e.After, &e.Outcome, &e.IP, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
