package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/streamspace/fleetconsole/internal/models"
)

type ScheduledTaskDB struct {
	db *Database
}

func NewScheduledTaskDB(database *Database) *ScheduledTaskDB {
	return &ScheduledTaskDB{db: database}
}

func (s *ScheduledTaskDB) Create(ctx context.Context, t *models.ScheduledTask) error {
	_, err := s.db.DB().ExecContext(ctx, `
		INSERT INTO scheduled_tasks (id, name, cron_expr, timezone, command, target_instance, status,
			timeout_seconds, max_retries, notify_on_failure, created_by, last_run_at, next_run_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		t.ID, t.Name, t.CronExpr, t.Timezone, t.Command, t.TargetInstance, t.Status,
		t.TimeoutSeconds, t.MaxRetries, t.NotifyOnFailure, t.CreatedBy, t.LastRunAt, t.NextRunAt, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *ScheduledTaskDB) Get(ctx context.Context, id string) (*models.ScheduledTask, error) {
	row := s.db.DB().QueryRowContext(ctx, `
		SELECT id, name, cron_expr, timezone, command, target_instance, status, timeout_seconds,
			max_retries, notify_on_failure, created_by, last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_tasks WHERE id = $1`, id)
	return scanTask(row)
}

// Active returns every task whose status is ACTIVE.
func (s *ScheduledTaskDB) Active(ctx context.Context) ([]*models.ScheduledTask, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, name, cron_expr, timezone, command, target_instance, status, timeout_seconds,
			max_retries, notify_on_failure, created_by, last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_tasks WHERE status = 'ACTIVE'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ScheduledTask
	for rows.Next() {
		t := &models.ScheduledTask{}
		if err := rows.Scan(&t.ID, &t.Name, &t.CronExpr, &t.Timezone, &t.Command, &t.TargetInstance, &t.Status,
			&t.TimeoutSeconds, &t.MaxRetries, &t.NotifyOnFailure, &t.CreatedBy, &t.LastRunAt, &t.NextRunAt,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// List returns every scheduled task regardless of status, for the management
// view (Active returns only ACTIVE tasks).
func (s *ScheduledTaskDB) List(ctx context.Context) ([]*models.ScheduledTask, error) {
	rows, err := s.db.DB().QueryContext(ctx, `
		SELECT id, name, cron_expr, timezone, command, target_instance, status, timeout_seconds,
			max_retries, notify_on_failure, created_by, last_run_at, next_run_at, created_at, updated_at
		FROM scheduled_tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ScheduledTask
	for rows.Next() {
		t := &models.ScheduledTask{}
		if err := rows.Scan(&t.ID, &t.Name, &t.CronExpr, &t.Timezone, &t.Command, &t.TargetInstance, &t.Status,
			&t.TimeoutSeconds, &t.MaxRetries, &t.NotifyOnFailure, &t.CreatedBy, &t.LastRunAt, &t.NextRunAt,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *ScheduledTaskDB) UpdateStatus(ctx context.Context, id string, status models.TaskStatus) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	return err
}

func (s *ScheduledTaskDB) RecordRun(ctx context.Context, id string, lastRunAt time.Time, nextRunAt *time.Time) error {
	_, err := s.db.DB().ExecContext(ctx,
		`UPDATE scheduled_tasks SET last_run_at = $1, next_run_at = $2, updated_at = now() WHERE id = $3`,
		lastRunAt, nextRunAt, id)
	return err
}

func (s *ScheduledTaskDB) Delete(ctx context.Context, id string) error {
	_, err := s.db.DB().ExecContext(ctx, `DELETE FROM scheduled_tasks WHERE id = $1`, id)
	return err
}

func scanTask(row *sql.Row) (*models.ScheduledTask, error) {
	t := &models.ScheduledTask{}
	err := row.Scan(&t.ID, &t.Name, &t.CronExpr, &t.Timezone, &t.Command, &t.TargetInstance, &t.Status,
		&t.TimeoutSeconds, &t.MaxRetries, &t.NotifyOnFailure, &t.CreatedBy, &t.LastRunAt, &t.NextRunAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

type TaskExecutionDB struct {
	db *Database
}

func NewTaskExecutionDB(database *Database) *TaskExecutionDB {
	return &TaskExecutionDB{db: database}
}

func (e *TaskExecutionDB) Create(ctx context.Context, ex *models.TaskExecution) error {
	_, err := e.db.DB().ExecContext(ctx, `
		INSERT INTO task_executions (id, task_id, status, exit_code, stdout, stderr, started_at,
			finished_at, duration_ms, triggered_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		ex.ID, ex.TaskID, ex.Status, ex.ExitCode, ex.Stdout, ex.Stderr,
		ex.StartedAt, ex.FinishedAt, ex.DurationMs, ex.TriggeredBy,
	)
	return err
}

func (e *TaskExecutionDB) UpdateResult(ctx context.Context, ex *models.TaskExecution) error {
	_, err := e.db.DB().ExecContext(ctx, `
		UPDATE task_executions SET status=$1, exit_code=$2, stdout=$3, stderr=$4, finished_at=$5, duration_ms=$6
		WHERE id=$7`,
		ex.Status, ex.ExitCode, ex.Stdout, ex.Stderr, ex.FinishedAt, ex.DurationMs, ex.ID,
	)
	return err
}

func (e *TaskExecutionDB) ListForTask(ctx context.Context, taskID string, limit int) ([]*models.TaskExecution, error) {
	rows, err := e.db.DB().QueryContext(ctx, `
		SELECT id, task_id, status, exit_code, stdout, stderr, started_at, finished_at, duration_ms, triggered_by
		FROM task_executions WHERE task_id = $1 ORDER BY started_at DESC LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.TaskExecution
	for rows.Next() {
		ex := &models.TaskExecution{}
		if err := rows.Scan(&ex.ID, &ex.TaskID, &ex.Status, &ex.ExitCode, &ex.Stdout, &ex.Stderr,
			&ex.StartedAt, &ex.FinishedAt, &ex.DurationMs, &ex.TriggeredBy); err != nil {
			return nil, err
		}
		out = append(out, ex)
	}
	return out, rows.Err()
}
