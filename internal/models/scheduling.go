package models

import "time"

type TaskStatus string

const (
	TaskActive   TaskStatus = "ACTIVE"
	TaskPaused   TaskStatus = "PAUSED"
	TaskDisabled TaskStatus = "DISABLED"
)

// ScheduledTask runs a command on a cron cadence, against one instance or
// the whole fleet.
type ScheduledTask struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	CronExpr        string     `json:"cronExpr" db:"cron_expr"`
	Timezone        string     `json:"timezone" db:"timezone"`
	Command         string     `json:"command" db:"command"`
	TargetInstance  *string    `json:"targetInstance,omitempty" db:"target_instance"`
	Status          TaskStatus `json:"status" db:"status"`
	TimeoutSeconds  int        `json:"timeoutSeconds" db:"timeout_seconds"`
	MaxRetries      int        `json:"maxRetries" db:"max_retries"`
	NotifyOnFailure bool       `json:"notifyOnFailure" db:"notify_on_failure"`
	CreatedBy       string     `json:"createdBy" db:"created_by"`
	LastRunAt       *time.Time `json:"lastRunAt,omitempty" db:"last_run_at"`
	NextRunAt       *time.Time `json:"nextRunAt,omitempty" db:"next_run_at"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

type ExecutionStatus string

const (
	ExecPending  ExecutionStatus = "PENDING"
	ExecRunning  ExecutionStatus = "RUNNING"
	ExecSuccess  ExecutionStatus = "SUCCESS"
	ExecFailed   ExecutionStatus = "FAILED"
	ExecSkipped  ExecutionStatus = "SKIPPED"
	ExecTimedOut ExecutionStatus = "TIMED_OUT"
)

type TriggeredBy string

const (
	TriggeredByScheduler TriggeredBy = "scheduler"
	TriggeredByManual    TriggeredBy = "manual"
	TriggeredByAPI       TriggeredBy = "api"
)

// TaskExecution captures one run of a ScheduledTask.
type TaskExecution struct {
	ID          string          `json:"id" db:"id"`
	TaskID      string          `json:"taskId" db:"task_id"`
	Status      ExecutionStatus `json:"status" db:"status"`
	ExitCode    *int            `json:"exitCode,omitempty" db:"exit_code"`
	Stdout      string          `json:"stdout,omitempty" db:"stdout"`
	Stderr      string          `json:"stderr,omitempty" db:"stderr"`
	StartedAt   *time.Time      `json:"startedAt,omitempty" db:"started_at"`
	FinishedAt  *time.Time      `json:"finishedAt,omitempty" db:"finished_at"`
	DurationMs  *int64          `json:"durationMs,omitempty" db:"duration_ms"`
	TriggeredBy TriggeredBy     `json:"triggeredBy" db:"triggered_by"`
}
