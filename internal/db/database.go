// Package db provides PostgreSQL access and schema management for the
// Console. Migrations are hand-rolled `CREATE TABLE IF NOT EXISTS`
// statements run at startup — there is no separate migration tool, only
// additive, idempotent schema statements executed in order.
package db

import (
	"database/sql"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Config holds database connection parameters.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// Database wraps the pooled *sql.DB handle shared by every query package.
type Database struct {
	db *sql.DB
}

func validateConfig(config Config) error {
	if config.Host == "" {
		return fmt.Errorf("database host cannot be empty")
	}
	if net.ParseIP(config.Host) == nil {
		hostnameRegex := regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-\.]{0,253}[a-zA-Z0-9])?$`)
		if !hostnameRegex.MatchString(config.Host) {
			return fmt.Errorf("invalid database host: %s", config.Host)
		}
	}

	if config.Port == "" {
		return fmt.Errorf("database port cannot be empty")
	}
	port, err := strconv.Atoi(config.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("invalid database port: %s", config.Port)
	}

	userRegex := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	if config.User == "" || !userRegex.MatchString(config.User) {
		return fmt.Errorf("invalid database user: %s", config.User)
	}

	dbNameRegex := regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	if config.DBName == "" || !dbNameRegex.MatchString(config.DBName) {
		return fmt.Errorf("invalid database name: %s", config.DBName)
	}

	validSSLModes := []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}
	if config.SSLMode != "" {
		valid := false
		for _, mode := range validSSLModes {
			if config.SSLMode == mode {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid SSL mode: %s (must be one of: %s)", config.SSLMode, strings.Join(validSSLModes, ", "))
		}
	}

	if config.SSLMode == "" || config.SSLMode == "disable" {
		log.Warn().Msg("database SSL/TLS is disabled; set DB_SSL_MODE=require for production")
	}

	return nil
}

// NewDatabase opens a pooled connection and pings it once to fail fast.
func NewDatabase(config Config) (*Database, error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	sqlDB, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	sqlDB.SetConnMaxIdleTime(1 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: sqlDB}, nil
}

// NewDatabaseForTesting wraps an existing *sql.DB (typically go-sqlmock) for
// dependency injection in tests. Never use this outside _test.go files.
func NewDatabaseForTesting(sqlDB *sql.DB) *Database {
	return &Database{db: sqlDB}
}

func (d *Database) Close() error { return d.db.Close() }

func (d *Database) DB() *sql.DB { return d.db }

// Migrate runs every CREATE TABLE IF NOT EXISTS statement for the Console's
// schema, in dependency order.
func (d *Database) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			role TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS api_keys (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			key_hash TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			expires_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_api_keys_hash ON api_keys(key_hash)`,

		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT UNIQUE NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (team_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			provider TEXT NOT NULL,
			region TEXT,
			extensions JSONB NOT NULL DEFAULT '[]',
			config_hash TEXT NOT NULL,
			ssh_endpoint TEXT,
			status TEXT NOT NULL,
			team_id TEXT REFERENCES teams(id) ON DELETE SET NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_status ON instances(status)`,
		`CREATE INDEX IF NOT EXISTS idx_instances_team ON instances(team_id)`,

		`CREATE TABLE IF NOT EXISTS heartbeats (
			instance_id TEXT PRIMARY KEY REFERENCES instances(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL,
			cpu_percent DOUBLE PRECISION NOT NULL,
			memory_used NUMERIC NOT NULL,
			memory_total NUMERIC NOT NULL,
			disk_used NUMERIC NOT NULL,
			disk_total NUMERIC NOT NULL,
			uptime_seconds BIGINT NOT NULL,
			load_avg_1 DOUBLE PRECISION NOT NULL,
			load_avg_5 DOUBLE PRECISION NOT NULL,
			load_avg_15 DOUBLE PRECISION NOT NULL,
			net_bytes_sent NUMERIC NOT NULL,
			net_bytes_recv NUMERIC NOT NULL,
			process_count INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS metric_samples (
			id BIGSERIAL PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL,
			granularity TEXT NOT NULL,
			cpu_percent DOUBLE PRECISION NOT NULL,
			memory_used NUMERIC NOT NULL,
			memory_total NUMERIC NOT NULL,
			disk_used NUMERIC NOT NULL,
			disk_total NUMERIC NOT NULL,
			load_avg_1 DOUBLE PRECISION NOT NULL,
			load_avg_5 DOUBLE PRECISION NOT NULL,
			load_avg_15 DOUBLE PRECISION NOT NULL,
			net_bytes_sent NUMERIC NOT NULL,
			net_bytes_recv NUMERIC NOT NULL,
			sample_count INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metric_samples_lookup ON metric_samples(instance_id, granularity, timestamp)`,

		`CREATE TABLE IF NOT EXISTS log_entries (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			timestamp TIMESTAMPTZ NOT NULL,
			level TEXT NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_log_entries_instance_time ON log_entries(instance_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			event_type TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			metadata JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_instance_time ON events(instance_id, timestamp)`,

		`CREATE TABLE IF NOT EXISTS terminal_sessions (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id),
			status TEXT NOT NULL,
			cols INTEGER NOT NULL,
			rows INTEGER NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			closed_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS command_sessions (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL REFERENCES users(id),
			status TEXT NOT NULL,
			exit_code INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			closed_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS scheduled_tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			cron_expr TEXT NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			command TEXT NOT NULL,
			target_instance TEXT REFERENCES instances(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			timeout_seconds INTEGER NOT NULL DEFAULT 300,
			max_retries INTEGER NOT NULL DEFAULT 0,
			notify_on_failure BOOLEAN NOT NULL DEFAULT false,
			created_by TEXT NOT NULL REFERENCES users(id),
			last_run_at TIMESTAMPTZ,
			next_run_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS task_executions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL REFERENCES scheduled_tasks(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			exit_code INTEGER,
			stdout TEXT,
			stderr TEXT,
			started_at TIMESTAMPTZ,
			finished_at TIMESTAMPTZ,
			duration_ms BIGINT,
			triggered_by TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_task_executions_task ON task_executions(task_id, started_at DESC)`,

		`CREATE TABLE IF NOT EXISTS alert_rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			conditions JSONB NOT NULL,
			combinator TEXT NOT NULL,
			severity TEXT NOT NULL,
			eval_window_sec INTEGER NOT NULL,
			pending_for_sec INTEGER NOT NULL DEFAULT 0,
			cooldown_sec INTEGER NOT NULL DEFAULT 0,
			target_instance TEXT REFERENCES instances(id) ON DELETE CASCADE,
			notify JSONB NOT NULL DEFAULT '[]',
			enabled BOOLEAN NOT NULL DEFAULT true,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS alert_events (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL REFERENCES alert_rules(id) ON DELETE CASCADE,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			state TEXT NOT NULL,
			trigger_metric TEXT NOT NULL,
			trigger_value DOUBLE PRECISION NOT NULL,
			message TEXT NOT NULL,
			fired_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			pending_since TIMESTAMPTZ,
			notifications_sent INTEGER NOT NULL DEFAULT 0,
			last_notified_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_alert_events_active ON alert_events(rule_id, instance_id) WHERE state IN ('PENDING','FIRING')`,

		`CREATE TABLE IF NOT EXISTS cost_entries (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			category TEXT NOT NULL,
			amount_usd DOUBLE PRECISION NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			period_end TIMESTAMPTZ NOT NULL,
			provider TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cost_entries_instance_period ON cost_entries(instance_id, period_start)`,
		`CREATE TABLE IF NOT EXISTS budgets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			scope TEXT NOT NULL,
			scope_ref_id TEXT,
			period TEXT NOT NULL,
			limit_usd DOUBLE PRECISION NOT NULL,
			thresholds JSONB NOT NULL DEFAULT '[50,75,80,90,100]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS budget_alerts (
			id TEXT PRIMARY KEY,
			budget_id TEXT NOT NULL REFERENCES budgets(id) ON DELETE CASCADE,
			threshold INTEGER NOT NULL,
			period_start TIMESTAMPTZ NOT NULL,
			actual_usd DOUBLE PRECISION NOT NULL,
			triggered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_budget_alerts_once ON budget_alerts(budget_id, threshold, period_start)`,
		`CREATE TABLE IF NOT EXISTS cost_anomalies (
			id TEXT PRIMARY KEY,
			instance_id TEXT REFERENCES instances(id) ON DELETE CASCADE,
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			actual_usd DOUBLE PRECISION NOT NULL,
			expected_usd DOUBLE PRECISION NOT NULL,
			deviation_pct DOUBLE PRECISION NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS optimization_recommendations (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			action TEXT NOT NULL,
			potential_savings_usd DOUBLE PRECISION NOT NULL,
			confidence INTEGER NOT NULL,
			description TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS drift_reports (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			resolved_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS drift_items (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL REFERENCES drift_reports(id) ON DELETE CASCADE,
			drift_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			field TEXT NOT NULL,
			expected TEXT,
			actual TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS remediation_jobs (
			id TEXT PRIMARY KEY,
			report_id TEXT NOT NULL REFERENCES drift_reports(id) ON DELETE CASCADE,
			mode TEXT NOT NULL,
			triggered_by TEXT NOT NULL,
			status TEXT NOT NULL,
			log TEXT,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			finished_at TIMESTAMPTZ,
			duration_ms BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS drift_suppress_rules (
			id TEXT PRIMARY KEY,
			instance_id TEXT REFERENCES instances(id) ON DELETE CASCADE,
			drift_type TEXT,
			reason TEXT,
			expires_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS sboms (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			generated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS sbom_components (
			id TEXT PRIMARY KEY,
			sbom_id TEXT NOT NULL REFERENCES sboms(id) ON DELETE CASCADE,
			purl TEXT NOT NULL,
			version TEXT NOT NULL,
			license TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sbom_components_purl ON sbom_components(purl, version)`,
		`CREATE TABLE IF NOT EXISTS cve_vulnerabilities (
			id TEXT PRIMARY KEY,
			cve_id TEXT NOT NULL,
			affected_component TEXT NOT NULL,
			affected_version TEXT NOT NULL,
			cvss DOUBLE PRECISION NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT,
			discovered_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cve_affected ON cve_vulnerabilities(affected_component, affected_version)`,
		`CREATE TABLE IF NOT EXISTS secret_findings (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			location TEXT NOT NULL,
			kind TEXT NOT NULL,
			rotated_at TIMESTAMPTZ,
			detected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS security_scores (
			instance_id TEXT PRIMARY KEY REFERENCES instances(id) ON DELETE CASCADE,
			score INTEGER NOT NULL,
			grade TEXT NOT NULL,
			computed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS extensions (
			id TEXT PRIMARY KEY,
			slug TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS extension_versions (
			id TEXT PRIMARY KEY,
			extension_id TEXT NOT NULL REFERENCES extensions(id) ON DELETE CASCADE,
			version TEXT NOT NULL,
			released_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS extension_installations (
			id TEXT PRIMARY KEY,
			instance_id TEXT NOT NULL REFERENCES instances(id) ON DELETE CASCADE,
			extension_id TEXT NOT NULL REFERENCES extensions(id) ON DELETE CASCADE,
			version TEXT NOT NULL,
			installed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS deployment_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT UNIQUE NOT NULL,
			category TEXT NOT NULL,
			description TEXT,
			extensions JSONB NOT NULL DEFAULT '[]',
			provider_recommendations JSONB NOT NULL DEFAULT '[]',
			yaml_content TEXT NOT NULL,
			is_official BOOLEAN NOT NULL DEFAULT false,
			created_by TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS audit_entries (
			id TEXT PRIMARY KEY,
			actor_user_id TEXT NOT NULL,
			action TEXT NOT NULL,
			resource_type TEXT NOT NULL,
			resource_id TEXT NOT NULL,
			before JSONB,
			after JSONB,
			outcome TEXT NOT NULL,
			ip TEXT,
			timestamp TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_entries_resource ON audit_entries(resource_type, resource_id)`,
	}

	for i, stmt := range migrations {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}

	log.Info().Int("statements", len(migrations)).Msg("migrations applied")
	return nil
}
