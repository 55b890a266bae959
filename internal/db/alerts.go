package db

import (
	"context"
	"database/sql"

	"github.com/streamspace/fleetconsole/internal/models"
)

type AlertRuleDB struct {
	db *Database
}

func NewAlertRuleDB(database *Database) *AlertRuleDB {
	return &AlertRuleDB{db: database}
}

func (a *AlertRuleDB) Create(ctx context.Context, r *models.AlertRule) error {
	_, err := a.db.DB().ExecContext(ctx, `
		INSERT INTO alert_rules (id, name, conditions, combinator, severity, eval_window_sec,
			pending_for_sec, cooldown_sec, target_instance, notify, enabled, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.Name, r.Conditions, r.Combinator, r.Severity, r.EvalWindowSec,
		r.PendingForSec, r.CooldownSec, r.TargetInstance, r.Notify, r.Enabled, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (a *AlertRuleDB) Get(ctx context.Context, id string) (*models.AlertRule, error) {
	row := a.db.DB().QueryRowContext(ctx, `
		SELECT id, name, conditions, combinator, severity, eval_window_sec, pending_for_sec,
			cooldown_sec, target_instance, notify, enabled, created_at, updated_at
		FROM alert_rules WHERE id = $1`, id)
	return scanAlertRule(row)
}

// Enabled returns every rule with enabled = true, read fresh on each call
// rather than cached; the REST alert-rule list serves this set.
func (a *AlertRuleDB) Enabled(ctx context.Context) ([]*models.AlertRule, error) {
	rows, err := a.db.DB().QueryContext(ctx, `
		SELECT id, name, conditions, combinator, severity, eval_window_sec, pending_for_sec,
			cooldown_sec, target_instance, notify, enabled, created_at, updated_at
		FROM alert_rules WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AlertRule
	for rows.Next() {
		r := &models.AlertRule{}
		if err := rows.Scan(&r.ID, &r.Name, &r.Conditions, &r.Combinator, &r.Severity, &r.EvalWindowSec,
			&r.PendingForSec, &r.CooldownSec, &r.TargetInstance, &r.Notify, &r.Enabled, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *AlertRuleDB) Update(ctx context.Context, r *models.AlertRule) error {
	_, err := a.db.DB().ExecContext(ctx, `
		UPDATE alert_rules SET name=$1, conditions=$2, combinator=$3, severity=$4, eval_window_sec=$5,
			pending_for_sec=$6, cooldown_sec=$7, target_instance=$8, notify=$9, enabled=$10, updated_at=now()
		WHERE id=$11`,
		r.Name, r.Conditions, r.Combinator, r.Severity, r.EvalWindowSec, r.PendingForSec,
		r.CooldownSec, r.TargetInstance, r.Notify, r.Enabled, r.ID,
	)
	return err
}

func (a *AlertRuleDB) Delete(ctx context.Context, id string) error {
	_, err := a.db.DB().ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	return err
}

func scanAlertRule(row *sql.Row) (*models.AlertRule, error) {
	r := &models.AlertRule{}
	err := row.Scan(&r.ID, &r.Name, &r.Conditions, &r.Combinator, &r.Severity, &r.EvalWindowSec,
		&r.PendingForSec, &r.CooldownSec, &r.TargetInstance, &r.Notify, &r.Enabled, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// AlertEventDB wraps per-(rule,instance) state-machine rows. A partial unique
// index on (rule_id, instance_id) WHERE state IN ('PENDING','FIRING') keeps
// at most one active event per pair; RESOLVED/INACTIVE rows are history.
type AlertEventDB struct {
	db *Database
}

func NewAlertEventDB(database *Database) *AlertEventDB {
	return &AlertEventDB{db: database}
}

func (e *AlertEventDB) Create(ctx context.Context, ev *models.AlertEvent) error {
	_, err := e.db.DB().ExecContext(ctx, `
		INSERT INTO alert_events (id, rule_id, instance_id, state, trigger_metric, trigger_value,
			message, fired_at, resolved_at, pending_since, notifications_sent, last_notified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		ev.ID, ev.RuleID, ev.InstanceID, ev.State, ev.TriggerMetric, ev.TriggerValue,
		ev.Message, ev.FiredAt, ev.ResolvedAt, ev.PendingSince, ev.NotificationsSent, ev.LastNotifiedAt,
	)
	return err
}

// ActiveFor returns the PENDING or FIRING event for (ruleID, instanceID), or
// nil if the pair is currently INACTIVE.
func (e *AlertEventDB) ActiveFor(ctx context.Context, ruleID, instanceID string) (*models.AlertEvent, error) {
	row := e.db.DB().QueryRowContext(ctx, `
		SELECT id, rule_id, instance_id, state, trigger_metric, trigger_value, message,
			fired_at, resolved_at, pending_since, notifications_sent, last_notified_at
		FROM alert_events WHERE rule_id = $1 AND instance_id = $2 AND state IN ('PENDING','FIRING')`,
		ruleID, instanceID)

	ev := &models.AlertEvent{}
	err := row.Scan(&ev.ID, &ev.RuleID, &ev.InstanceID, &ev.State, &ev.TriggerMetric, &ev.TriggerValue,
		&ev.Message, &ev.FiredAt, &ev.ResolvedAt, &ev.PendingSince, &ev.NotificationsSent, &ev.LastNotifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return ev, err
}

func (e *AlertEventDB) UpdateState(ctx context.Context, ev *models.AlertEvent) error {
	_, err := e.db.DB().ExecContext(ctx, `
		UPDATE alert_events SET state=$1, trigger_value=$2, message=$3, fired_at=$4, resolved_at=$5,
			pending_since=$6, notifications_sent=$7, last_notified_at=$8 WHERE id=$9`,
		ev.State, ev.TriggerValue, ev.Message, ev.FiredAt, ev.ResolvedAt,
		ev.PendingSince, ev.NotificationsSent, ev.LastNotifiedAt, ev.ID,
	)
	return err
}

func (e *AlertEventDB) ListForInstance(ctx context.Context, instanceID string, limit int) ([]*models.AlertEvent, error) {
	rows, err := e.db.DB().QueryContext(ctx, `
		SELECT id, rule_id, instance_id, state, trigger_metric, trigger_value, message,
			fired_at, resolved_at, pending_since, notifications_sent, last_notified_at
		FROM alert_events WHERE instance_id = $1 ORDER BY fired_at DESC NULLS LAST LIMIT $2`, instanceID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AlertEvent
	for rows.Next() {
		ev := &models.AlertEvent{}
		if err := rows.Scan(&ev.ID, &ev.RuleID, &ev.InstanceID, &ev.State, &ev.TriggerMetric, &ev.TriggerValue,
			&ev.Message, &ev.FiredAt, &ev.ResolvedAt, &ev.PendingSince, &ev.NotificationsSent, &ev.LastNotifiedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
