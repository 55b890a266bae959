package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/streamspace/fleetconsole/internal/models"
)

type CostEntryDB struct {
	db *Database
}

func NewCostEntryDB(database *Database) *CostEntryDB {
	return &CostEntryDB{db: database}
}

func (c *CostEntryDB) Create(ctx context.Context, e *models.CostEntry) error {
	_, err := c.db.DB().ExecContext(ctx, `
		INSERT INTO cost_entries (id, instance_id, category, amount_usd, period_start, period_end, provider)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.InstanceID, e.Category, e.AmountUSD, e.PeriodStart, e.PeriodEnd, e.Provider,
	)
	return err
}

func (c *CostEntryDB) ForInstance(ctx context.Context, instanceID string, from, to time.Time) ([]*models.CostEntry, error) {
	rows, err := c.db.DB().QueryContext(ctx, `
		SELECT id, instance_id, category, amount_usd, period_start, period_end, provider
		FROM cost_entries WHERE instance_id = $1 AND period_start >= $2 AND period_end <= $3
		ORDER BY period_start`, instanceID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.CostEntry
	for rows.Next() {
		e := &models.CostEntry{}
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Category, &e.AmountUSD, &e.PeriodStart, &e.PeriodEnd, &e.Provider); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TotalForFleet sums amount_usd across every instance in [from, to) — the
// basis for fleet-scoped budgets.
func (c *CostEntryDB) TotalForFleet(ctx context.Context, from, to time.Time) (float64, error) {
	var total sql.NullFloat64
	err := c.db.DB().QueryRowContext(ctx,
		`SELECT sum(amount_usd) FROM cost_entries WHERE period_start >= $1 AND period_end <= $2`, from, to).Scan(&total)
	return total.Float64, err
}

type BudgetDB struct {
	db *Database
}

func NewBudgetDB(database *Database) *BudgetDB {
	return &BudgetDB{db: database}
}

func (b *BudgetDB) Create(ctx context.Context, budget *models.Budget) error {
	thresholds, err := json.Marshal(budget.Thresholds)
	if err != nil {
		return err
	}
	_, err = b.db.DB().ExecContext(ctx, `
		INSERT INTO budgets (id, name, scope, scope_ref_id, period, limit_usd, thresholds, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		budget.ID, budget.Name, budget.Scope, budget.ScopeRefID, budget.Period, budget.LimitUSD, thresholds, budget.CreatedAt,
	)
	return err
}

func (b *BudgetDB) List(ctx context.Context) ([]*models.Budget, error) {
	rows, err := b.db.DB().QueryContext(ctx,
		`SELECT id, name, scope, scope_ref_id, period, limit_usd, thresholds, created_at FROM budgets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Budget
	for rows.Next() {
		budget := &models.Budget{}
		var rawThresholds []byte
		if err := rows.Scan(&budget.ID, &budget.Name, &budget.Scope, &budget.ScopeRefID, &budget.Period,
			&budget.LimitUSD, &rawThresholds, &budget.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal(rawThresholds, &budget.Thresholds)
		out = append(out, budget)
	}
	return out, rows.Err()
}

type BudgetAlertDB struct {
	db *Database
}

func NewBudgetAlertDB(database *Database) *BudgetAlertDB {
	return &BudgetAlertDB{db: database}
}

// Create is a no-op (returns nil) on a duplicate (budget, threshold, period)
// triple — the unique index enforces "fire each threshold crossing once".
func (a *BudgetAlertDB) Create(ctx context.Context, alert *models.BudgetAlert) error {
	_, err := a.db.DB().ExecContext(ctx, `
		INSERT INTO budget_alerts (id, budget_id, threshold, period_start, actual_usd, triggered_at)
		VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT DO NOTHING`,
		alert.ID, alert.BudgetID, alert.Threshold, alert.PeriodStart, alert.ActualUSD, alert.TriggeredAt,
	)
	return err
}

type CostAnomalyDB struct {
	db *Database
}

func NewCostAnomalyDB(database *Database) *CostAnomalyDB {
	return &CostAnomalyDB{db: database}
}

func (a *CostAnomalyDB) Create(ctx context.Context, anomaly *models.CostAnomaly) error {
	_, err := a.db.DB().ExecContext(ctx, `
		INSERT INTO cost_anomalies (id, instance_id, window_start, window_end, actual_usd, expected_usd, deviation_pct, detected_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		anomaly.ID, anomaly.InstanceID, anomaly.WindowStart, anomaly.WindowEnd,
		anomaly.ActualUSD, anomaly.ExpectedUSD, anomaly.DeviationPct, anomaly.DetectedAt,
	)
	return err
}

type OptimizationRecommendationDB struct {
	db *Database
}

func NewOptimizationRecommendationDB(database *Database) *OptimizationRecommendationDB {
	return &OptimizationRecommendationDB{db: database}
}

func (o *OptimizationRecommendationDB) Create(ctx context.Context, rec *models.OptimizationRecommendation) error {
	_, err := o.db.DB().ExecContext(ctx, `
		INSERT INTO optimization_recommendations (id, instance_id, action, potential_savings_usd, confidence, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.InstanceID, rec.Action, rec.PotentialSavingsUSD, rec.Confidence, rec.Description, rec.CreatedAt,
	)
	return err
}

func (o *OptimizationRecommendationDB) ListForInstance(ctx context.Context, instanceID string) ([]*models.OptimizationRecommendation, error) {
	rows, err := o.db.DB().QueryContext(ctx, `
		SELECT id, instance_id, action, potential_savings_usd, confidence, description, created_at
		FROM optimization_recommendations WHERE instance_id = $1 ORDER BY created_at DESC`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.OptimizationRecommendation
	for rows.Next() {
		rec := &models.OptimizationRecommendation{}
		if err := rows.Scan(&rec.ID, &rec.InstanceID, &rec.Action, &rec.PotentialSavingsUSD,
			&rec.Confidence, &rec.Description, &rec.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
