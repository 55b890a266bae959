package models

import "time"

type CostCategory string

const (
	CostCompute CostCategory = "COMPUTE"
	CostStorage CostCategory = "STORAGE"
	CostNetwork CostCategory = "NETWORK"
	CostEgress  CostCategory = "EGRESS"
	CostOther   CostCategory = "OTHER"
)

type CostEntry struct {
	ID          string       `json:"id" db:"id"`
	InstanceID  string       `json:"instanceId" db:"instance_id"`
	Category    CostCategory `json:"category" db:"category"`
	AmountUSD   float64      `json:"amountUsd" db:"amount_usd"`
	PeriodStart time.Time    `json:"periodStart" db:"period_start"`
	PeriodEnd   time.Time    `json:"periodEnd" db:"period_end"`
	Provider    Provider     `json:"provider" db:"provider"`
}

type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetWeekly  BudgetPeriod = "weekly"
	BudgetMonthly BudgetPeriod = "monthly"
)

type BudgetScope string

const (
	BudgetScopeTeam     BudgetScope = "team"
	BudgetScopeInstance BudgetScope = "instance"
	BudgetScopeFleet    BudgetScope = "fleet"
)

// Budget is a recurring spend limit scoped to a team, instance, or the fleet.
type Budget struct {
	ID         string       `json:"id" db:"id"`
	Name       string       `json:"name" db:"name"`
	Scope      BudgetScope  `json:"scope" db:"scope"`
	ScopeRefID *string      `json:"scopeRefId,omitempty" db:"scope_ref_id"`
	Period     BudgetPeriod `json:"period" db:"period"`
	LimitUSD   float64      `json:"limitUsd" db:"limit_usd"`
	Thresholds []int        `json:"thresholds" db:"-"`
	CreatedAt  time.Time    `json:"createdAt" db:"created_at"`
}

type BudgetAlert struct {
	ID            string    `json:"id" db:"id"`
	BudgetID      string    `json:"budgetId" db:"budget_id"`
	Threshold     int       `json:"threshold" db:"threshold"`
	PeriodStart   time.Time `json:"periodStart" db:"period_start"`
	ActualUSD     float64   `json:"actualUsd" db:"actual_usd"`
	TriggeredAt   time.Time `json:"triggeredAt" db:"triggered_at"`
}

// CostAnomaly flags a window whose actual spend deviated from expected by
// more than 50%.
type CostAnomaly struct {
	ID           string    `json:"id" db:"id"`
	InstanceID   *string   `json:"instanceId,omitempty" db:"instance_id"`
	WindowStart  time.Time `json:"windowStart" db:"window_start"`
	WindowEnd    time.Time `json:"windowEnd" db:"window_end"`
	ActualUSD    float64   `json:"actualUsd" db:"actual_usd"`
	ExpectedUSD  float64   `json:"expectedUsd" db:"expected_usd"`
	DeviationPct float64   `json:"deviationPct" db:"deviation_pct"`
	DetectedAt   time.Time `json:"detectedAt" db:"detected_at"`
}

type OptimizationRecommendation struct {
	ID              string    `json:"id" db:"id"`
	InstanceID      string    `json:"instanceId" db:"instance_id"`
	Action          string    `json:"action" db:"action"`
	PotentialSavingsUSD float64 `json:"potentialSavingsUsd" db:"potential_savings_usd"`
	Confidence      int       `json:"confidence" db:"confidence"`
	Description     string    `json:"description" db:"description"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}
