package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type ConditionOp string

const (
	OpGT  ConditionOp = "gt"
	OpGTE ConditionOp = "gte"
	OpLT  ConditionOp = "lt"
	OpLTE ConditionOp = "lte"
	OpEQ  ConditionOp = "eq"
)

// Evaluate reports whether sample satisfies op against threshold.
func (op ConditionOp) Evaluate(sample, threshold float64) bool {
	switch op {
	case OpGT:
		return sample > threshold
	case OpGTE:
		return sample >= threshold
	case OpLT:
		return sample < threshold
	case OpLTE:
		return sample <= threshold
	case OpEQ:
		return sample == threshold
	default:
		return false
	}
}

type AlertCondition struct {
	Metric    string      `json:"metric"`
	Op        ConditionOp `json:"op"`
	Threshold float64     `json:"threshold"`
}

type AlertConditions []AlertCondition

func (c *AlertConditions) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, c)
}

func (c AlertConditions) Value() (driver.Value, error) {
	return json.Marshal([]AlertCondition(c))
}

type Combinator string

const (
	CombinatorAND Combinator = "AND"
	CombinatorOR  Combinator = "OR"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

type NotifyChannel string

const (
	ChannelEmail   NotifyChannel = "email"
	ChannelWebhook NotifyChannel = "webhook"
	ChannelSlack   NotifyChannel = "slack"
)

// NotifyTarget is the JSONB-backed per-channel destination config: a
// webhook URL, an email recipient list, or a Slack channel/webhook.
type NotifyTarget struct {
	Channel    NotifyChannel `json:"channel"`
	WebhookURL string        `json:"webhookUrl,omitempty"`
	Recipients []string      `json:"recipients,omitempty"`
	SlackURL   string        `json:"slackUrl,omitempty"`
}

type NotifyTargets []NotifyTarget

func (t *NotifyTargets) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, t)
}

func (t NotifyTargets) Value() (driver.Value, error) {
	return json.Marshal([]NotifyTarget(t))
}

// AlertRule is evaluated on every new metric sample for its target(s).
type AlertRule struct {
	ID             string          `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Conditions     AlertConditions `json:"conditions" db:"conditions"`
	Combinator     Combinator      `json:"combinator" db:"combinator"`
	Severity       Severity        `json:"severity" db:"severity"`
	EvalWindowSec  int             `json:"evalWindowSec" db:"eval_window_sec"`
	PendingForSec  int             `json:"pendingForSec" db:"pending_for_sec"`
	CooldownSec    int             `json:"cooldownSec" db:"cooldown_sec"`
	TargetInstance *string         `json:"targetInstance,omitempty" db:"target_instance"`
	Notify         NotifyTargets   `json:"notify" db:"notify"`
	Enabled        bool            `json:"enabled" db:"enabled"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time       `json:"updatedAt" db:"updated_at"`
}

// AlertState is the per-(rule,instance) state machine position.
type AlertState string

const (
	AlertInactive AlertState = "INACTIVE"
	AlertPending  AlertState = "PENDING"
	AlertFiring   AlertState = "FIRING"
	AlertResolved AlertState = "RESOLVED"
)

type AlertEvent struct {
	ID                string     `json:"id" db:"id"`
	RuleID            string     `json:"ruleId" db:"rule_id"`
	InstanceID        string     `json:"instanceId" db:"instance_id"`
	State             AlertState `json:"state" db:"state"`
	TriggerMetric     string     `json:"triggerMetric" db:"trigger_metric"`
	TriggerValue      float64    `json:"triggerValue" db:"trigger_value"`
	Message           string     `json:"message" db:"message"`
	FiredAt           *time.Time `json:"firedAt,omitempty" db:"fired_at"`
	ResolvedAt        *time.Time `json:"resolvedAt,omitempty" db:"resolved_at"`
	PendingSince      *time.Time `json:"-" db:"pending_since"`
	NotificationsSent int        `json:"notificationsSent" db:"notifications_sent"`
	LastNotifiedAt    *time.Time `json:"-" db:"last_notified_at"`
}
