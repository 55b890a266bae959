package models

import "time"

type DriftItemType string

const (
	DriftMissingExtension  DriftItemType = "MISSING_EXTENSION"
	DriftConfigHashChange  DriftItemType = "CONFIG_HASH_CHANGE"
	DriftExtensionMismatch DriftItemType = "EXTENSION_MISMATCH"
	DriftResourceDrift     DriftItemType = "RESOURCE_DRIFT"
	DriftVersionMismatch   DriftItemType = "VERSION_MISMATCH"
	DriftExtraExtension    DriftItemType = "EXTRA_EXTENSION"
)

// driftSeverity fixes each item type's severity per §4.9.
var driftSeverity = map[DriftItemType]DriftSeverity{
	DriftMissingExtension:  SeverityCriticalDrift,
	DriftConfigHashChange:  SeverityHighDrift,
	DriftExtensionMismatch: SeverityHighDrift,
	DriftResourceDrift:     SeverityMediumDrift,
	DriftVersionMismatch:   SeverityMediumDrift,
	DriftExtraExtension:    SeverityLowDrift,
}

func (t DriftItemType) Severity() DriftSeverity { return driftSeverity[t] }

type DriftSeverity string

const (
	SeverityCriticalDrift DriftSeverity = "CRITICAL"
	SeverityHighDrift     DriftSeverity = "HIGH"
	SeverityMediumDrift   DriftSeverity = "MEDIUM"
	SeverityLowDrift      DriftSeverity = "LOW"
)

var driftSeverityRank = map[DriftSeverity]int{
	SeverityCriticalDrift: 4,
	SeverityHighDrift:     3,
	SeverityMediumDrift:   2,
	SeverityLowDrift:      1,
}

// HighestSeverity returns the most severe of a and b.
func HighestSeverity(a, b DriftSeverity) DriftSeverity {
	if driftSeverityRank[b] > driftSeverityRank[a] {
		return b
	}
	return a
}

type DriftReportStatus string

const (
	DriftDetected     DriftReportStatus = "DETECTED"
	DriftAcknowledged DriftReportStatus = "ACKNOWLEDGED"
	DriftRemediating  DriftReportStatus = "REMEDIATING"
	DriftResolved     DriftReportStatus = "RESOLVED"
	DriftSuppressed   DriftReportStatus = "SUPPRESSED"
)

type DriftItem struct {
	ID          string        `json:"id" db:"id"`
	ReportID    string        `json:"reportId" db:"report_id"`
	DriftType   DriftItemType `json:"driftType" db:"drift_type"`
	Severity    DriftSeverity `json:"severity" db:"severity"`
	Field       string        `json:"field" db:"field"`
	Expected    string        `json:"expected,omitempty" db:"expected"`
	Actual      string        `json:"actual,omitempty" db:"actual"`
}

type DriftReport struct {
	ID         string            `json:"id" db:"id"`
	InstanceID string            `json:"instanceId" db:"instance_id"`
	Severity   DriftSeverity     `json:"severity" db:"severity"`
	Status     DriftReportStatus `json:"status" db:"status"`
	Items      []DriftItem       `json:"items,omitempty" db:"-"`
	DetectedAt time.Time         `json:"detectedAt" db:"detected_at"`
	ResolvedAt *time.Time        `json:"resolvedAt,omitempty" db:"resolved_at"`
}

type RemediationMode string

const (
	RemediationManual    RemediationMode = "MANUAL"
	RemediationAutomatic RemediationMode = "AUTOMATIC"
)

type RemediationJob struct {
	ID           string          `json:"id" db:"id"`
	ReportID     string          `json:"reportId" db:"report_id"`
	Mode         RemediationMode `json:"mode" db:"mode"`
	TriggeredBy  string          `json:"triggeredBy" db:"triggered_by"`
	Status       string          `json:"status" db:"status"`
	Log          string          `json:"log,omitempty" db:"log"`
	StartedAt    time.Time       `json:"startedAt" db:"started_at"`
	FinishedAt   *time.Time      `json:"finishedAt,omitempty" db:"finished_at"`
	DurationMs   *int64          `json:"durationMs,omitempty" db:"duration_ms"`
}

// DriftSuppressRule silences a drift type (nil = any) on an instance
// (nil = fleet) until an optional expiry.
type DriftSuppressRule struct {
	ID         string         `json:"id" db:"id"`
	InstanceID *string        `json:"instanceId,omitempty" db:"instance_id"`
	DriftType  *DriftItemType `json:"driftType,omitempty" db:"drift_type"`
	Reason     string         `json:"reason,omitempty" db:"reason"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty" db:"expires_at"`
	CreatedAt  time.Time      `json:"createdAt" db:"created_at"`
}

func (r *DriftSuppressRule) Active(now time.Time) bool {
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

func (r *DriftSuppressRule) Matches(instanceID string, driftType DriftItemType) bool {
	if r.InstanceID != nil && *r.InstanceID != instanceID {
		return false
	}
	if r.DriftType != nil && *r.DriftType != driftType {
		return false
	}
	return true
}
