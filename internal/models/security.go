package models

import "time"

// SBOM is a per-instance software bill of materials snapshot.
type SBOM struct {
	ID         string    `json:"id" db:"id"`
	InstanceID string    `json:"instanceId" db:"instance_id"`
	GeneratedAt time.Time `json:"generatedAt" db:"generated_at"`
}

// SbomComponent is a single component, identified in PURL form.
type SbomComponent struct {
	ID      string  `json:"id" db:"id"`
	SbomID  string  `json:"sbomId" db:"sbom_id"`
	Purl    string  `json:"purl" db:"purl"`
	Version string  `json:"version" db:"version"`
	License *string `json:"license,omitempty" db:"license"`
}

type CVESeverity string

const (
	CVECritical CVESeverity = "CRITICAL"
	CVEHigh     CVESeverity = "HIGH"
	CVEMedium   CVESeverity = "MEDIUM"
	CVELow      CVESeverity = "LOW"
)

// SeverityForScore maps a CVSS 3.x score to its band per §4.9.
func SeverityForScore(cvss float64) CVESeverity {
	switch {
	case cvss >= 9.0:
		return CVECritical
	case cvss >= 7.0:
		return CVEHigh
	case cvss >= 4.0:
		return CVEMedium
	default:
		return CVELow
	}
}

var cveWeight = map[CVESeverity]float64{
	CVECritical: 25,
	CVEHigh:     12,
	CVEMedium:   5,
	CVELow:      1,
}

func (s CVESeverity) Weight() float64 { return cveWeight[s] }

type VulnerabilityStatus string

const (
	VulnOpen          VulnerabilityStatus = "OPEN"
	VulnAcknowledged  VulnerabilityStatus = "ACKNOWLEDGED"
	VulnPatching      VulnerabilityStatus = "PATCHING"
	VulnFixed         VulnerabilityStatus = "FIXED"
	VulnAcceptedRisk  VulnerabilityStatus = "ACCEPTED_RISK"
	VulnFalsePositive VulnerabilityStatus = "FALSE_POSITIVE"
)

// CveVulnerability is linked to components by (affected_component, affected_version)
// and surfaces against every instance whose SBOM contains a match.
type CveVulnerability struct {
	ID                string              `json:"id" db:"id"`
	CVEID             string              `json:"cveId" db:"cve_id"`
	AffectedComponent string              `json:"affectedComponent" db:"affected_component"`
	AffectedVersion   string              `json:"affectedVersion" db:"affected_version"`
	CVSS              float64             `json:"cvss" db:"cvss"`
	Severity          CVESeverity         `json:"severity" db:"severity"`
	Status            VulnerabilityStatus `json:"status" db:"status"`
	Description       string              `json:"description,omitempty" db:"description"`
	DiscoveredAt      time.Time           `json:"discoveredAt" db:"discovered_at"`
}

type SecretFinding struct {
	ID          string    `json:"id" db:"id"`
	InstanceID  string    `json:"instanceId" db:"instance_id"`
	Location    string    `json:"location" db:"location"`
	Kind        string    `json:"kind" db:"kind"`
	RotatedAt   *time.Time `json:"rotatedAt,omitempty" db:"rotated_at"`
	DetectedAt  time.Time `json:"detectedAt" db:"detected_at"`
}

func (f *SecretFinding) Unrotated() bool { return f.RotatedAt == nil }

// SecurityScore is a 0-100 per-instance grade, recomputed as CVEs and
// secret findings change.
type SecurityScore struct {
	InstanceID string    `json:"instanceId" db:"instance_id"`
	Score      int       `json:"score" db:"score"`
	Grade      string    `json:"grade" db:"grade"`
	ComputedAt time.Time `json:"computedAt" db:"computed_at"`
}

// GradeFor maps a 0-100 score to its letter band.
func GradeFor(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
