package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type ExtensionApprovalStatus string

const (
	ExtApproved   ExtensionApprovalStatus = "APPROVED"
	ExtDeprecated ExtensionApprovalStatus = "DEPRECATED"
	ExtRejected   ExtensionApprovalStatus = "REJECTED"
	ExtPending    ExtensionApprovalStatus = "PENDING"
)

type Extension struct {
	ID          string                  `json:"id" db:"id"`
	Slug        string                  `json:"slug" db:"slug"`
	Name        string                  `json:"name" db:"name"`
	Description string                  `json:"description,omitempty" db:"description"`
	Status      ExtensionApprovalStatus `json:"status" db:"status"`
	CreatedAt   time.Time               `json:"createdAt" db:"created_at"`
}

type ExtensionVersion struct {
	ID          string    `json:"id" db:"id"`
	ExtensionID string    `json:"extensionId" db:"extension_id"`
	Version     string    `json:"version" db:"version"`
	ReleasedAt  time.Time `json:"releasedAt" db:"released_at"`
}

type ExtensionInstallation struct {
	ID          string    `json:"id" db:"id"`
	InstanceID  string    `json:"instanceId" db:"instance_id"`
	ExtensionID string    `json:"extensionId" db:"extension_id"`
	Version     string    `json:"version" db:"version"`
	InstalledAt time.Time `json:"installedAt" db:"installed_at"`
}

// StringList is a JSONB-backed []string, used for provider_recommendations
// and the deployment template's extension list.
type StringList []string

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// DeploymentTemplate is a pure data projection consumed by the wizard's
// client-driven steps (template → configure → provider → review → deploy).
type DeploymentTemplate struct {
	ID                     string     `json:"id" db:"id"`
	Name                   string     `json:"name" db:"name"`
	Slug                   string     `json:"slug" db:"slug"`
	Category               string     `json:"category" db:"category"`
	Description            string     `json:"description,omitempty" db:"description"`
	Extensions             StringList `json:"extensions" db:"extensions"`
	ProviderRecommendations StringList `json:"providerRecommendations" db:"provider_recommendations"`
	YAMLContent            string     `json:"yamlContent" db:"yaml_content"`
	IsOfficial             bool       `json:"isOfficial" db:"is_official"`
	CreatedBy              string     `json:"createdBy" db:"created_by"`
	CreatedAt              time.Time  `json:"createdAt" db:"created_at"`
}
