// internal/models/notification.go
package models

import "time"

// Severity of a user-facing notification.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Notification is a dismissible message surfaced to the user.
type Notification struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message"`
	Action    string    `json:"action"` // label of the dismiss control
	CreatedAt time.Time `json:"createdAt"`
}

// ScenarioOutcome is published when a scenario reaches a terminal status.
type ScenarioOutcome struct {
	ScenarioID     string         `json:"scenarioId"`
	ScenarioName   string         `json:"scenarioName"`
	PlanningAreaID string         `json:"planningAreaId"`
	Status         ScenarioStatus `json:"status"`
	FeatureCount   int            `json:"featureCount"`
	CompletedAt    string         `json:"completedAt"` // RFC 3339
}
