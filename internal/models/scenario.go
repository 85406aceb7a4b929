// internal/models/scenario.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// ScenarioStatus is the lifecycle state of a scenario's remote job as observed by the client.
type ScenarioStatus string

const (
	StatusNotStarted ScenarioStatus = "NOT_STARTED"
	StatusLoading    ScenarioStatus = "LOADING"
	StatusPending    ScenarioStatus = "PENDING"
	StatusRunning    ScenarioStatus = "RUNNING"
	StatusSuccess    ScenarioStatus = "SUCCESS"
	StatusFailure    ScenarioStatus = "FAILURE"
)

// IsTerminal reports whether no further polling-driven transitions can occur.
func (s ScenarioStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// IsActive reports whether a timer tick should fetch the scenario.
func (s ScenarioStatus) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// StandSize is the stand granularity used by the remote job.
type StandSize string

const (
	StandSizeSmall  StandSize = "SMALL"
	StandSizeMedium StandSize = "MEDIUM"
	StandSizeLarge  StandSize = "LARGE"
)

// Valid reports whether s is one of the known stand sizes.
func (s StandSize) Valid() bool {
	switch s {
	case StandSizeSmall, StandSizeMedium, StandSizeLarge:
		return true
	}
	return false
}

// ScenarioConfig is the wire-level configuration of a scenario.
type ScenarioConfig struct {
	StandSize             StandSize                `json:"stand_size,omitempty"`
	ExcludedAreas         []string                 `json:"excluded_areas,omitempty"`
	EstimatedCost         *float64                 `json:"est_cost,omitempty"`
	MaxBudget             *float64                 `json:"max_budget,omitempty"`
	MaxTreatmentAreaRatio *float64                 `json:"max_treatment_area_ratio,omitempty"`
	MinDistanceFromRoad   *float64                 `json:"min_distance_from_road,omitempty"`
	MaxSlope              *float64                 `json:"max_slope,omitempty"`
	TreatmentQuestion     *TreatmentQuestionConfig `json:"treatment_question,omitempty"`
}

// HasBudgetOrArea reports whether the submission invariant holds.
func (c ScenarioConfig) HasBudgetOrArea() bool {
	return c.MaxBudget != nil || c.MaxTreatmentAreaRatio != nil
}

// Scenario is a submitted configuration plus its eventual computed result.
type Scenario struct {
	ID             ID              `json:"id,omitempty"`
	Name           string          `json:"name"`
	PlanningAreaID ID              `json:"planning_area"`
	Configuration  ScenarioConfig  `json:"configuration"`
	Result         *ScenarioResult `json:"scenario_result,omitempty"`
}

// ScenarioResult carries the job status and, once successful, the result geometry.
type ScenarioResult struct {
	Status         ScenarioStatus             `json:"status"`
	ResultGeometry *geojson.FeatureCollection `json:"result,omitempty"`
}

// ChartSeries is one metric column derived from a successful result.
type ChartSeries struct {
	Label       string    `json:"label"`
	Measurement string    `json:"measurement"`
	MetricLayer string    `json:"metric_layer"`
	Values      []float64 `json:"values"`
}

// CreateScenarioResponse is returned by the creation endpoint.
type CreateScenarioResponse struct {
	ID ID `json:"id"`
}

// ID is a server-assigned identifier. The API emits numeric ids for some
// resources and string uuids for others; both decode into the same value.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }
