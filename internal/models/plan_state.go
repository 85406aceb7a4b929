// internal/models/plan_state.go
package models

import (
	"encoding/json"
	"time"
)

// PlanState is the ambient plan context shared with the map and summary panel.
type PlanState struct {
	CurrentPlanID     string          `json:"currentPlanId" db:"plan_id"`
	CurrentScenarioID string          `json:"currentScenarioId,omitempty" db:"scenario_id"`
	ConditionLayer    string          `json:"conditionLayer,omitempty" db:"condition_layer"`
	ProjectAreaShapes json.RawMessage `json:"projectAreaShapes,omitempty" db:"project_area_shapes"`
	UpdatedAt         time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasScenario reports whether a scenario is attached to the session.
func (p *PlanState) HasScenario() bool {
	return p != nil && p.CurrentScenarioID != ""
}
