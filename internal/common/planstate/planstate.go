// Package planstate holds the ambient plan context shared with the map and
// summary panel: the active plan and scenario, the displayed condition layer,
// and the project-area shapes to draw.
package planstate

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"planscape-scenarios/internal/models"
)

// Store is the plan-state collaborator.
type Store interface {
	CurrentPlanID(ctx context.Context) (string, error)
	CurrentScenarioID(ctx context.Context) (string, error)
	SetCurrentScenarioID(ctx context.Context, scenarioID string) error
	SetConditionLayer(ctx context.Context, layer string) error
	// SetProjectAreaShapes replaces the drawn shapes; nil clears them.
	SetProjectAreaShapes(ctx context.Context, shapes json.RawMessage) error
	Snapshot(ctx context.Context) (models.PlanState, error)
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	state models.PlanState
	now   func() time.Time
}

func NewMemory(planID, scenarioID string) *Memory {
	return &Memory{
		state: models.PlanState{CurrentPlanID: planID, CurrentScenarioID: scenarioID},
		now:   time.Now,
	}
}

func (m *Memory) CurrentPlanID(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.CurrentPlanID, nil
}

func (m *Memory) CurrentScenarioID(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.CurrentScenarioID, nil
}

func (m *Memory) SetCurrentScenarioID(ctx context.Context, scenarioID string) error {
	m.update(func(s *models.PlanState) { s.CurrentScenarioID = scenarioID })
	return nil
}

func (m *Memory) SetConditionLayer(ctx context.Context, layer string) error {
	m.update(func(s *models.PlanState) { s.ConditionLayer = layer })
	return nil
}

func (m *Memory) SetProjectAreaShapes(ctx context.Context, shapes json.RawMessage) error {
	m.update(func(s *models.PlanState) { s.ProjectAreaShapes = cloneRaw(shapes) })
	return nil
}

func (m *Memory) Snapshot(ctx context.Context) (models.PlanState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.state
	out.ProjectAreaShapes = cloneRaw(m.state.ProjectAreaShapes)
	return out, nil
}

func (m *Memory) update(fn func(*models.PlanState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
	m.state.UpdatedAt = m.now().UTC()
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
