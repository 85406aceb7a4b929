package workflow

import (
	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/form"
)

// Tab is the visible panel.
type Tab int

const (
	TabConfig Tab = iota
	TabResults
)

func (t Tab) String() string {
	if t == TabResults {
		return "results"
	}
	return "config"
}

// State is an immutable snapshot handed to listeners.
type State struct {
	Phase       models.ScenarioStatus
	ScenarioID  string
	SelectedTab Tab
	Generating  bool
	ChartSeries []models.ChartSeries
	Result      *models.Scenario
	LastError   *commonerrors.StandardError
	Form        form.Snapshot
}

// Listener observes state changes. Listeners run synchronously, in mutation
// order, and must not call mutating Controller methods.
type Listener func(State)

func cloneSeries(in []models.ChartSeries) []models.ChartSeries {
	if in == nil {
		return nil
	}
	out := make([]models.ChartSeries, len(in))
	for i, s := range in {
		s.Values = append([]float64(nil), s.Values...)
		out[i] = s
	}
	return out
}
