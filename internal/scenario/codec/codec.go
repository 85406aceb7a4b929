// Package codec maps between the scenario form and the wire-level Scenario,
// and splits uploaded feature collections into one collection per feature.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/constraints"
	"planscape-scenarios/internal/scenario/form"
)

// Encode freezes a form snapshot into a Scenario for the creation call. Only
// fields that are present and pass their own rule are emitted.
func Encode(s form.Snapshot, planID string) (*models.Scenario, error) {
	checked := constraints.Validate(s.Constraints)
	invalid := make(map[string]bool, len(checked.Violations))
	for _, v := range checked.Violations {
		invalid[v.Field] = true
	}

	number := func(field, raw string) *float64 {
		if invalid[field] || strings.TrimSpace(raw) == "" {
			return nil
		}
		n, ok := constraints.ParseNumber(raw)
		if !ok {
			return nil
		}
		return &n
	}

	cfg := models.ScenarioConfig{
		EstimatedCost:         number(constraints.FieldEstimatedCost, s.Constraints.EstimatedCost),
		MaxBudget:             number(constraints.FieldMaxCost, s.Constraints.MaxCost),
		MaxTreatmentAreaRatio: number(constraints.FieldMaxArea, s.Constraints.MaxArea),
		MinDistanceFromRoad:   number(constraints.FieldMinDistanceFromRoad, s.Constraints.MinDistanceFromRoad),
		MaxSlope:              number(constraints.FieldMaxSlope, s.Constraints.MaxSlope),
	}

	if size := models.StandSize(strings.TrimSpace(s.Constraints.StandSize)); size.Valid() {
		cfg.StandSize = size
	}

	cfg.ExcludedAreas = []string{}
	for _, opt := range s.ExcludedAreaOptions {
		if s.Constraints.ExcludedAreas[opt] {
			cfg.ExcludedAreas = append(cfg.ExcludedAreas, opt)
		}
	}

	if q := s.Priorities.SelectedQuestion; q != nil {
		cp := *q
		cfg.TreatmentQuestion = &cp
	}

	name := strings.TrimSpace(s.Name.ScenarioName)
	if name == "" {
		return nil, fmt.Errorf("%w: scenario name is required", form.ErrFormInvalid)
	}
	if !cfg.HasBudgetOrArea() {
		return nil, fmt.Errorf("%w: max budget or max treatment area is required", form.ErrFormInvalid)
	}

	return &models.Scenario{
		Name:           name,
		PlanningAreaID: models.ID(planID),
		Configuration:  cfg,
	}, nil
}

// Hydrate copies a fetched scenario into the form. Only fields present in
// the scenario overwrite form values; a present zero does overwrite.
func Hydrate(f *form.Form, sc *models.Scenario) {
	if f == nil || sc == nil {
		return
	}
	cfg := sc.Configuration

	var p form.Patch
	if sc.Name != "" {
		name := sc.Name
		p.ScenarioName = &name
	}
	if cfg.TreatmentQuestion != nil {
		q := *cfg.TreatmentQuestion
		p.SelectedQuestion = &q
	}
	p.EstimatedCost = formatPtr(cfg.EstimatedCost)
	p.MaxCost = formatPtr(cfg.MaxBudget)
	p.MaxArea = formatPtr(cfg.MaxTreatmentAreaRatio)
	p.MinDistanceFromRoad = formatPtr(cfg.MinDistanceFromRoad)
	p.MaxSlope = formatPtr(cfg.MaxSlope)
	if cfg.StandSize != "" {
		size := string(cfg.StandSize)
		p.StandSize = &size
	}
	if cfg.ExcludedAreas != nil {
		p.ExcludedAreas = append([]string{}, cfg.ExcludedAreas...)
	}

	f.Apply(p)
}

// FormatNumber renders a number the way it would be typed: shortest exact
// decimal, no exponent.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPtr(v *float64) *string {
	if v == nil {
		return nil
	}
	s := FormatNumber(*v)
	return &s
}
