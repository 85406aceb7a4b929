package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"planscape-scenarios/internal/scenario/workflow"
)

// formFile is the YAML rendering of the scenario form. Numeric fields stay
// strings so they are validated exactly as typed.
type formFile struct {
	Name                   string   `yaml:"name"`
	Question               string   `yaml:"question"`
	EstimatedCost          *string  `yaml:"estimated_cost"`
	MaxCost                *string  `yaml:"max_cost"`
	MaxArea                *string  `yaml:"max_area"`
	MinDistanceFromRoad    *string  `yaml:"min_distance_from_road"`
	MaxSlope               *string  `yaml:"max_slope"`
	StandSize              *string  `yaml:"stand_size"`
	ExcludedAreas          []string `yaml:"excluded_areas"`
	ExcludeAreasByDegrees  *bool    `yaml:"exclude_areas_by_degrees"`
	ExcludeAreasByDistance *bool    `yaml:"exclude_areas_by_distance"`
	GenerateAreas          bool     `yaml:"generate_areas"`
	// UploadedArea is a GeoJSON file path, relative to the form file.
	UploadedArea string `yaml:"uploaded_area"`

	dir string
}

func loadFormFile(path string) (*formFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form file: %w", err)
	}
	var f formFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse form file %s: %w", path, err)
	}
	f.dir = filepath.Dir(path)
	return &f, nil
}

// apply replays the file through the controller's field setters.
func (f *formFile) apply(ctx context.Context, ctrl *workflow.Controller) error {
	if err := ctrl.SetScenarioName(f.Name); err != nil {
		return err
	}
	if f.Question != "" {
		if err := ctrl.SelectQuestion(ctx, f.Question); err != nil {
			return err
		}
	}

	strings := []struct {
		v   *string
		set func(string) error
	}{
		{f.EstimatedCost, ctrl.SetEstimatedCost},
		{f.MaxCost, ctrl.SetMaxCost},
		{f.MaxArea, ctrl.SetMaxArea},
		{f.MinDistanceFromRoad, ctrl.SetMinDistanceFromRoad},
		{f.MaxSlope, ctrl.SetMaxSlope},
		{f.StandSize, ctrl.SetStandSize},
	}
	for _, s := range strings {
		if s.v == nil {
			continue
		}
		if err := s.set(*s.v); err != nil {
			return err
		}
	}

	for _, area := range f.ExcludedAreas {
		if err := ctrl.SetExcludedArea(area, true); err != nil {
			return err
		}
	}
	if f.ExcludeAreasByDegrees != nil {
		if err := ctrl.SetExcludeAreasByDegrees(*f.ExcludeAreasByDegrees); err != nil {
			return err
		}
	}
	if f.ExcludeAreasByDistance != nil {
		if err := ctrl.SetExcludeAreasByDistance(*f.ExcludeAreasByDistance); err != nil {
			return err
		}
	}

	if f.UploadedArea != "" {
		path := f.UploadedArea
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.dir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read uploaded area: %w", err)
		}
		if err := ctrl.SetUploadedArea(ctx, raw); err != nil {
			return err
		}
	}
	return ctrl.SetGenerateAreas(ctx, f.GenerateAreas)
}
