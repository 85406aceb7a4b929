// Package catalogschema ships the JSON schemas for the treatment-goal and
// conditions catalogs and loads catalog files that conform to them.
package catalogschema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"planscape-scenarios/internal/common/validation"
	"planscape-scenarios/internal/models"
)

//go:embed treatment_goals.schema.json
var TreatmentGoalsSchema []byte

//go:embed conditions.schema.json
var ConditionsSchema []byte

// Kind selects which catalog a file holds.
type Kind string

const (
	KindTreatmentGoals Kind = "treatment-goals"
	KindConditions     Kind = "conditions"
)

// SchemaFor returns the embedded schema for a catalog kind.
func SchemaFor(kind Kind) ([]byte, error) {
	switch kind {
	case KindTreatmentGoals:
		return TreatmentGoalsSchema, nil
	case KindConditions:
		return ConditionsSchema, nil
	}
	return nil, fmt.Errorf("unknown catalog kind %q", kind)
}

// NewValidator compiles the schema for kind.
func NewValidator(kind Kind) (*validation.Validator, error) {
	schema, err := SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	return validation.NewValidator(string(kind), schema)
}

// Validate checks a raw catalog document.
func Validate(kind Kind, data []byte) (*validation.ValidationResult, error) {
	v, err := NewValidator(kind)
	if err != nil {
		return nil, err
	}
	return v.ValidateBytes(data)
}

// LoadTreatmentGoals reads and validates a treatment-goal catalog file.
func LoadTreatmentGoals(path string) ([]models.TreatmentGoalConfig, error) {
	data, err := readValid(path, KindTreatmentGoals)
	if err != nil {
		return nil, err
	}
	var goals []models.TreatmentGoalConfig
	if err := json.Unmarshal(data, &goals); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return goals, nil
}

// LoadConditions reads and validates a conditions catalog file.
func LoadConditions(path string) (*models.ConditionsConfig, error) {
	data, err := readValid(path, KindConditions)
	if err != nil {
		return nil, err
	}
	var cfg models.ConditionsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &cfg, nil
}

func readValid(path string, kind Kind) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	result, err := Validate(kind, data)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}
