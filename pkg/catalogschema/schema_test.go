package catalogschema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_TreatmentGoals(t *testing.T) {
	valid := []byte(`[{"category_name":"Fire","questions":[{"short_question_text":"Reduce fire risk",
		"scenario_output_fields_paths":{"cost":["fire","fuel","cost"]},"weights":[1,2]}]}]`)
	result, err := Validate(KindTreatmentGoals, valid)
	require.NoError(t, err)
	assert.True(t, result.Valid, result.GetErrorMessages())

	invalid := []byte(`[{"questions":[{"scenario_output_fields_paths":{"cost":["fire"]}}]}]`)
	result, err = Validate(KindTreatmentGoals, invalid)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Error(t, result.Err())
	assert.NotEmpty(t, result.GetErrorsForField("0"))
}

func TestValidate_UnknownKind(t *testing.T) {
	_, err := Validate(Kind("plans"), []byte(`{}`))
	assert.Error(t, err)
}

func TestLoadConditions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conditions.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pillars":[{"pillar_name":"fire","elements":[
		{"element_name":"fuel","metrics":[{"metric_name":"cost","display_name":"Cost","data_units":"$/ac","raw_layer":"cost_raw"}]}]}]}`), 0o600))

	cfg, err := LoadConditions(path)
	require.NoError(t, err)
	m, ok := cfg.LookupMetric([]string{"fire", "fuel", "cost"})
	require.True(t, ok)
	assert.Equal(t, "$/ac", m.DataUnits)

	require.NoError(t, os.WriteFile(path, []byte(`{"region_name":"x"}`), 0o600))
	_, err = LoadConditions(path)
	assert.Error(t, err)
}
