package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conditionsDoc = `{"region_name": "sierra_nevada", "pillars": [{"pillar_name": "fire", "elements": [
	{"element_name": "hazard", "metrics": [{"metric_name": "cost", "display_name": "Cost", "data_units": "$/ac"}]}]}]}`

const goalsDoc = `[{"category_name": "Fire", "questions": [
	{"short_question_text": "Reduce risk", "scenario_output_fields_paths": {"cost": ["fire", "hazard", "cost"], "slope": ["fire", "terrain", "slope"]}}]}]`

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestCheckPaths(t *testing.T) {
	missing, err := checkPaths(write(t, "goals.json", goalsDoc), write(t, "conditions.json", conditionsDoc))
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "slope")
}

func TestValidateFile(t *testing.T) {
	assert.NoError(t, validateFile("conditions", write(t, "c.json", conditionsDoc)))
	assert.Error(t, validateFile("conditions", write(t, "bad.json", `{"pillars": "nope"}`)))
	assert.Error(t, validateFile("unknown", write(t, "x.json", `{}`)))
}
