package results

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

type stubMetrics struct {
	infos map[string]models.MetricInfo
	err   error
	calls int
}

func (s *stubMetrics) MetricData(ctx context.Context, paths models.FieldPaths) ([]models.MetricInfo, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.MetricInfo, 0, len(paths))
	for _, p := range paths {
		info, ok := s.infos[p.Metric]
		if !ok {
			return nil, commonerrors.NewMetricNotFoundError(p.Metric, p.Path)
		}
		info.Key = p.Metric
		out = append(out, info)
	}
	return out, nil
}

type shapeRecorder struct {
	shapes []json.RawMessage
	err    error
}

func (r *shapeRecorder) SetProjectAreaShapes(ctx context.Context, shapes json.RawMessage) error {
	r.shapes = append(r.shapes, shapes)
	return r.err
}

func successScenario(t *testing.T, paths string, features string) *models.Scenario {
	t.Helper()
	var sc models.Scenario
	raw := `{"id": 9, "name": "Plan A", "planning_area": 1,
		"configuration": {"treatment_question": {"short_question_text": "Q", "scenario_output_fields_paths": ` + paths + `}},
		"scenario_result": {"status": "SUCCESS", "result": {"type": "FeatureCollection", "features": ` + features + `}}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &sc))
	return &sc
}

const threeCostFeatures = `[
	{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"cost":10.5,"area":1}},
	{"type":"Feature","geometry":{"type":"Point","coordinates":[1,1]},"properties":{"cost":20,"area":2}},
	{"type":"Feature","geometry":{"type":"Point","coordinates":[2,2]},"properties":{"cost":30.25,"area":3}}
]`

func TestProcess_CostSeriesInFeatureOrder(t *testing.T) {
	metrics := &stubMetrics{infos: map[string]models.MetricInfo{
		"cost": {DisplayName: "Cost", DataUnits: "$/ac", RawLayer: "cost_layer"},
	}}
	shapes := &shapeRecorder{}
	p := NewProcessor(metrics, shapes, nil, logger.NewTestLogger(t))

	series, err := p.Process(context.Background(), successScenario(t, `{"cost": ["a","b","cost"]}`, threeCostFeatures))
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, models.ChartSeries{
		Label:       "Cost",
		Measurement: "$/ac",
		MetricLayer: "cost_layer",
		Values:      []float64{10.5, 20, 30.25},
	}, series[0])

	require.Len(t, shapes.shapes, 1)
	fc, err := geojson.UnmarshalFeatureCollection(shapes.shapes[0])
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)
}

func TestProcess_SeriesFollowMappingOrder(t *testing.T) {
	metrics := &stubMetrics{infos: map[string]models.MetricInfo{
		"cost": {DisplayName: "Cost"},
		"area": {DisplayName: "Area"},
	}}
	p := NewProcessor(metrics, &shapeRecorder{}, nil, logger.NewTestLogger(t))

	series, err := p.Process(context.Background(),
		successScenario(t, `{"area": ["a","b","area"], "cost": ["a","b","cost"]}`, threeCostFeatures))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "Area", series[0].Label)
	assert.Equal(t, []float64{1, 2, 3}, series[0].Values)
	assert.Equal(t, "Cost", series[1].Label)
}

func TestProcess_Idempotent(t *testing.T) {
	metrics := &stubMetrics{infos: map[string]models.MetricInfo{"cost": {DisplayName: "Cost", DataUnits: "$/ac"}}}
	shapes := &shapeRecorder{}
	p := NewProcessor(metrics, shapes, nil, logger.NewTestLogger(t))
	sc := successScenario(t, `{"cost": ["a","b","cost"]}`, threeCostFeatures)

	first, err := p.Process(context.Background(), sc)
	require.NoError(t, err)
	second, err := p.Process(context.Background(), sc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, shapes.shapes, 2)
	assert.JSONEq(t, string(shapes.shapes[0]), string(shapes.shapes[1]))
}

func TestProcess_MissingMetricValuesBecomeZero(t *testing.T) {
	metrics := &stubMetrics{infos: map[string]models.MetricInfo{"cost": {DisplayName: "Cost"}}}
	p := NewProcessor(metrics, &shapeRecorder{}, nil, logger.NewTestLogger(t))

	features := `[
		{"type":"Feature","geometry":null,"properties":{"cost":"12.5"}},
		{"type":"Feature","geometry":null,"properties":{}},
		{"type":"Feature","geometry":null,"properties":{"cost":"n/a"}}
	]`
	series, err := p.Process(context.Background(), successScenario(t, `{"cost": ["a","b","cost"]}`, features))
	require.NoError(t, err)
	assert.Equal(t, []float64{12.5, 0, 0}, series[0].Values)
}

func TestProcess_Errors(t *testing.T) {
	p := NewProcessor(&stubMetrics{}, &shapeRecorder{}, nil, logger.NewTestLogger(t))
	_, err := p.Process(context.Background(), &models.Scenario{Result: &models.ScenarioResult{Status: models.StatusSuccess}})
	assert.True(t, errors.Is(err, ErrNoResult))

	metrics := &stubMetrics{err: commonerrors.NewCatalogUnavailableError("conditions", errors.New("down"))}
	shapes := &shapeRecorder{}
	p = NewProcessor(metrics, shapes, nil, logger.NewTestLogger(t))
	_, err = p.Process(context.Background(), successScenario(t, `{"cost": ["a","b","cost"]}`, threeCostFeatures))
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeCatalogUnavailable))
	assert.Len(t, shapes.shapes, 1)
}

func TestProcess_NoQuestion(t *testing.T) {
	metrics := &stubMetrics{}
	p := NewProcessor(metrics, &shapeRecorder{}, nil, logger.NewTestLogger(t))

	sc := successScenario(t, `{}`, threeCostFeatures)
	sc.Configuration.TreatmentQuestion = nil
	series, err := p.Process(context.Background(), sc)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.Equal(t, 0, metrics.calls)
}
