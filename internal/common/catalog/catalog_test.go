package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-scenarios/internal/common/config"
	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/models"
)

type fakeSource struct {
	goalCalls      int32
	conditionCalls int32
	goals          []models.TreatmentGoalConfig
	conditions     *models.ConditionsConfig
	err            error
}

func (f *fakeSource) TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error) {
	atomic.AddInt32(&f.goalCalls, 1)
	return f.goals, f.err
}

func (f *fakeSource) ConditionsConfig(ctx context.Context) (*models.ConditionsConfig, error) {
	atomic.AddInt32(&f.conditionCalls, 1)
	return f.conditions, f.err
}

func testConditions() *models.ConditionsConfig {
	return &models.ConditionsConfig{
		Pillars: []models.PillarConfig{{
			PillarName: "fire",
			Elements: []models.ElementConfig{{
				ElementName: "fuel",
				Metrics: []models.MetricConfig{
					{MetricName: "cost", DisplayName: "Cost", DataUnits: "$/ac", RawLayer: "cost_raw"},
					{MetricName: "area", DisplayName: "Area", DataUnits: "ac", RawLayer: "area_raw"},
				},
			}},
		}},
	}
}

func testGoals() []models.TreatmentGoalConfig {
	return []models.TreatmentGoalConfig{{
		CategoryName: "Fire",
		Questions: []models.TreatmentQuestionConfig{{
			ShortQuestionText: "Reduce fire risk",
			ScenarioOutputFieldsPaths: models.FieldPaths{
				{Metric: "cost", Path: []string{"fire", "fuel", "cost"}},
			},
		}},
	}}
}

func testCatalogConfig() config.CatalogConfig {
	return config.CatalogConfig{CacheTTL: 60000, KeyPrefix: "test:catalog:"}
}

func TestTreatmentGoals_FetchedOncePerSession(t *testing.T) {
	src := &fakeSource{goals: testGoals()}
	svc, err := New(src, nil, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		goals, err := svc.TreatmentGoals(context.Background())
		require.NoError(t, err)
		require.Len(t, goals, 1)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.goalCalls))
}

func TestTreatmentGoals_ServedFromRedisOnSecondSession(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	src := &fakeSource{goals: testGoals()}
	first, err := New(src, rdb, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	_, err = first.TreatmentGoals(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:catalog:treatment_goals"))
	assert.Equal(t, time.Minute, mr.TTL("test:catalog:treatment_goals"))

	second, err := New(src, rdb, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	goals, err := second.TreatmentGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, []string{"cost"}, goals[0].Questions[0].ScenarioOutputFieldsPaths.Keys())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.goalCalls))

	require.NoError(t, second.Invalidate(context.Background()))
	assert.False(t, mr.Exists("test:catalog:treatment_goals"))
}

func TestTreatmentGoals_CacheFailureFallsBackToSource(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	src := &fakeSource{goals: testGoals()}

	data, err := json.Marshal(src.goals)
	require.NoError(t, err)
	mock.ExpectGet("test:catalog:treatment_goals").SetErr(errors.New("connection refused"))
	mock.ExpectSet("test:catalog:treatment_goals", data, time.Minute).SetErr(errors.New("connection refused"))

	svc, err := New(src, rdb, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)
	goals, err := svc.TreatmentGoals(context.Background())
	require.NoError(t, err)
	assert.Len(t, goals, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTreatmentGoals_SchemaViolation(t *testing.T) {
	src := &fakeSource{goals: []models.TreatmentGoalConfig{{CategoryName: "", Questions: nil}}}
	svc, err := New(src, nil, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = svc.TreatmentGoals(context.Background())
	require.Error(t, err)
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeCatalogUnavailable))
}

func TestMetricData_PreservesMappingOrder(t *testing.T) {
	src := &fakeSource{conditions: testConditions()}
	svc, err := New(src, nil, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	paths := models.FieldPaths{
		{Metric: "area", Path: []string{"fire", "fuel", "area"}},
		{Metric: "cost", Path: []string{"fire", "fuel", "cost"}},
	}
	infos, err := svc.MetricData(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "area", infos[0].Key)
	assert.Equal(t, "Cost", infos[1].DisplayName)
	assert.Equal(t, "$/ac", infos[1].DataUnits)
	assert.Equal(t, "cost_raw", infos[1].RawLayer)

	_, err = svc.MetricData(context.Background(), models.FieldPaths{{Metric: "x", Path: []string{"fire", "fuel", "x"}}})
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeMetricNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.conditionCalls))
}

func TestMetricData_SourceError(t *testing.T) {
	src := &fakeSource{err: commonerrors.NewCatalogUnavailableError("conditions", errors.New("503"))}
	svc, err := New(src, nil, testCatalogConfig(), logger.NewTestLogger(t))
	require.NoError(t, err)

	_, err = svc.MetricData(context.Background(), models.FieldPaths{{Metric: "cost", Path: []string{"a", "b", "c"}}})
	assert.True(t, commonerrors.HasCode(err, commonerrors.ErrCodeCatalogUnavailable))
}
