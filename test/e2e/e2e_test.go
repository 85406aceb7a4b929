// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planscape-scenarios/internal/common/catalog"
	"planscape-scenarios/internal/common/config"
	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/export"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/planscape"
	"planscape-scenarios/internal/common/planstate"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/form"
	"planscape-scenarios/internal/scenario/polling"
	"planscape-scenarios/internal/scenario/results"
	"planscape-scenarios/internal/scenario/workflow"
)

const (
	apiToken = "e2e-token"

	goalsJSON = `[{"category_name": "Fire Dynamics", "questions": [{
		"short_question_text": "Reduce wildfire risk",
		"scenario_output_fields_paths": {"cost": ["fire", "hazard", "cost"], "acres": ["fire", "hazard", "acres"]},
		"scenario_priorities": ["prio1"], "weights": [1]}]}]`

	conditionsJSON = `{"region_name": "sierra_nevada", "pillars": [{"pillar_name": "fire", "elements": [{"element_name": "hazard", "metrics": [
		{"metric_name": "acres", "display_name": "Area", "data_units": "ac", "raw_layer": "acres_raw"},
		{"metric_name": "cost", "display_name": "Cost", "data_units": "$/ac", "raw_layer": "cost_raw"}]}]}]}`

	resultFeatures = `[
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-120.1, 38.9]}, "properties": {"cost": 125.5, "acres": 40}},
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-120.2, 38.8]}, "properties": {"cost": 98, "acres": 55}},
		{"type": "Feature", "geometry": {"type": "Point", "coordinates": [-120.3, 38.7]}, "properties": {"cost": 143.25, "acres": 12}}]`
)

// planscapeServer fakes the Planscape API: a created scenario reports
// PENDING, then RUNNING, then SUCCESS on successive fetches.
type planscapeServer struct {
	*httptest.Server

	mu        sync.Mutex
	created   map[string]interface{}
	statuses  []models.ScenarioStatus
	fetches   int32
	goalHits  int32
	authFails int32
}

func newPlanscapeServer(t *testing.T) *planscapeServer {
	t.Helper()
	s := &planscapeServer{
		statuses: []models.ScenarioStatus{models.StatusPending, models.StatusRunning, models.StatusSuccess},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/planning/create_scenario/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, `{"error": "bad body"}`, http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.created = body
		s.mu.Unlock()
		writeJSON(w, `{"id": 101}`)
	})
	mux.HandleFunc("/planning/get_scenario_by_id/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "101" {
			http.Error(w, `{"error": "not found"}`, http.StatusNotFound)
			return
		}
		n := int(atomic.AddInt32(&s.fetches, 1)) - 1
		if n >= len(s.statuses) {
			n = len(s.statuses) - 1
		}
		status := s.statuses[n]
		result := `{"status": "` + string(status) + `"}`
		if status == models.StatusSuccess {
			result = `{"status": "SUCCESS", "result": {"type": "FeatureCollection", "features": ` + resultFeatures + `}}`
		}
		writeJSON(w, `{"id": 101, "name": "E2E Plan", "planning_area": 7,
			"configuration": {"max_budget": 5000, "stand_size": "MEDIUM", "excluded_areas": ["Tribal Lands"],
				"treatment_question": {"short_question_text": "Reduce wildfire risk",
					"scenario_output_fields_paths": {"cost": ["fire", "hazard", "cost"], "acres": ["fire", "hazard", "acres"]}}},
			"scenario_result": `+result+`}`)
	})
	mux.HandleFunc("/planning/download_csv/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = io.WriteString(w, "PK\x03\x04e2e")
	})
	mux.HandleFunc("/planning/treatment_goals_config/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.goalHits, 1)
		writeJSON(w, goalsJSON)
	})
	mux.HandleFunc("/conditions/config/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, conditionsJSON)
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+apiToken {
			atomic.AddInt32(&s.authFails, 1)
			http.Error(w, `{"detail": "unauthorized"}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

func writeJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

type session struct {
	ctrl    *workflow.Controller
	plan    *planstate.Memory
	catalog *catalog.Service
	sink    *commonerrors.MemorySink
	outDir  string
}

func newSession(t *testing.T, srv *planscapeServer, cache redis.Cmdable, planID, scenarioID string) *session {
	t.Helper()
	log := logger.NewTestLogger(t)

	client := planscape.NewClient(config.PlanscapeConfig{
		BaseURL:    srv.URL,
		APIToken:   apiToken,
		Timeout:    5000,
		MaxRetries: 1,
		RetryDelay: 10,
	}, log)

	cat, err := catalog.New(client, cache, config.CatalogConfig{CacheTTL: 60000, KeyPrefix: "e2e:catalog:"}, log)
	require.NoError(t, err)

	s := &session{
		plan:    planstate.NewMemory(planID, scenarioID),
		catalog: cat,
		sink:    &commonerrors.MemorySink{},
		outDir:  t.TempDir(),
	}
	s.ctrl, err = workflow.NewController(workflow.Dependencies{
		Creator:   client,
		Fetcher:   client,
		Exporter:  client,
		Saver:     export.NewFileSaver(s.outDir),
		PlanState: s.plan,
		Goals:     cat,
		Processor: results.NewProcessor(cat, s.plan, nil, log),
		Reporter:  commonerrors.NewReporter(log, s.sink),
		Logger:    log,
	}, workflow.Options{
		Form:    form.Options{ExcludedAreaOptions: config.DefaultExcludedAreas},
		Polling: polling.Config{Interval: 20 * time.Millisecond, FetchTimeout: time.Second},
	})
	require.NoError(t, err)
	t.Cleanup(s.ctrl.Close)
	return s
}

// watchTerminal registers a listener and returns a function that waits for
// the first terminal state it sees.
func watchTerminal(t *testing.T, ctrl *workflow.Controller) func() workflow.State {
	t.Helper()
	ch := make(chan workflow.State, 1)
	ctrl.AddListener(func(s workflow.State) {
		if s.Phase.IsTerminal() {
			select {
			case ch <- s:
			default:
			}
		}
	})
	return func() workflow.State {
		t.Helper()
		select {
		case s := <-ch:
			return s
		case <-time.After(10 * time.Second):
			t.Fatalf("scenario did not finish; phase %s", ctrl.State().Phase)
			return workflow.State{}
		}
	}
}

func (s *planscapeServer) createdBody() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created
}

func TestFullE2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	srv := newPlanscapeServer(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	t.Log("Submitting scenario through the full stack")
	s := newSession(t, srv, rdb, "7", "")
	require.NoError(t, s.ctrl.SetScenarioName("E2E Plan"))
	require.NoError(t, s.ctrl.SelectQuestion(ctx, "Reduce wildfire risk"))
	require.NoError(t, s.ctrl.SetMaxCost("5000"))
	require.NoError(t, s.ctrl.SetStandSize("MEDIUM"))
	require.NoError(t, s.ctrl.SetExcludedArea("Tribal Lands", true))
	require.NoError(t, s.ctrl.SetGenerateAreas(ctx, true))

	wait := watchTerminal(t, s.ctrl)
	require.NoError(t, s.ctrl.Submit(ctx))

	st := wait()
	assert.Equal(t, models.StatusSuccess, st.Phase)
	assert.Equal(t, "101", st.ScenarioID)
	assert.Equal(t, workflow.TabResults, st.SelectedTab)

	created := srv.createdBody()
	require.NotNil(t, created)
	assert.Equal(t, "E2E Plan", created["name"])
	assert.Equal(t, "7", created["planning_area"])
	cfg := created["configuration"].(map[string]interface{})
	assert.Equal(t, 5000.0, cfg["max_budget"])
	assert.Equal(t, "MEDIUM", cfg["stand_size"])
	assert.Equal(t, []interface{}{"Tribal Lands"}, cfg["excluded_areas"])
	assert.NotContains(t, cfg, "max_treatment_area_ratio")

	// Series follow the question's mapping order: cost, then acres.
	require.Len(t, st.ChartSeries, 2)
	assert.Equal(t, models.ChartSeries{Label: "Cost", Measurement: "$/ac", MetricLayer: "cost_raw", Values: []float64{125.5, 98, 143.25}}, st.ChartSeries[0])
	assert.Equal(t, models.ChartSeries{Label: "Area", Measurement: "ac", MetricLayer: "acres_raw", Values: []float64{40, 55, 12}}, st.ChartSeries[1])
	assert.EqualValues(t, 3, atomic.LoadInt32(&srv.fetches))

	plan, err := s.plan.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "101", plan.CurrentScenarioID)
	assert.Contains(t, string(plan.ProjectAreaShapes), "-120.1")

	path, err := s.ctrl.DownloadCSV(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.outDir, "E2E Plan.zip"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04e2e", string(data))

	assert.True(t, mr.Exists("e2e:catalog:treatment_goals"))
	assert.True(t, mr.Exists("e2e:catalog:conditions"))

	t.Log("Restoring the session from plan state in a new process")
	restored := newSession(t, srv, rdb, "7", "101")
	wait = watchTerminal(t, restored.ctrl)
	require.NoError(t, restored.ctrl.Attach(ctx))

	st = wait()
	assert.Equal(t, models.StatusSuccess, st.Phase)
	assert.Equal(t, "E2E Plan", st.Form.Name.ScenarioName)
	assert.Equal(t, "5000", st.Form.Constraints.MaxCost)
	assert.Equal(t, "MEDIUM", st.Form.Constraints.StandSize)
	assert.True(t, st.Form.Constraints.ExcludedAreas["Tribal Lands"])
	assert.Len(t, st.ChartSeries, 2)
	for _, g := range st.Form.Groups {
		assert.Equal(t, g.Name == form.GroupProjectAreas, g.Enabled, g.Name)
	}

	goals, err := restored.ctrl.TreatmentGoals(ctx)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&srv.goalHits), "second session reads the catalog from redis")
	assert.Zero(t, atomic.LoadInt32(&srv.authFails))
}

func TestE2E_RejectedSubmission(t *testing.T) {
	srv := newPlanscapeServer(t)
	s := newSession(t, srv, nil, "7", "")
	ctx := context.Background()

	require.NoError(t, s.ctrl.SetScenarioName("Only a name"))
	require.NoError(t, s.ctrl.SelectQuestion(ctx, "Reduce wildfire risk"))
	require.NoError(t, s.ctrl.SetMaxArea("100"))

	err := s.ctrl.Submit(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, form.ErrFormInvalid)
	assert.Nil(t, srv.createdBody(), "invalid forms never reach the API")
	assert.Contains(t, s.ctrl.State().Form.Violations, form.Violation{Group: form.GroupConstraints, Field: "maxArea", Tag: "min"})
}
