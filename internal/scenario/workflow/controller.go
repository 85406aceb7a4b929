// Package workflow composes the scenario form, submission, polling and result
// processing into one lifecycle, and publishes state snapshots to listeners.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/export"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/metrics"
	"planscape-scenarios/internal/common/notify"
	"planscape-scenarios/internal/common/observability"
	"planscape-scenarios/internal/common/planstate"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/codec"
	"planscape-scenarios/internal/scenario/form"
	"planscape-scenarios/internal/scenario/polling"
)

var (
	ErrNoScenario       = errors.New("NO_SCENARIO")
	ErrAlreadySubmitted = errors.New("ALREADY_SUBMITTED")
	ErrUnknownQuestion  = errors.New("UNKNOWN_TREATMENT_QUESTION")
	ErrClosed           = errors.New("WORKFLOW_CLOSED")
)

// Creator submits a new scenario and returns its assigned id.
type Creator interface {
	CreateScenario(ctx context.Context, scenario *models.Scenario) (models.ID, error)
}

// Exporter downloads the zipped CSV results of a scenario.
type Exporter interface {
	DownloadCSV(ctx context.Context, id string) ([]byte, error)
}

// GoalCatalog lists the selectable treatment questions.
type GoalCatalog interface {
	TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error)
}

// Processor derives chart series from a successful scenario.
type Processor interface {
	Process(ctx context.Context, sc *models.Scenario) ([]models.ChartSeries, error)
}

type Dependencies struct {
	Creator       Creator
	Fetcher       polling.Fetcher
	Exporter      Exporter
	Saver         export.Saver
	PlanState     planstate.Store
	Goals         GoalCatalog
	Processor     Processor
	Reporter      *commonerrors.Reporter
	Notifier      notify.Notifier
	Observability *observability.Observability
	Clock         polling.Clock
	Logger        logger.Logger
}

type Options struct {
	Form    form.Options
	Polling polling.Config
}

type Controller struct {
	deps      Dependencies
	logger    logger.Logger
	scheduler *polling.Scheduler
	clock     polling.Clock

	// ctx scopes polling and work done on its behalf; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	form       *form.Form
	phase      models.ScenarioStatus
	scenarioID string
	tab        Tab
	generating bool
	series     []models.ChartSeries
	result     *models.Scenario
	lastError  *commonerrors.StandardError
	processed  bool
	startedAt  time.Time
	closed     bool
	listeners  []Listener

	// notifyMu keeps listener delivery in mutation order.
	notifyMu sync.Mutex
}

func NewController(deps Dependencies, opts Options) (*Controller, error) {
	switch {
	case deps.Creator == nil:
		return nil, fmt.Errorf("workflow: creator is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("workflow: fetcher is required")
	case deps.PlanState == nil:
		return nil, fmt.Errorf("workflow: plan state is required")
	case deps.Processor == nil:
		return nil, fmt.Errorf("workflow: result processor is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Clock == nil {
		deps.Clock = polling.RealClock{}
	}
	if deps.Reporter == nil {
		deps.Reporter = commonerrors.NewReporter(deps.Logger, nil)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(deps.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		deps:   deps,
		logger: logger.ForComponent(deps.Logger, "workflow"),
		clock:  deps.Clock,
		ctx:    ctx,
		cancel: cancel,
		form:   form.New(opts.Form),
		phase:  models.StatusNotStarted,
		tab:    TabConfig,
	}
	c.scheduler = polling.NewScheduler(opts.Polling, deps.Fetcher, c, deps.Clock, deps.Logger)
	return c, nil
}

// AddListener registers l for every subsequent state change.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	return State{
		Phase:       c.phase,
		ScenarioID:  c.scenarioID,
		SelectedTab: c.tab,
		Generating:  c.generating,
		ChartSeries: cloneSeries(c.series),
		Result:      c.result,
		LastError:   c.lastError,
		Form:        c.form.Snapshot(),
	}
}

// commitLocked publishes the current state and releases c.mu.
func (c *Controller) commitLocked() {
	st := c.stateLocked()
	listeners := append([]Listener(nil), c.listeners...)
	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()
	for _, l := range listeners {
		l(st)
	}
}

// fail reports err to the user and records it as the last error.
func (c *Controller) fail(err error, fields map[string]interface{}) error {
	c.mu.Lock()
	stdErr := c.deps.Reporter.Report(err, fields)
	c.lastError = stdErr
	c.commitLocked()
	return stdErr
}

// Submit validates the form, creates the scenario and starts polling it.
// An invalid form returns an error wrapping form.ErrFormInvalid without any
// remote call.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.generating || c.scenarioID != "":
		id := c.scenarioID
		c.mu.Unlock()
		return fmt.Errorf("%w: scenario %s", ErrAlreadySubmitted, id)
	}

	c.form.MarkAllTouched()
	if err := c.form.Err(); err != nil {
		metrics.ScenarioSubmissions.WithLabelValues(metrics.OutcomeInvalid).Inc()
		c.logger.Info("Scenario submission blocked by form validation", map[string]interface{}{
			"violations": len(c.form.Violations()),
		})
		c.commitLocked()
		return err
	}
	snapshot := c.form.Snapshot()
	c.mu.Unlock()

	planID, err := c.deps.PlanState.CurrentPlanID(ctx)
	if err != nil {
		return c.fail(commonerrors.NewPlanStateFailedError("currentPlanId", err), nil)
	}
	scenario, err := codec.Encode(snapshot, planID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.generating = true
	c.form.DisableAll()
	c.commitLocked()

	log := c.logger.WithFields(map[string]interface{}{"scenarioName": scenario.Name, "planId": planID})
	log.Info("Submitting scenario", nil)

	id, err := c.deps.Creator.CreateScenario(ctx, scenario)
	if err != nil {
		outcome := metrics.OutcomeRejected
		if commonerrors.IsRetryable(err) {
			outcome = metrics.OutcomeError
		}
		metrics.ScenarioSubmissions.WithLabelValues(outcome).Inc()

		c.mu.Lock()
		c.generating = false
		c.form.EnableAll()
		c.lastError = c.deps.Reporter.Report(err, map[string]interface{}{
			"scenarioName": scenario.Name,
			"planId":       planID,
		})
		stdErr := c.lastError
		c.commitLocked()
		return stdErr
	}
	metrics.ScenarioSubmissions.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if err := c.deps.PlanState.SetCurrentScenarioID(ctx, id.String()); err != nil {
		log.Warn("Failed to record scenario in plan state", map[string]interface{}{"error": err.Error()})
	}

	c.mu.Lock()
	if c.closed {
		c.generating = false
		c.form.EnableAll()
		c.mu.Unlock()
		return ErrClosed
	}
	c.generating = false
	c.scenarioID = id.String()
	c.phase = models.StatusPending
	c.tab = TabResults
	c.lastError = nil
	c.startedAt = c.clock.Now()
	c.form.EnableAll()
	c.form.DisableForSubmission()
	c.deps.Reporter.Dismiss()
	c.commitLocked()

	log.Info("Scenario created", map[string]interface{}{"scenarioId": id.String()})
	return c.scheduler.Start(c.ctx, id.String(), polling.Resume)
}

// Attach restores the scenario recorded in plan state and starts polling it
// with an immediate fetch.
func (c *Controller) Attach(ctx context.Context) error {
	id, err := c.deps.PlanState.CurrentScenarioID(ctx)
	if err != nil {
		return c.fail(commonerrors.NewPlanStateFailedError("currentScenarioId", err), nil)
	}
	if id == "" {
		return ErrNoScenario
	}

	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return ErrClosed
	case c.generating || c.scenarioID != "":
		c.mu.Unlock()
		return fmt.Errorf("%w: scenario %s", ErrAlreadySubmitted, c.scenarioID)
	}
	c.scenarioID = id
	c.phase = models.StatusLoading
	c.tab = TabResults
	c.startedAt = c.clock.Now()
	c.commitLocked()

	c.logger.Info("Attaching to scenario", map[string]interface{}{"scenarioId": id})
	return c.scheduler.Start(c.ctx, id, polling.Attach)
}

// HandleUpdate applies a completed status fetch. It is called by the
// scheduler on its loop goroutine, so updates never overlap.
func (c *Controller) HandleUpdate(u polling.Update) {
	c.mu.Lock()
	if c.closed || u.ScenarioID != c.scenarioID {
		c.mu.Unlock()
		return
	}

	if u.Err != nil {
		switch {
		case u.Stopped:
			c.phase = models.StatusNotStarted
			c.scenarioID = ""
			c.tab = TabConfig
			c.form.EnableAll()
			c.lastError = c.deps.Reporter.Report(u.Err, map[string]interface{}{"scenarioId": u.ScenarioID})
		case u.Initial:
			c.phase = u.Status
		default:
			// Transient; the next tick retries.
			c.mu.Unlock()
			return
		}
		c.commitLocked()
		return
	}

	process := u.Status == models.StatusSuccess && !c.processed
	c.processed = c.processed || process
	c.mu.Unlock()

	// Processing reaches the network, so it runs without c.mu and under the
	// controller's lifetime context.
	var (
		series     []models.ChartSeries
		processErr error
	)
	if process {
		series, processErr = c.deps.Processor.Process(c.ctx, u.Scenario)
	}

	c.mu.Lock()
	if c.closed || u.ScenarioID != c.scenarioID {
		c.mu.Unlock()
		return
	}

	sc := u.Scenario
	codec.Hydrate(c.form, sc)
	c.result = sc
	c.phase = u.Status
	// The scenario exists server-side, so its configuration is frozen.
	c.form.DisableForSubmission()
	if sc != nil && sc.Result != nil {
		c.tab = TabResults
	}
	switch {
	case processErr != nil:
		c.lastError = c.deps.Reporter.Report(processErr, map[string]interface{}{"scenarioId": u.ScenarioID})
	case process:
		c.series = series
	}

	var outcome *models.ScenarioOutcome
	if u.Status.IsTerminal() {
		outcome = c.outcomeLocked(sc, u.Status)
	}
	c.commitLocked()

	if outcome != nil {
		c.deps.Observability.RecordOutcome(c.ctx, string(u.Status), c.clock.Now().Sub(c.startedAt))
		if err := c.deps.Notifier.Publish(c.ctx, *outcome); err != nil {
			c.logger.Warn("Failed to publish scenario outcome", map[string]interface{}{
				"scenarioId": u.ScenarioID,
				"error":      err.Error(),
			})
		}
	}
}

func (c *Controller) outcomeLocked(sc *models.Scenario, status models.ScenarioStatus) *models.ScenarioOutcome {
	out := &models.ScenarioOutcome{
		ScenarioID:  c.scenarioID,
		Status:      status,
		CompletedAt: c.clock.Now().UTC().Format(time.RFC3339),
	}
	if sc != nil {
		out.ScenarioName = sc.Name
		out.PlanningAreaID = sc.PlanningAreaID.String()
		if sc.Result != nil && sc.Result.ResultGeometry != nil {
			out.FeatureCount = len(sc.Result.ResultGeometry.Features)
		}
	}
	return out
}

// ChangeCondition selects the condition layer shown with the results.
func (c *Controller) ChangeCondition(ctx context.Context, layer string) error {
	if err := c.deps.PlanState.SetConditionLayer(ctx, layer); err != nil {
		return c.fail(commonerrors.NewPlanStateFailedError("setConditionLayer", err), map[string]interface{}{"layer": layer})
	}
	return nil
}

// DownloadCSV fetches the scenario archive and hands it to the saver,
// returning where it was saved.
func (c *Controller) DownloadCSV(ctx context.Context) (string, error) {
	c.mu.Lock()
	id := c.scenarioID
	name := c.form.Snapshot().Name.ScenarioName
	c.mu.Unlock()

	if id == "" {
		return "", ErrNoScenario
	}
	if c.deps.Exporter == nil || c.deps.Saver == nil {
		return "", fmt.Errorf("workflow: export is not configured")
	}

	data, err := c.deps.Exporter.DownloadCSV(ctx, id)
	if err != nil {
		return "", c.fail(err, map[string]interface{}{"scenarioId": id})
	}
	path, err := c.deps.Saver.Save(export.FileName(name), data)
	if err != nil {
		return "", c.fail(commonerrors.NewExportFailedError(id, err), nil)
	}
	c.logger.Info("Scenario results saved", map[string]interface{}{
		"scenarioId": id,
		"path":       path,
		"bytes":      len(data),
	})
	return path, nil
}

// TreatmentGoals returns the question catalog.
func (c *Controller) TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error) {
	if c.deps.Goals == nil {
		return nil, fmt.Errorf("workflow: treatment goal catalog is not configured")
	}
	goals, err := c.deps.Goals.TreatmentGoals(ctx)
	if err != nil {
		return nil, c.fail(err, nil)
	}
	return goals, nil
}

// SelectQuestion selects the catalog question whose short or long text is text.
func (c *Controller) SelectQuestion(ctx context.Context, text string) error {
	goals, err := c.TreatmentGoals(ctx)
	if err != nil {
		return err
	}
	for _, goal := range goals {
		for i := range goal.Questions {
			q := goal.Questions[i]
			if q.ShortQuestionText == text || q.LongQuestionText == text {
				return c.SetSelectedQuestion(&q)
			}
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownQuestion, text)
}

// UploadedProjectAreas splits the uploaded shape into one collection per
// project area.
func (c *Controller) UploadedProjectAreas() ([]json.RawMessage, error) {
	c.mu.Lock()
	raw := c.form.Snapshot().ProjectAreas.UploadedArea
	c.mu.Unlock()
	if raw == nil {
		return nil, nil
	}
	return codec.SplitToSingleFeatureCollections(raw)
}

// Close stops polling and discards any fetch still in flight. It is safe to
// call more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	// Cancel first so a fetch or result processing in progress returns
	// promptly. Stop is not called under c.mu: it waits for HandleUpdate.
	c.cancel()
	c.scheduler.Stop()
	c.logger.Debug("Workflow closed", nil)
}

func (c *Controller) edit(fn func(f *form.Form) error) error {
	c.mu.Lock()
	if err := fn(c.form); err != nil {
		c.mu.Unlock()
		return err
	}
	c.commitLocked()
	return nil
}

func (c *Controller) SetScenarioName(name string) error {
	return c.edit(func(f *form.Form) error { return f.SetScenarioName(name) })
}

func (c *Controller) SetSelectedQuestion(q *models.TreatmentQuestionConfig) error {
	return c.edit(func(f *form.Form) error { return f.SetSelectedQuestion(q) })
}

func (c *Controller) SetEstimatedCost(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetEstimatedCost(v) })
}

func (c *Controller) SetMaxCost(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetMaxCost(v) })
}

func (c *Controller) SetMaxArea(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetMaxArea(v) })
}

func (c *Controller) SetMinDistanceFromRoad(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetMinDistanceFromRoad(v) })
}

func (c *Controller) SetMaxSlope(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetMaxSlope(v) })
}

func (c *Controller) SetStandSize(v string) error {
	return c.edit(func(f *form.Form) error { return f.SetStandSize(v) })
}

func (c *Controller) SetExcludedArea(option string, selected bool) error {
	return c.edit(func(f *form.Form) error { return f.SetExcludedArea(option, selected) })
}

func (c *Controller) SetExcludeAreasByDegrees(on bool) error {
	return c.edit(func(f *form.Form) error { return f.SetExcludeAreasByDegrees(on) })
}

func (c *Controller) SetExcludeAreasByDistance(on bool) error {
	return c.edit(func(f *form.Form) error { return f.SetExcludeAreasByDistance(on) })
}

// SetGenerateAreas toggles auto-generated project areas and previews the
// resulting selection.
func (c *Controller) SetGenerateAreas(ctx context.Context, on bool) error {
	return c.editProjectAreas(ctx, func(f *form.Form) error { return f.SetGenerateAreas(on) })
}

// SetUploadedArea stores an uploaded shape and previews the resulting selection.
func (c *Controller) SetUploadedArea(ctx context.Context, raw json.RawMessage) error {
	return c.editProjectAreas(ctx, func(f *form.Form) error { return f.SetUploadedArea(raw) })
}

func (c *Controller) editProjectAreas(ctx context.Context, fn func(f *form.Form) error) error {
	var shapes json.RawMessage
	err := c.edit(func(f *form.Form) error {
		if err := fn(f); err != nil {
			return err
		}
		shapes = f.SelectedShapes()
		return nil
	})
	if err != nil {
		return err
	}
	if err := c.deps.PlanState.SetProjectAreaShapes(ctx, shapes); err != nil {
		return c.fail(commonerrors.NewPlanStateFailedError("setProjectAreaShapes", err), nil)
	}
	return nil
}
