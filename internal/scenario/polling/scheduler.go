// Package polling tracks a remote scenario job until it reaches a terminal
// status. A single loop goroutine owns the last-known status and the
// in-flight flag, so at most one status fetch is ever outstanding and fetch
// results are handled one at a time.
package polling

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/metrics"
	"planscape-scenarios/internal/models"
)

var ErrAlreadyRunning = errors.New("POLLING_ALREADY_RUNNING")

// Mode selects how polling begins.
type Mode int

const (
	// Attach fetches immediately (status LOADING) and then ticks.
	Attach Mode = iota
	// Resume starts from PENDING and fetches only on ticks.
	Resume
)

func (m Mode) String() string {
	if m == Attach {
		return "attach"
	}
	return "resume"
}

// Fetcher is the get-scenario collaborator.
type Fetcher interface {
	GetScenario(ctx context.Context, id string) (*models.Scenario, error)
}

// Update describes one completed fetch.
type Update struct {
	ScenarioID string
	Scenario   *models.Scenario // nil when Err is set
	Previous   models.ScenarioStatus
	Status     models.ScenarioStatus
	Err        error
	Initial    bool // the immediate fetch of Attach mode
	// Stopped is set when this update ends polling.
	Stopped bool
}

// Handler receives updates on the loop goroutine. It must not call Stop.
type Handler interface {
	HandleUpdate(u Update)
}

type HandlerFunc func(u Update)

func (f HandlerFunc) HandleUpdate(u Update) { f(u) }

type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

type Scheduler struct {
	config  Config
	fetcher Fetcher
	handler Handler
	clock   Clock
	logger  logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(cfg Config, fetcher Fetcher, handler Handler, clock Clock, log logger.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		config:  cfg,
		fetcher: fetcher,
		handler: handler,
		clock:   clock,
		logger:  logger.ForComponent(log, "polling"),
	}
}

// Start begins polling scenarioID. Only one scenario is polled at a time.
func (s *Scheduler) Start(ctx context.Context, scenarioID string, mode Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		select {
		case <-s.done:
		default:
			return fmt.Errorf("%w: scenario %s", ErrAlreadyRunning, scenarioID)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	l := &loop{
		s:          s,
		scenarioID: scenarioID,
		mode:       mode,
		results:    make(chan fetchResult, 1),
		logger:     s.logger.WithFields(map[string]interface{}{"scenarioId": scenarioID, "mode": mode.String()}),
	}
	go func() {
		defer close(done)
		defer cancel()
		l.run(loopCtx)
	}()
	return nil
}

// Stop cancels polling and waits for the loop to exit. A fetch completing
// afterwards is discarded. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

type fetchResult struct {
	scenario *models.Scenario
	err      error
	initial  bool
	duration time.Duration
}

type loop struct {
	s          *Scheduler
	scenarioID string
	mode       Mode
	results    chan fetchResult
	logger     logger.Logger

	status   models.ScenarioStatus
	inFlight bool
	ticker   Ticker
}

func (l *loop) run(ctx context.Context) {
	metrics.ScenariosPolling.Inc()
	defer metrics.ScenariosPolling.Dec()
	defer func() {
		if l.ticker != nil {
			l.ticker.Stop()
		}
	}()

	if l.mode == Attach {
		l.status = models.StatusLoading
		l.issue(ctx, true)
	} else {
		l.status = models.StatusPending
	}
	l.ticker = l.s.clock.NewTicker(l.s.config.Interval)
	l.logger.Debug("Polling started", map[string]interface{}{"interval": l.s.config.Interval.String()})

	for {
		select {
		case <-ctx.Done():
			l.logger.Debug("Polling stopped", map[string]interface{}{"status": l.status})
			return

		case <-l.ticker.C():
			if l.inFlight {
				metrics.ScenarioFetchesSkipped.WithLabelValues(metrics.SkipInFlight).Inc()
				continue
			}
			if !l.status.IsActive() {
				metrics.ScenarioFetchesSkipped.WithLabelValues(metrics.SkipGated).Inc()
				continue
			}
			l.issue(ctx, false)

		case r := <-l.results:
			l.inFlight = false
			if ctx.Err() != nil {
				metrics.ScenarioFetches.WithLabelValues(metrics.OutcomeDropped).Inc()
				return
			}
			if l.complete(r) {
				return
			}
		}
	}
}

func (l *loop) issue(ctx context.Context, initial bool) {
	l.inFlight = true
	timeout := l.s.config.FetchTimeout
	go func() {
		fctx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		start := time.Now()
		sc, err := l.s.fetcher.GetScenario(fctx, l.scenarioID)
		l.results <- fetchResult{scenario: sc, err: err, initial: initial, duration: time.Since(start)}
	}()
}

// complete applies a fetch result and reports whether polling ends.
func (l *loop) complete(r fetchResult) bool {
	metrics.ScenarioFetchDuration.Observe(r.duration.Seconds())
	prev := l.status
	u := Update{ScenarioID: l.scenarioID, Previous: prev, Initial: r.initial}

	if r.err != nil {
		metrics.ScenarioFetches.WithLabelValues(metrics.OutcomeError).Inc()
		u.Err = r.err
		switch {
		case r.initial && !commonerrors.IsRetryable(r.err):
			l.status = models.StatusNotStarted
			u.Stopped = true
		case r.initial:
			l.status = models.StatusPending
		}
		u.Status = l.status
		l.logger.Warn("Scenario status fetch failed", map[string]interface{}{
			"error":   r.err.Error(),
			"initial": r.initial,
			"status":  l.status,
		})
		l.transition(prev)
		l.s.handler.HandleUpdate(u)
		return u.Stopped
	}

	metrics.ScenarioFetches.WithLabelValues(metrics.OutcomeSuccess).Inc()
	switch {
	case r.scenario != nil && r.scenario.Result != nil && r.scenario.Result.Status != "":
		l.status = r.scenario.Result.Status
	case r.initial:
		l.status = models.StatusPending
	}
	l.transition(prev)

	u.Scenario = r.scenario
	u.Status = l.status
	u.Stopped = l.status.IsTerminal()
	if u.Stopped {
		l.logger.Info("Scenario reached terminal status", map[string]interface{}{"status": l.status})
	}
	l.s.handler.HandleUpdate(u)
	return u.Stopped
}

func (l *loop) transition(prev models.ScenarioStatus) {
	if prev == l.status {
		return
	}
	metrics.ScenarioStatusTransitions.WithLabelValues(string(prev), string(l.status)).Inc()
	if !l.status.IsActive() && !l.status.IsTerminal() && l.status != models.StatusNotStarted {
		l.logger.Warn("Unrecognized scenario status; polling paused", map[string]interface{}{"status": l.status})
	}
}
