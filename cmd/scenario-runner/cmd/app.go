package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"planscape-scenarios/internal/common/catalog"
	"planscape-scenarios/internal/common/config"
	"planscape-scenarios/internal/common/database"
	commonerrors "planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/export"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/notify"
	"planscape-scenarios/internal/common/observability"
	"planscape-scenarios/internal/common/planscape"
	"planscape-scenarios/internal/common/planstate"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/internal/scenario/form"
	"planscape-scenarios/internal/scenario/polling"
	"planscape-scenarios/internal/scenario/results"
	"planscape-scenarios/internal/scenario/workflow"
)

// app holds everything a command needs for one session.
type app struct {
	cfg       *config.Config
	zap       *zap.Logger
	log       logger.Logger
	obs       *observability.Observability
	planState planstate.Store
	catalog   *catalog.Service
	ctrl      *workflow.Controller
	closers   []func()
}

func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog).With(map[string]interface{}{"app": cfg.App.Name})

	a := &app{cfg: cfg, zap: zapLog, log: log}
	a.closers = append(a.closers, func() { _ = zapLog.Sync() })

	a.obs = observability.New(cfg.App.Name, log)
	a.closers = append(a.closers, a.obs.Shutdown)

	client := planscape.NewClient(cfg.Planscape, log)

	if err := a.initPlanState(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var cache redis.Cmdable
	switch rdb, err := database.OpenRedis(ctx, cfg.Database.Redis); {
	case err == nil:
		cache = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
	case !errors.Is(err, database.ErrRedisDisabled):
		log.Warn("Redis unavailable; catalog cached in process only", map[string]interface{}{"error": err.Error()})
	}
	a.catalog, err = catalog.New(client, cache, cfg.Catalog, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	notifier, err := a.newNotifier(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.ctrl, err = workflow.NewController(workflow.Dependencies{
		Creator:       client,
		Fetcher:       client,
		Exporter:      client,
		Saver:         export.NewFileSaver(cfg.Export.OutputDir),
		PlanState:     a.planState,
		Goals:         a.catalog,
		Processor:     results.NewProcessor(a.catalog, a.planState, a.obs, log),
		Reporter:      commonerrors.NewReporter(log, &consoleSink{w: cmd.ErrOrStderr()}),
		Notifier:      notifier,
		Observability: a.obs,
		Logger:        log,
	}, workflow.Options{
		Form: form.Options{
			ExcludedAreaOptions:  cfg.Form.ExcludedAreas,
			DefaultEstimatedCost: cfg.Form.DefaultEstimatedCost,
			DefaultStandSize:     cfg.Form.DefaultStandSize,
		},
		Polling: polling.Config{
			Interval:     config.GetDuration(cfg.Polling.Interval),
			FetchTimeout: config.GetDuration(cfg.Polling.FetchTimeout),
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.ctrl.Close)
	return a, nil
}

func (a *app) initPlanState(ctx context.Context) error {
	session := a.cfg.Session
	if session.Store != "postgres" {
		a.planState = planstate.NewMemory(session.PlanID, session.ScenarioID)
		return nil
	}

	pg, err := database.NewPostgres(ctx, a.cfg.Database.Postgres)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = pg.Close() })

	store, err := planstate.NewPostgresStore(ctx, pg, session.PlanID, a.log)
	if err != nil {
		return err
	}
	if session.ScenarioID != "" {
		if err := store.SetCurrentScenarioID(ctx, session.ScenarioID); err != nil {
			return err
		}
	}
	a.planState = store
	return nil
}

func (a *app) newNotifier(ctx context.Context) (notify.Notifier, error) {
	sns := a.cfg.Notifications.SNS
	if !sns.Enabled {
		return notify.NewLogNotifier(a.log), nil
	}
	client, err := notify.NewSNSClient(ctx, sns.Region)
	if err != nil {
		return nil, err
	}
	return notify.NewSNSNotifier(client, sns.TopicARN, a.log), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// run executes fn alongside the metrics server. Returning from fn stops the
// server; a server failure cancels fn.
func (a *app) run(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Metrics.Enabled {
		g.Go(func() error { return a.serveMetrics(gctx) })
	}
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}

func (a *app) serveMetrics(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","time":%q}`, time.Now().Format(time.RFC3339))
	})
	srv := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	a.log.Info("Metrics server listening", map[string]interface{}{"address": srv.Addr})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// settled reports whether polling can no longer change the state.
func settled(s workflow.State) bool {
	if s.Phase.IsTerminal() {
		return true
	}
	return s.Phase == models.StatusNotStarted && s.ScenarioID == "" && s.LastError != nil
}

// awaitState registers a listener before the caller triggers any transition.
func awaitState(ctrl *workflow.Controller, match func(workflow.State) bool) func(ctx context.Context) (workflow.State, error) {
	ch := make(chan workflow.State, 1)
	ctrl.AddListener(func(s workflow.State) {
		if match(s) {
			select {
			case ch <- s:
			default:
			}
		}
	})
	return func(ctx context.Context) (workflow.State, error) {
		select {
		case s := <-ch:
			return s, nil
		case <-ctx.Done():
			return ctrl.State(), ctx.Err()
		}
	}
}

// consoleSink prints notifications for the operator.
type consoleSink struct {
	commonerrors.MemorySink
	w io.Writer
}

func (s *consoleSink) Show(n models.Notification) {
	s.MemorySink.Show(n)
	fmt.Fprintf(s.w, "error: %s [%s]\n", n.Message, n.Action)
}
