// Package catalog serves the read-only treatment-goal and conditions catalogs.
// Both are fetched once per session and cached in-process, and optionally in
// redis so later sessions skip the remote call.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"planscape-scenarios/internal/common/config"
	"planscape-scenarios/internal/common/errors"
	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/validation"
	"planscape-scenarios/internal/models"
	"planscape-scenarios/pkg/catalogschema"
)

const (
	keyTreatmentGoals = "treatment_goals"
	keyConditions     = "conditions"
)

// Source fetches the catalogs from the remote API.
type Source interface {
	TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error)
	ConditionsConfig(ctx context.Context) (*models.ConditionsConfig, error)
}

// Service is the catalog collaborator.
type Service struct {
	source Source
	cache  redis.Cmdable
	ttl    time.Duration
	prefix string
	logger logger.Logger

	goalsSchema      *validation.Validator
	conditionsSchema *validation.Validator

	mu         sync.Mutex
	goals      []models.TreatmentGoalConfig
	conditions *models.ConditionsConfig
}

// New builds a Service. cache may be nil to disable the redis layer.
func New(source Source, cache redis.Cmdable, cfg config.CatalogConfig, log logger.Logger) (*Service, error) {
	goalsSchema, err := catalogschema.NewValidator(catalogschema.KindTreatmentGoals)
	if err != nil {
		return nil, err
	}
	conditionsSchema, err := catalogschema.NewValidator(catalogschema.KindConditions)
	if err != nil {
		return nil, err
	}
	return &Service{
		source:           source,
		cache:            cache,
		ttl:              config.GetDuration(cfg.CacheTTL),
		prefix:           cfg.KeyPrefix,
		logger:           logger.ForComponent(log, "catalog"),
		goalsSchema:      goalsSchema,
		conditionsSchema: conditionsSchema,
	}, nil
}

// TreatmentGoals returns the treatment-goal catalog.
func (s *Service) TreatmentGoals(ctx context.Context) ([]models.TreatmentGoalConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.goals != nil {
		return s.goals, nil
	}

	var goals []models.TreatmentGoalConfig
	if s.readCache(ctx, keyTreatmentGoals, &goals) {
		s.goals = goals
		return goals, nil
	}

	goals, err := s.source.TreatmentGoals(ctx)
	if err != nil {
		return nil, err
	}
	if goals == nil {
		goals = []models.TreatmentGoalConfig{}
	}
	if err := s.check(s.goalsSchema, goals); err != nil {
		return nil, errors.NewCatalogUnavailableError(keyTreatmentGoals, err)
	}
	s.goals = goals
	s.writeCache(ctx, keyTreatmentGoals, goals)
	return goals, nil
}

// Conditions returns the conditions tree.
func (s *Service) Conditions(ctx context.Context) (*models.ConditionsConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conditionsLocked(ctx)
}

func (s *Service) conditionsLocked(ctx context.Context) (*models.ConditionsConfig, error) {
	if s.conditions != nil {
		return s.conditions, nil
	}

	var cfg models.ConditionsConfig
	if s.readCache(ctx, keyConditions, &cfg) {
		s.conditions = &cfg
		return s.conditions, nil
	}

	fetched, err := s.source.ConditionsConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.check(s.conditionsSchema, fetched); err != nil {
		return nil, errors.NewCatalogUnavailableError(keyConditions, err)
	}
	s.conditions = fetched
	s.writeCache(ctx, keyConditions, fetched)
	return fetched, nil
}

// MetricData resolves display metadata for every metric in paths, in mapping order.
func (s *Service) MetricData(ctx context.Context, paths models.FieldPaths) ([]models.MetricInfo, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	conditions, err := s.conditionsLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]models.MetricInfo, 0, len(paths))
	for _, fp := range paths {
		metric, ok := conditions.LookupMetric(fp.Path)
		if !ok {
			return nil, errors.NewMetricNotFoundError(fp.Metric, fp.Path)
		}
		out = append(out, models.MetricInfo{
			Key:         fp.Metric,
			DisplayName: metric.DisplayName,
			DataUnits:   metric.DataUnits,
			RawLayer:    metric.RawLayer,
		})
	}
	return out, nil
}

// Invalidate drops the in-process copies and the redis entries.
func (s *Service) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	s.goals = nil
	s.conditions = nil
	s.mu.Unlock()

	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, s.prefix+keyTreatmentGoals, s.prefix+keyConditions).Err()
}

func (s *Service) check(v *validation.Validator, value interface{}) error {
	result, err := v.ValidateValue(value)
	if err != nil {
		return err
	}
	return result.Err()
}

// readCache reports a hit. Cache failures degrade to a remote fetch.
func (s *Service) readCache(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, s.prefix+key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.logger.Warn("Catalog cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		s.logger.Warn("Catalog cache entry corrupt", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	s.logger.Debug("Catalog served from cache", map[string]interface{}{"key": key})
	return true
}

func (s *Service) writeCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("Catalog cache encode failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if err := s.cache.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		s.logger.Warn("Catalog cache write failed", map[string]interface{}{"key": key, "error": fmt.Sprint(err)})
	}
}
