// Package results turns a successful scenario result into chart series and
// forwards its geometry to the plan state.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"planscape-scenarios/internal/common/logger"
	"planscape-scenarios/internal/common/observability"
	"planscape-scenarios/internal/models"
)

var ErrNoResult = errors.New("NO_RESULT_GEOMETRY")

// MetricSource resolves display metadata for metric keys, in mapping order.
type MetricSource interface {
	MetricData(ctx context.Context, paths models.FieldPaths) ([]models.MetricInfo, error)
}

// ShapeSink receives the project-area shapes to draw.
type ShapeSink interface {
	SetProjectAreaShapes(ctx context.Context, shapes json.RawMessage) error
}

type Processor struct {
	metrics MetricSource
	shapes  ShapeSink
	obs     *observability.Observability
	logger  logger.Logger
}

// NewProcessor builds a Processor. obs may be nil.
func NewProcessor(metrics MetricSource, shapes ShapeSink, obs *observability.Observability, log logger.Logger) *Processor {
	return &Processor{
		metrics: metrics,
		shapes:  shapes,
		obs:     obs,
		logger:  logger.ForComponent(log, "result-processor"),
	}
}

// Process forwards the result geometry and builds one series per metric of
// the scenario's treatment question. Running it again on the same scenario
// yields the same series.
func (p *Processor) Process(ctx context.Context, sc *models.Scenario) (series []models.ChartSeries, err error) {
	start := time.Now()
	defer func() { p.obs.RecordProcessing(ctx, time.Since(start), err == nil) }()

	if sc == nil || sc.Result == nil || sc.Result.ResultGeometry == nil {
		return nil, ErrNoResult
	}
	fc := sc.Result.ResultGeometry
	log := p.logger.WithFields(map[string]interface{}{"scenarioId": sc.ID.String()})

	shapes, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode result geometry: %w", err)
	}
	if err := p.shapes.SetProjectAreaShapes(ctx, shapes); err != nil {
		return nil, err
	}

	var paths models.FieldPaths
	if q := sc.Configuration.TreatmentQuestion; q != nil {
		paths = q.ScenarioOutputFieldsPaths
	}
	if len(paths) == 0 {
		log.Info("Scenario has no output metrics", nil)
		return []models.ChartSeries{}, nil
	}

	infos, err := p.metrics.MetricData(ctx, paths)
	if err != nil {
		return nil, err
	}

	series = make([]models.ChartSeries, 0, len(infos))
	for _, info := range infos {
		values := make([]float64, len(fc.Features))
		for i, feature := range fc.Features {
			v, ok := numeric(feature.Properties[info.Key])
			if !ok {
				log.Warn("Metric missing or not numeric; using 0", map[string]interface{}{
					"metric":  info.Key,
					"feature": i,
				})
			}
			values[i] = v
		}
		series = append(series, models.ChartSeries{
			Label:       info.DisplayName,
			Measurement: info.DataUnits,
			MetricLayer: info.RawLayer,
			Values:      values,
		})
	}

	log.Info("Scenario results processed", map[string]interface{}{
		"series":   len(series),
		"features": len(fc.Features),
	})
	return series, nil
}

func numeric(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
