package observability

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"planscape-scenarios/internal/common/logger"
)

// Observability records workflow-level measurements through OpenTelemetry,
// exported in prometheus format.
type Observability struct {
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	outcomes       otelmetric.Int64Counter
	timeToTerminal otelmetric.Float64Histogram
	processing     otelmetric.Float64Histogram
}

// New registers the exporter with the default prometheus registry.
func New(serviceName string, log logger.Logger) *Observability {
	return NewWithRegisterer(serviceName, promclient.DefaultRegisterer, log)
}

// NewWithRegisterer is New with an explicit registry. On exporter failure a
// no-op Observability is returned.
func NewWithRegisterer(serviceName string, reg promclient.Registerer, log logger.Logger) *Observability {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		if log != nil {
			log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		}
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	outcomes, _ := meter.Int64Counter(
		"scenario.outcomes",
		otelmetric.WithDescription("Scenarios observed reaching a terminal status"),
	)

	timeToTerminal, _ := meter.Float64Histogram(
		"scenario.time_to_terminal",
		otelmetric.WithDescription("Time from submission or attach until a terminal status"),
		otelmetric.WithUnit("ms"),
	)

	processing, _ := meter.Float64Histogram(
		"scenario.result_processing",
		otelmetric.WithDescription("Result processing duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:  provider,
		meter:          meter,
		outcomes:       outcomes,
		timeToTerminal: timeToTerminal,
		processing:     processing,
	}
}

func (o *Observability) RecordOutcome(ctx context.Context, status string, elapsed time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("status", status))
	if o.outcomes != nil {
		o.outcomes.Add(ctx, 1, attrs)
	}
	if o.timeToTerminal != nil {
		o.timeToTerminal.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
}

func (o *Observability) RecordProcessing(ctx context.Context, duration time.Duration, ok bool) {
	if o == nil || o.processing == nil {
		return
	}
	o.processing.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
		attribute.Bool("ok", ok),
	))
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
