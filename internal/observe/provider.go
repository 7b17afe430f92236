package observe

import (
	"context"
	"errors"
	"fmt"

	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry bundles the decoder's observability handles: the metric
// instruments and the tracer the batch executor tags each utterance with.
// It is constructed once per process by NewTelemetry and passed explicitly
// to the components that record through it — the scorers, the engine, and
// the executor all receive their dependencies as owned handles, and
// telemetry follows the same rule. Nothing here registers itself as an OTel
// global.
type Telemetry struct {
	metrics *Metrics
	tracer  trace.Tracer

	mp *sdkmetric.MeterProvider
	tp *sdktrace.TracerProvider
}

// TelemetryOptions configures NewTelemetry.
type TelemetryOptions struct {
	// ServiceVersion is reported in the telemetry resource.
	ServiceVersion string

	// SpanExporter receives finished utterance spans. When nil, spans are
	// created and propagated through contexts but exported nowhere, which
	// is the right mode for metric-only deployments and for tests that
	// only inspect instruments.
	SpanExporter sdktrace.SpanExporter
}

// NewTelemetry builds the decoder's metric and trace pipelines: a meter
// provider bridged to a Prometheus exporter (so instruments surface on the
// standard registry) and a tracer provider feeding the configured span
// exporter. Call Shutdown when the process is done decoding.
func NewTelemetry(opts TelemetryOptions) (*Telemetry, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("ctcdecode"),
			semconv.ServiceVersion(opts.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: build resource: %w", err)
	}

	promExp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExp),
	)

	metrics, err := NewMetrics(mp)
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if opts.SpanExporter != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(opts.SpanExporter))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	return &Telemetry{
		metrics: metrics,
		tracer:  tp.Tracer(meterName),
		mp:      mp,
		tp:      tp,
	}, nil
}

// Metrics returns the decoder's metric instruments. Safe on a nil receiver,
// returning nil, so components that treat telemetry as optional can pass
// the result straight through.
func (t *Telemetry) Metrics() *Metrics {
	if t == nil {
		return nil
	}
	return t.metrics
}

// Shutdown flushes and closes both pipelines.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.mp.Shutdown(ctx), t.tp.Shutdown(ctx))
}
