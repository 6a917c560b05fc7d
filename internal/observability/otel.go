// Package observability wires the process's OpenTelemetry tracer and meter
// providers and bridges them to the platform.Telemetry and
// platform.MetricsRegistry interfaces the rest of the module depends on,
// so no other package imports the OTel SDK directly.
package observability

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	core "github.com/quayside-soc/ingestcore/internal/platform"
)

const meterName = "ingestcore"

// Provider owns the process's tracer and meter providers and implements
// core.Telemetry so components depend on the narrow interface rather than
// this package.
//
// Exporter selection follows three tiers:
//  1. OTLP/gRPC to cfg.Endpoint when one is configured.
//  2. A stdout exporter in development mode, so traces are visible without
//     standing up a collector.
//  3. A no-op tracer otherwise.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	shutdownFuncs []func(context.Context) error

	mu       sync.Mutex
	shutdown bool
}

// New builds a Provider from the process's telemetry configuration.
func New(cfg core.TelemetryConfig, dev core.DevelopmentConfig, logger core.Logger) (*Provider, error) {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	if !cfg.Enabled {
		return &Provider{
			tracer: nooptrace.NewTracerProvider().Tracer(meterName),
			meter:  noopmetric.NewMeterProvider().Meter(meterName),
		}, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceNameOrDefault(cfg))),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	p := &Provider{}

	tp, err := p.buildTracerProvider(cfg, dev, res, logger)
	if err != nil {
		return nil, err
	}
	p.tracer = tp.Tracer(meterName)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if cfg.MetricsEnabled && cfg.Endpoint != "" {
		mp, err := p.buildMeterProvider(cfg, res)
		if err != nil {
			return nil, err
		}
		otel.SetMeterProvider(mp)
		p.meter = mp.Meter(meterName)
	} else {
		p.meter = noopmetric.NewMeterProvider().Meter(meterName)
	}

	logger.Info("telemetry provider initialized", map[string]interface{}{
		"endpoint": cfg.Endpoint, "tracing": cfg.TracingEnabled, "metrics": cfg.MetricsEnabled,
	})
	return p, nil
}

func (p *Provider) buildTracerProvider(cfg core.TelemetryConfig, dev core.DevelopmentConfig, res *resource.Resource, logger core.Logger) (*sdktrace.TracerProvider, error) {
	if !cfg.TracingEnabled {
		return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
	}

	ctx := context.Background()

	if cfg.Endpoint != "" {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp/grpc trace exporter: %w", err)
		}
		p.shutdownFuncs = append(p.shutdownFuncs, exporter.Shutdown)
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
	}

	if dev.Enabled {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stdout), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		p.shutdownFuncs = append(p.shutdownFuncs, exporter.Shutdown)
		logger.Debug("tracing to stdout: no OTEL_EXPORTER_OTLP_ENDPOINT configured", nil)
		return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter), sdktrace.WithResource(res)), nil
	}

	return sdktrace.NewTracerProvider(sdktrace.WithResource(res)), nil
}

func (p *Provider) buildMeterProvider(cfg core.TelemetryConfig, res *resource.Resource) (metric.MeterProvider, error) {
	ctx := context.Background()
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp/http metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	p.shutdownFuncs = append(p.shutdownFuncs, mp.Shutdown)
	return mp, nil
}

func serviceNameOrDefault(cfg core.TelemetryConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	return "ingestiond"
}

// StartSpan implements core.Telemetry.
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric implements core.Telemetry by emitting a one-shot counter
// through the same meter the MetricsRegistry bridge uses.
func (p *Provider) RecordMetric(name string, value float64, labels map[string]string) {
	counter, err := p.meter.Float64Counter(name)
	if err != nil {
		return
	}
	counter.Add(context.Background(), value, metric.WithAttributes(attrsFromLabels(labels)...))
}

// Meter exposes the process meter so the MetricsRegistry bridge in
// metrics.go can build its own cached instruments against it.
func (p *Provider) Meter() metric.Meter { return p.meter }

// Shutdown flushes and closes every exporter the Provider opened. Safe to
// call more than once.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true
	var firstErr error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	s.span.SetAttributes(attrFromValue(key, value))
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}

var _ core.Telemetry = (*Provider)(nil)
var _ core.Span = (*otelSpan)(nil)
