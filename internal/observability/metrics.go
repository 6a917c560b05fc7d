package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/metric"

	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/resilience"
)

// MetricsRegistry bridges the process meter to core.MetricsRegistry (so
// ProductionLogger can mirror log events as counters, per spec.md's
// ambient telemetry stack) and to resilience.MetricsCollector (so circuit
// breakers report state without importing this package). Instruments are
// created lazily and cached by name, following the teacher's
// MetricInstruments pattern.
type MetricsRegistry struct {
	meter metric.Meter

	mu         sync.Mutex
	counters   map[string]metric.Float64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]metric.Float64Gauge
}

// NewMetricsRegistry builds a registry over provider's meter and installs
// it as the process-wide core.MetricsRegistry.
func NewMetricsRegistry(provider *Provider) *MetricsRegistry {
	r := &MetricsRegistry{
		meter:      provider.Meter(),
		counters:   make(map[string]metric.Float64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]metric.Float64Gauge),
	}
	core.SetMetricsRegistry(r)
	return r
}

func (r *MetricsRegistry) counter(name string) metric.Float64Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c, _ := r.meter.Float64Counter(name)
	r.counters[name] = c
	return c
}

func (r *MetricsRegistry) histogram(name string) metric.Float64Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	h, _ := r.meter.Float64Histogram(name)
	r.histograms[name] = h
	return h
}

func (r *MetricsRegistry) gauge(name string) metric.Float64Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g, _ := r.meter.Float64Gauge(name)
	r.gauges[name] = g
	return g
}

// Counter implements core.MetricsRegistry.
func (r *MetricsRegistry) Counter(name string, labels ...string) {
	if c := r.counter(name); c != nil {
		c.Add(context.Background(), 1, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// EmitWithContext implements core.MetricsRegistry.
func (r *MetricsRegistry) EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if c := r.counter(name); c != nil {
		c.Add(ctx, value, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// Gauge implements core.MetricsRegistry.
func (r *MetricsRegistry) Gauge(name string, value float64, labels ...string) {
	if g := r.gauge(name); g != nil {
		g.Record(context.Background(), value, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// Histogram implements core.MetricsRegistry.
func (r *MetricsRegistry) Histogram(name string, value float64, labels ...string) {
	if h := r.histogram(name); h != nil {
		h.Record(context.Background(), value, metric.WithAttributes(attrsFromPairs(labels)...))
	}
}

// GetBaggage implements core.MetricsRegistry, surfacing W3C baggage members
// (e.g. a request_id propagated from the HTTP layer) as log fields.
func (r *MetricsRegistry) GetBaggage(ctx context.Context) map[string]string {
	bag := baggage.FromContext(ctx)
	members := bag.Members()
	if len(members) == 0 {
		return nil
	}
	out := make(map[string]string, len(members))
	for _, m := range members {
		out[m.Key()] = m.Value()
	}
	return out
}

// RecordSuccess implements resilience.MetricsCollector.
func (r *MetricsRegistry) RecordSuccess(name string) {
	r.counter("ingestcore.circuitbreaker.success").Add(context.Background(), 1, metric.WithAttributes(attribute.String("name", name)))
}

// RecordFailure implements resilience.MetricsCollector.
func (r *MetricsRegistry) RecordFailure(name string, errorType string) {
	r.counter("ingestcore.circuitbreaker.failure").Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("name", name), attribute.String("error_type", errorType)))
}

// RecordStateChange implements resilience.MetricsCollector.
func (r *MetricsRegistry) RecordStateChange(name string, from, to string) {
	r.counter("ingestcore.circuitbreaker.state_change").Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("name", name), attribute.String("from", from), attribute.String("to", to)))
}

// RecordRejection implements resilience.MetricsCollector.
func (r *MetricsRegistry) RecordRejection(name string) {
	r.counter("ingestcore.circuitbreaker.rejected").Add(context.Background(), 1, metric.WithAttributes(attribute.String("name", name)))
}

func attrsFromPairs(labels []string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		attrs = append(attrs, attribute.String(labels[i], labels[i+1]))
	}
	return attrs
}

func attrsFromLabels(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func attrFromValue(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	default:
		return attribute.String(key, "")
	}
}

var _ core.MetricsRegistry = (*MetricsRegistry)(nil)
var _ resilience.MetricsCollector = (*MetricsRegistry)(nil)
