package bootstrap

import (
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/pipeline"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// pipelineMetrics adapts the process-wide core.MetricsRegistry to
// pipeline.Metrics, so the pipeline's counters land on the same OTel meter
// as everything else instead of needing their own wiring.
type pipelineMetrics struct {
	registry core.MetricsRegistry
}

func newPipelineMetrics(registry core.MetricsRegistry) pipeline.Metrics {
	if registry == nil {
		return pipeline.NoOpMetrics{}
	}
	return &pipelineMetrics{registry: registry}
}

func (m *pipelineMetrics) IncValidationErrors() {
	m.registry.Counter("ingestcore.pipeline.validation_errors")
}

func (m *pipelineMetrics) IncParseErrors() {
	m.registry.Counter("ingestcore.pipeline.parse_errors")
}

func (m *pipelineMetrics) IncEnrichErrors() {
	m.registry.Counter("ingestcore.pipeline.enrich_errors")
}

func (m *pipelineMetrics) IncAlertsCreated(severity domain.Severity) {
	m.registry.Counter("ingestcore.pipeline.alerts_created", "severity", string(severity))
}
