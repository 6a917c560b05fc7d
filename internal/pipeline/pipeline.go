// Package pipeline implements the event pipeline (spec.md §4.4): validation,
// typed parsing, enrichment, and persistence as alerts. Bootstrap sets
// Process as the queue's processor for event jobs; the pipeline does not
// subscribe to registry events. It runs entirely on the worker goroutine
// that dequeued the job — there is no further fan-out inside the pipeline
// itself.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/store"
)

// AlertCreated is published on eventbus.TopicAlertCreated for every alert
// with severity high or critical (spec.md §4.4 Phase 4, §8 invariant 6).
type AlertCreated struct {
	AlertID        string
	Severity       domain.Severity
	Source         string
	OrganizationID string
}

// Metrics is the narrow counter surface the pipeline increments; bootstrap
// wires this to the OTel meter instruments named in SPEC_FULL.md §2.2.
type Metrics interface {
	IncValidationErrors()
	IncParseErrors()
	IncEnrichErrors()
	IncAlertsCreated(severity domain.Severity)
}

// NoOpMetrics discards everything; used when no meter is configured.
type NoOpMetrics struct{}

func (NoOpMetrics) IncValidationErrors()                    {}
func (NoOpMetrics) IncParseErrors()                          {}
func (NoOpMetrics) IncEnrichErrors()                          {}
func (NoOpMetrics) IncAlertsCreated(severity domain.Severity) {}

// Pipeline is constructed once by bootstrap and its Process method is the
// queue.Processor for JobKindEvent jobs.
type Pipeline struct {
	store   store.Store
	bus     *eventbus.Bus
	logger  core.Logger
	metrics Metrics

	threatIntel   ThreatIntelLookup
	geoip         GeoIPLookup
	vulnerability VulnerabilityLookup
	insight       InsightGenerator
}

// Config bundles the pipeline's collaborators. Enrichment capabilities
// default to no-ops when left nil.
type Config struct {
	Store         store.Store
	Bus           *eventbus.Bus
	Logger        core.Logger
	Metrics       Metrics
	ThreatIntel   ThreatIntelLookup
	GeoIP         GeoIPLookup
	Vulnerability VulnerabilityLookup
	Insight       InsightGenerator
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		store:         cfg.Store,
		bus:           cfg.Bus,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		threatIntel:   cfg.ThreatIntel,
		geoip:         cfg.GeoIP,
		vulnerability: cfg.Vulnerability,
		insight:       cfg.Insight,
	}
	if p.logger == nil {
		p.logger = &core.NoOpLogger{}
	}
	if p.metrics == nil {
		p.metrics = NoOpMetrics{}
	}
	if p.threatIntel == nil {
		p.threatIntel = NoOpThreatIntel{}
	}
	if p.geoip == nil {
		p.geoip = NoOpGeoIP{}
	}
	if p.vulnerability == nil {
		p.vulnerability = NoOpVulnerability{}
	}
	if p.insight == nil {
		p.insight = NoOpInsight{}
	}
	return p
}

// Process runs the four stages (validation, parsing, enrichment,
// persistence) on job.Data and is the queue.Processor bootstrap wires for
// JobKindEvent jobs. A validation failure is terminal (wrapped in
// core.ErrValidation so the queue never retries it). Parse and enrichment
// failures are handled locally and still produce an alert; a store failure
// is returned wrapped in core.ErrStore and no alert is written.
func (p *Pipeline) Process(ctx context.Context, job domain.QueueJob) error {
	return p.ProcessEvent(ctx, job.Data)
}

// ProcessEvent runs validation -> parsing -> enrichment -> persistence for
// one RawEvent. Exported directly so adapters/tests can drive the pipeline
// without going through the queue.
func (p *Pipeline) ProcessEvent(ctx context.Context, event domain.RawEvent) error {
	if err := p.validate(event); err != nil {
		p.metrics.IncValidationErrors()
		p.logger.Warn("event failed validation, discarding", map[string]interface{}{
			"eventId": event.ID, "error": err.Error(),
		})
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}

	structured, err := p.parse(event)
	if err != nil {
		p.metrics.IncParseErrors()
		p.logger.Warn("parse failed, falling back to generic parser", map[string]interface{}{
			"eventId": event.ID, "error": err.Error(),
		})
		structured, _ = parseGeneric(event)
	}

	enriched := p.enrich(ctx, event, structured)

	return p.persist(ctx, event, enriched)
}

// validate implements spec.md §4.4 Phase 1. Go's type system already
// enforces most of the structural constraints (Payload is a map, Tags is a
// []string); what remains to check is ID well-formedness and the non-empty
// fields.
func (p *Pipeline) validate(event domain.RawEvent) error {
	if _, err := uuid.Parse(event.ID); err != nil {
		return fmt.Errorf("id %q is not a valid UUID", event.ID)
	}
	if event.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if event.Source == "" {
		return fmt.Errorf("source is required")
	}
	if event.Type == "" {
		return fmt.Errorf("type is required")
	}
	if event.Payload == nil {
		return fmt.Errorf("payload is required")
	}
	for k, v := range event.Metadata {
		if k != "connectorId" && k != "organizationId" {
			continue
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("metadata.%s must be a string", k)
		}
	}
	return nil
}

func (p *Pipeline) parse(event domain.RawEvent) (domain.StructuredData, error) {
	parser := selectParser(event)
	return parser(event)
}

// enrich implements spec.md §4.4 Phase 3: each capability is independent,
// a failure leaves its field absent and never aborts the phase.
func (p *Pipeline) enrich(ctx context.Context, event domain.RawEvent, sd domain.StructuredData) domain.EnrichedData {
	enriched := domain.EnrichedData{
		StructuredData: sd,
		Enrichments:     map[string]interface{}{},
	}

	if sd.SourceIP != "" {
		if ti, err := p.threatIntel.Lookup(ctx, sd.SourceIP); err != nil {
			p.metrics.IncEnrichErrors()
		} else if ti != nil {
			enriched.Enrichments["threatIntel"] = ti
		}
		if geo, err := p.geoip.Lookup(ctx, sd.SourceIP); err != nil {
			p.metrics.IncEnrichErrors()
		} else if geo != nil {
			enriched.Enrichments["geoip"] = geo
		}
	}

	if vuln, err := p.vulnerability.Lookup(ctx, sd.Data); err != nil {
		p.metrics.IncEnrichErrors()
	} else if vuln != nil {
		enriched.Enrichments["vulnerability"] = vuln
	}

	if insight, err := p.insight.Generate(ctx, sd.Message); err != nil {
		p.metrics.IncEnrichErrors()
	} else if insight != "" {
		enriched.Insight = insight
	}

	enriched.RecommendedAction = domain.RecommendedAction(sd.Severity, event.Type)
	return enriched
}

// persist implements spec.md §4.4 Phase 4.
func (p *Pipeline) persist(ctx context.Context, event domain.RawEvent, enriched domain.EnrichedData) error {
	orgID := event.OrganizationID()
	alert := domain.Alert{
		Title:          domain.TruncateTitle(enriched.Message),
		Description:    enriched.Message,
		Severity:       enriched.Severity,
		Source:         enriched.Source,
		SourceIP:       enriched.SourceIP,
		DestinationIP:  enriched.DestinationIP,
		Timestamp:      enriched.Timestamp,
		Status:         domain.AlertStatusNew,
		OrganizationID: orgID,
		ConnectorID:    event.ConnectorID(),
		Metadata: map[string]interface{}{
			"rawEvent":          event,
			"enrichments":       enriched.Enrichments,
			"recommendedAction": enriched.RecommendedAction,
			"insight":           enriched.Insight,
		},
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	alertID, err := p.store.CreateAlert(ctx, alert)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	p.metrics.IncAlertsCreated(alert.Severity)

	if alert.Severity.AtLeast(domain.SeverityHigh) && p.bus != nil {
		p.bus.Publish(eventbus.TopicAlertCreated, AlertCreated{
			AlertID:        alertID,
			Severity:       alert.Severity,
			Source:         alert.Source,
			OrganizationID: alert.OrganizationID,
		})
	}
	return nil
}
