package pipeline

import "context"

// ThreatIntelLookup, GeoIPLookup, VulnerabilityLookup, and InsightGenerator
// are the four enrichment capabilities spec.md §4.4 Phase 3 names as
// "placeholders ... each an independent capability". They are narrow
// interfaces so a real implementation (a threat-intel API client, a MaxMind
// database, a CVE feed, an LLM call) can be wired in later without the
// pipeline itself changing; the out-of-scope line in spec.md §1 keeps the
// concrete SDKs outside this repository.
type ThreatIntelLookup interface {
	Lookup(ctx context.Context, indicator string) (map[string]interface{}, error)
}

type GeoIPLookup interface {
	Lookup(ctx context.Context, ip string) (map[string]interface{}, error)
}

type VulnerabilityLookup interface {
	Lookup(ctx context.Context, context map[string]interface{}) (map[string]interface{}, error)
}

type InsightGenerator interface {
	Generate(ctx context.Context, summary string) (string, error)
}

// NoOpThreatIntel, NoOpGeoIP, NoOpVulnerability, and NoOpInsight are the
// defaults the pipeline falls back to when bootstrap doesn't wire a real
// implementation: each reports "nothing found" rather than an error, so a
// missing capability never fails the enrichment phase (spec.md §7: "failure
// of any one leaves the corresponding field absent").
type NoOpThreatIntel struct{}

func (NoOpThreatIntel) Lookup(ctx context.Context, indicator string) (map[string]interface{}, error) {
	return nil, nil
}

type NoOpGeoIP struct{}

func (NoOpGeoIP) Lookup(ctx context.Context, ip string) (map[string]interface{}, error) {
	return nil, nil
}

type NoOpVulnerability struct{}

func (NoOpVulnerability) Lookup(ctx context.Context, context map[string]interface{}) (map[string]interface{}, error) {
	return nil, nil
}

type NoOpInsight struct{}

func (NoOpInsight) Generate(ctx context.Context, summary string) (string, error) { return "", nil }
