package domain

import "strings"

// keywordRules is the fixed, ordered table the generic and cloud-log
// parsers use: case-insensitive substring match, first match wins. Per
// spec.md §9 Open Questions, "alert" is matched as part of critical and
// collides with benign phrases that happen to contain the substring — kept
// as-is, documented as behavior-preserving.
var keywordRules = []struct {
	severity Severity
	keywords []string
}{
	{SeverityCritical, []string{"critical", "emergency", "alert"}},
	{SeverityHigh, []string{"error", "failure", "failed"}},
	{SeverityMedium, []string{"warning", "warn"}},
	{SeverityLow, []string{"notice", "info"}},
}

// KeywordSeverity classifies free text by the fixed keyword heuristic
// (spec.md §4.4): first matching rule wins, Info otherwise.
func KeywordSeverity(text string) Severity {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.severity
			}
		}
	}
	return SeverityInfo
}

// syslogSeverityMap is the fixed, total map from syslog numeric severity
// (0-7) to the system's severity scale (spec.md §4.4).
var syslogSeverityMap = map[int]Severity{
	0: SeverityCritical,
	1: SeverityCritical,
	2: SeverityCritical,
	3: SeverityHigh,
	4: SeverityMedium,
	5: SeverityLow,
	6: SeverityInfo,
	7: SeverityInfo,
}

// SyslogSeverity maps a numeric syslog severity (0-7) to the system scale.
// Out-of-range values map to Info, the safest default.
func SyslogSeverity(n int) Severity {
	if s, ok := syslogSeverityMap[n]; ok {
		return s
	}
	return SeverityInfo
}

// SeverityToPriority maps a classified severity onto the job queue's four
// priority bands: critical and high map 1:1, medium and low/info collapse
// onto the queue's medium/low bands since the queue has no "info" band.
func SeverityToPriority(s Severity) Priority {
	switch s {
	case SeverityCritical:
		return PriorityCritical
	case SeverityHigh:
		return PriorityHigh
	case SeverityMedium:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// RecommendedAction implements the fixed (severity, type) -> action table
// from spec.md §4.4 Phase 3. Type is currently unused by the table itself
// (the table is keyed purely on severity) but kept in the signature since
// the spec describes it as a function of both and a future per-type
// override is a natural extension point.
func RecommendedAction(severity Severity, eventType string) string {
	switch severity {
	case SeverityCritical:
		return "immediate isolation"
	case SeverityHigh:
		return "1h SLA"
	case SeverityMedium:
		return "24h"
	case SeverityLow:
		return "routine"
	default:
		return "none"
	}
}
