package pipeline

import (
	"strings"
	"time"

	"github.com/quayside-soc/ingestcore/internal/domain"
)

// Parser converts a validated RawEvent into StructuredData. Each parser is
// independent and the pipeline falls back to parseGeneric on any error
// (spec.md §7: ParseError falls back to the generic parser).
type Parser func(event domain.RawEvent) (domain.StructuredData, error)

// selectParser dispatches by RawEvent.Type, per spec.md §4.4's table, with
// the structured=true bypass taking priority over type dispatch.
func selectParser(event domain.RawEvent) Parser {
	if isStructured(event) {
		return parseStructuredBypass
	}
	switch {
	case event.Type == "cloudwatch":
		return parseCloudWatch
	case strings.HasPrefix(event.Type, "google-workspace-"):
		return parseGoogleWorkspace
	case event.Type == "syslog":
		return parseSyslog
	default:
		return parseGeneric
	}
}

func isStructured(event domain.RawEvent) bool {
	v, ok := event.Payload["structured"]
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func payloadString(payload map[string]interface{}, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

func payloadInt(payload map[string]interface{}, key string) (int, bool) {
	v, ok := payload[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// parseStructuredBypass implements the round-trip law from spec.md §8:
// parse(event with payload.structured=true, payload.data=D) returns D
// unchanged.
func parseStructuredBypass(event domain.RawEvent) (domain.StructuredData, error) {
	data, _ := event.Payload["data"].(map[string]interface{})
	sd := domain.StructuredData{
		Timestamp: event.Timestamp,
		Source:    event.Source,
		Message:   payloadString(event.Payload, "message"),
		Data:      data,
		SourceIP:  payloadString(event.Payload, "sourceIp"),
		DestinationIP: payloadString(event.Payload, "destinationIp"),
	}
	if sev := payloadString(event.Payload, "severity"); sev != "" {
		sd.Severity = domain.Severity(sev)
	} else {
		sd.Severity = domain.SeverityInfo
	}
	return sd, nil
}

func parseCloudWatch(event domain.RawEvent) (domain.StructuredData, error) {
	message := payloadString(event.Payload, "message")
	if message == "" {
		message = payloadString(event.Payload, "logStream")
	}
	return domain.StructuredData{
		Timestamp: event.Timestamp,
		Severity:  domain.KeywordSeverity(message),
		Source:    event.Source,
		Message:   message,
		Data:      event.Payload,
	}, nil
}

func parseGoogleWorkspace(event domain.RawEvent) (domain.StructuredData, error) {
	eventName := payloadString(event.Payload, "eventName")
	message := eventName
	if message == "" {
		message = payloadString(event.Payload, "message")
	}
	return domain.StructuredData{
		Timestamp: event.Timestamp,
		Severity:  domain.KeywordSeverity(eventName),
		Source:    event.Source,
		Message:   message,
		Data:      event.Payload,
	}, nil
}

func parseSyslog(event domain.RawEvent) (domain.StructuredData, error) {
	sev, _ := payloadInt(event.Payload, "severity")
	message := payloadString(event.Payload, "message")
	if message == "" {
		message = payloadString(event.Payload, "rawMessage")
	}
	return domain.StructuredData{
		Timestamp:     event.Timestamp,
		Severity:      domain.SyslogSeverity(sev),
		Source:        event.Source,
		SourceIP:      payloadString(event.Payload, "sourceIp"),
		Message:       message,
		Data:          event.Payload,
	}, nil
}

func parseGeneric(event domain.RawEvent) (domain.StructuredData, error) {
	message := payloadString(event.Payload, "message")
	if message == "" {
		message = event.Type
	}
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.StructuredData{
		Timestamp: ts,
		Severity:  domain.KeywordSeverity(message),
		Source:    event.Source,
		SourceIP:  payloadString(event.Payload, "sourceIp"),
		Message:   message,
		Data:      event.Payload,
	}, nil
}
