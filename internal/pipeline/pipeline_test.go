package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	"github.com/quayside-soc/ingestcore/internal/store"
)

func newTestPipeline(bus *eventbus.Bus) (*Pipeline, *store.InMemory) {
	st := store.NewInMemory()
	return New(Config{Store: st, Bus: bus}), st
}

func rawEvent(eventType string, payload map[string]interface{}) domain.RawEvent {
	return domain.NewRawEvent(time.Now(), "test-source", eventType, payload, nil, map[string]interface{}{
		"connectorId": "c1", "organizationId": "org1",
	})
}

func TestSyslogCriticalProducesAlertAndBusMessage(t *testing.T) {
	bus := eventbus.New()
	var captured []AlertCreated
	bus.Subscribe(eventbus.TopicAlertCreated, func(e eventbus.Event) {
		captured = append(captured, e.Data.(AlertCreated))
	})
	p, st := newTestPipeline(bus)

	event := rawEvent("syslog", map[string]interface{}{
		"severity":  2,
		"message":   "critical disk failure",
		"sourceIp":  "10.0.0.1",
		"rawMessage": "<2>Oct 1 12:00:00 host1 app: critical disk failure",
	})

	require.NoError(t, p.ProcessEvent(context.Background(), event))

	alerts := st.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityCritical, alerts[0].Severity)
	assert.Equal(t, "10.0.0.1", alerts[0].SourceIP)

	require.Len(t, captured, 1)
	assert.Equal(t, domain.SeverityCritical, captured[0].Severity)
}

func TestValidationFailureDiscardsEvent(t *testing.T) {
	p, st := newTestPipeline(nil)
	event := rawEvent("generic", map[string]interface{}{"message": "hello"})
	event.ID = "not-a-uuid"

	err := p.ProcessEvent(context.Background(), event)
	assert.Error(t, err)
	assert.Empty(t, st.Alerts())
}

func TestStructuredBypassRoundTrip(t *testing.T) {
	p, st := newTestPipeline(nil)
	data := map[string]interface{}{"custom": "value"}
	event := rawEvent("anything", map[string]interface{}{
		"structured": true,
		"data":       data,
		"message":    "pass through",
		"severity":   string(domain.SeverityLow),
	})

	require.NoError(t, p.ProcessEvent(context.Background(), event))
	alerts := st.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, data, alerts[0].Metadata["rawEvent"].(domain.RawEvent).Payload["data"])
}

func TestLowSeverityDoesNotPublishAlertCreated(t *testing.T) {
	bus := eventbus.New()
	var count int
	bus.Subscribe(eventbus.TopicAlertCreated, func(e eventbus.Event) { count++ })
	p, _ := newTestPipeline(bus)

	event := rawEvent("generic", map[string]interface{}{"message": "routine notice info"})
	require.NoError(t, p.ProcessEvent(context.Background(), event))

	assert.Equal(t, 0, count)
}

func TestTitleTruncatedToHundredChars(t *testing.T) {
	p, st := newTestPipeline(nil)
	long := ""
	for i := 0; i < 150; i++ {
		long += "a"
	}
	event := rawEvent("generic", map[string]interface{}{"message": long})
	require.NoError(t, p.ProcessEvent(context.Background(), event))

	alerts := st.Alerts()
	require.Len(t, alerts, 1)
	assert.Len(t, []rune(alerts[0].Title), domain.MaxTitleLength)
}

func TestSelectParserDispatchesByType(t *testing.T) {
	syslogEvent := rawEvent("syslog", map[string]interface{}{"severity": 4})
	sd, err := selectParser(syslogEvent)(syslogEvent)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, sd.Severity)

	cwEvent := rawEvent("cloudwatch", map[string]interface{}{"message": "error occurred"})
	sd, err = selectParser(cwEvent)(cwEvent)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityHigh, sd.Severity)

	gwsEvent := rawEvent("google-workspace-admin", map[string]interface{}{"eventName": "warning issued"})
	sd, err = selectParser(gwsEvent)(gwsEvent)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, sd.Severity)
}

func TestRawEventIDIsValidUUID(t *testing.T) {
	event := rawEvent("generic", map[string]interface{}{"message": "hello"})
	_, err := uuid.Parse(event.ID)
	require.NoError(t, err)
}
