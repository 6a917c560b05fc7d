// Package monitor implements the realtime monitor (spec.md §4.5): a
// periodic metrics/health poll over every registered connector, a bounded
// per-connector history, and a broadcast fan-out to observer sinks added
// through AddSink (httpapi registers none).
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// historyLimit bounds the ring buffer kept per connector (spec.md §4.5).
const historyLimit = 100

const (
	defaultPollInterval      = 10 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
)

// UpdateType tags the payload shape of a broadcast Update.
type UpdateType string

const (
	UpdateMetrics        UpdateType = "metrics"
	UpdateStatusChange   UpdateType = "status-change"
	UpdateConnectorEvent UpdateType = "connector-event"
	UpdateKeepAlive      UpdateType = "keep-alive"
)

// Update is the typed message broadcast to every observer sink.
type Update struct {
	Type        UpdateType  `json:"type"`
	ConnectorID string      `json:"connectorId,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// Sink is one observer, added through AddSink. A failing Send is treated
// as a dead connection and the sink is dropped.
type Sink interface {
	Send(update Update) error
}

// Monitor polls connectors, keeps a bounded metrics history, and fans
// broadcasts out to every registered sink.
type Monitor struct {
	registry          connector.Registry
	bus               *eventbus.Bus
	logger            core.Logger
	pollInterval      time.Duration
	keepAliveInterval time.Duration

	mu         sync.Mutex
	histories  map[string][]domain.MetricsSnapshot
	sinks      map[int]Sink
	nextSinkID int

	pollCancel     context.CancelFunc
	pollDone       chan struct{}
	keepAliveDone  chan struct{}
	keepAliveCancel context.CancelFunc
}

type Config struct {
	Registry          connector.Registry
	Bus               *eventbus.Bus
	Logger            core.Logger
	PollInterval      time.Duration
	KeepAliveInterval time.Duration
}

func New(cfg Config) *Monitor {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	keepAlive := cfg.KeepAliveInterval
	if keepAlive <= 0 {
		keepAlive = defaultKeepAliveInterval
	}
	m := &Monitor{
		registry:          cfg.Registry,
		bus:               cfg.Bus,
		logger:            logger,
		pollInterval:      poll,
		keepAliveInterval: keepAlive,
		histories:         make(map[string][]domain.MetricsSnapshot),
		sinks:             make(map[int]Sink),
	}
	if m.bus != nil {
		m.bus.Subscribe(eventbus.TopicStatusChange, m.onStatusChange)
		m.bus.Subscribe(eventbus.TopicAutoDisabled, m.onStatusChange)
		m.bus.Subscribe(eventbus.TopicConnectorEvent, m.onConnectorEvent)
	}
	return m
}

func (m *Monitor) onStatusChange(e eventbus.Event) {
	sc, ok := e.Data.(connector.StatusChangeEvent)
	if !ok {
		return
	}
	m.broadcast(Update{
		Type: UpdateStatusChange, ConnectorID: sc.ConnectorID, Data: sc, Timestamp: time.Now(),
	})
}

func (m *Monitor) onConnectorEvent(e eventbus.Event) {
	ce, ok := e.Data.(connector.ConnectorEventEmitted)
	if !ok {
		return
	}
	m.broadcast(Update{
		Type: UpdateConnectorEvent, ConnectorID: ce.ConnectorID, Data: ce.Event, Timestamp: time.Now(),
	})
}

// Start launches the poll loop and the keep-alive loop, each in its own
// goroutine, until ctx is cancelled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	pollCtx, pollCancel := context.WithCancel(ctx)
	m.pollCancel = pollCancel
	m.pollDone = make(chan struct{})
	go m.pollLoop(pollCtx)

	kaCtx, kaCancel := context.WithCancel(ctx)
	m.keepAliveCancel = kaCancel
	m.keepAliveDone = make(chan struct{})
	go m.keepAliveLoop(kaCtx)
}

func (m *Monitor) Stop() {
	if m.pollCancel != nil {
		m.pollCancel()
		<-m.pollDone
	}
	if m.keepAliveCancel != nil {
		m.keepAliveCancel()
		<-m.keepAliveDone
	}
}

func (m *Monitor) pollLoop(ctx context.Context) {
	defer close(m.pollDone)
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) keepAliveLoop(ctx context.Context) {
	defer close(m.keepAliveDone)
	ticker := time.NewTicker(m.keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.broadcast(Update{Type: UpdateKeepAlive, Timestamp: time.Now()})
		}
	}
}

// poll refreshes every registered connector's metrics snapshot and runs its
// side-effect-free health check, per spec.md §4.5.
func (m *Monitor) poll(ctx context.Context) {
	for _, c := range m.registry.All() {
		snapshot := c.GetMetrics()
		m.record(c.ID(), snapshot)
		m.broadcast(Update{Type: UpdateMetrics, ConnectorID: c.ID(), Data: snapshot, Timestamp: time.Now()})

		if ok, msg, err := c.TestConnection(ctx); err != nil || !ok {
			m.logger.Warn("connector health check failed", map[string]interface{}{
				"connectorId": c.ID(), "message": msg,
			})
		}
	}
}

// record appends snapshot to the connector's history, computing throughput
// from the previous point, and trims the buffer to historyLimit.
func (m *Monitor) record(connectorID string, snapshot domain.MetricsSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.histories[connectorID]
	if len(hist) > 0 {
		snapshot.ThroughputPerMin = domain.Throughput(hist[len(hist)-1], snapshot)
	}
	hist = append(hist, snapshot)
	if len(hist) > historyLimit {
		hist = hist[len(hist)-historyLimit:]
	}
	m.histories[connectorID] = hist
}

// History returns a copy of the bounded metrics history for one connector.
func (m *Monitor) History(connectorID string) []domain.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	hist := m.histories[connectorID]
	out := make([]domain.MetricsSnapshot, len(hist))
	copy(out, hist)
	return out
}

// AllHistories returns a copy of the full history map, for the /metrics
// HTTP endpoint.
func (m *Monitor) AllHistories() map[string][]domain.MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]domain.MetricsSnapshot, len(m.histories))
	for id, hist := range m.histories {
		cp := make([]domain.MetricsSnapshot, len(hist))
		copy(cp, hist)
		out[id] = cp
	}
	return out
}

// AddSink registers an observer and returns a handle for RemoveSink.
func (m *Monitor) AddSink(sink Sink) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSinkID++
	id := m.nextSinkID
	m.sinks[id] = sink
	return id
}

func (m *Monitor) RemoveSink(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sinks, id)
}

// broadcast sends update to every sink, dropping any sink whose Send fails
// (spec.md §4.5: a send error removes the observer).
func (m *Monitor) broadcast(update Update) {
	m.mu.Lock()
	ids := make([]int, 0, len(m.sinks))
	sinks := make([]Sink, 0, len(m.sinks))
	for id, s := range m.sinks {
		ids = append(ids, id)
		sinks = append(sinks, s)
	}
	m.mu.Unlock()

	var dead []int
	for i, s := range sinks {
		if err := s.Send(update); err != nil {
			dead = append(dead, ids[i])
		}
	}
	if len(dead) == 0 {
		return
	}
	m.mu.Lock()
	for _, id := range dead {
		delete(m.sinks, id)
	}
	m.mu.Unlock()
}
