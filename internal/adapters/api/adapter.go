// Package api implements the pull-mode source adapter (spec.md §4.2): a
// SourceClient capability that fetches one page of events per named
// sub-application (endpoint), with cursor pagination and per-endpoint
// partial-failure tolerance.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/resilience"
)

// Item is one record a SourceClient returns before it's wrapped into a
// domain.RawEvent. Timestamp lets the adapter compute the
// lastEventTimestamp fallback cursor independent of whatever NextToken the
// upstream hands back.
type Item struct {
	Timestamp time.Time
	Type      string
	Payload   map[string]interface{}
	Tags      []string
}

// SourceClient is the capability abstraction over the concrete cloud-log
// API SDK (spec.md §1: "out of scope, abstracted behind SourceAdapter").
// endpoint is the name of the sub-application being polled ("" for a
// connector with no named endpoints configured).
type SourceClient interface {
	FetchBatch(ctx context.Context, endpoint string, cursor domain.CursorState) (items []Item, nextToken string, err error)
}

// Adapter is the API (pull) SourceAdapter.
type Adapter struct {
	client  SourceClient
	config  domain.APIConfig
	sink    connector.EventSink
	status  connector.StatusReporter
	logger  core.Logger
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker

	mu     sync.Mutex
	cursor domain.CursorState
}

type Config struct {
	Client        SourceClient
	Configuration domain.APIConfig
	Sink          connector.EventSink
	Status        connector.StatusReporter
	Logger        core.Logger
	// RetryConfig governs retries of FetchBatch calls against the upstream
	// API. When nil, each FetchBatch call is made once and not retried.
	RetryConfig *resilience.RetryConfig
	// Breaker guards FetchBatch so a consistently failing upstream stops
	// taking traffic (spec.md §7 AdapterUnavailable) instead of retrying
	// into it forever. Nil disables breaker protection for this adapter.
	Breaker *resilience.CircuitBreaker
}

func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	cursor := domain.CursorState{}
	if cfg.Configuration.State != nil {
		cursor = *cfg.Configuration.State
	}
	retry := cfg.RetryConfig
	if retry == nil {
		retry = &resilience.RetryConfig{MaxAttempts: 1}
	}
	return &Adapter{
		client:  cfg.Client,
		config:  cfg.Configuration,
		sink:    cfg.Sink,
		status:  cfg.Status,
		logger:  logger,
		retry:   retry,
		breaker: cfg.Breaker,
		cursor:  cursor,
	}
}

func (a *Adapter) Start(ctx context.Context) error {
	if a.client == nil {
		return fmt.Errorf("%w: no source client configured", core.ErrConfigInvalid)
	}
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error { return nil }

// TestConnection probes with a throwaway cursor and discards the result
// without ever updating the adapter's stored cursor.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string, error) {
	if a.client == nil {
		return false, "no source client configured", core.ErrConfigInvalid
	}
	endpoint := a.firstEndpointName()
	if _, _, err := a.client.FetchBatch(ctx, endpoint, domain.CursorState{}); err != nil {
		return false, err.Error(), nil
	}
	return true, "ok", nil
}

func (a *Adapter) firstEndpointName() string {
	for name := range a.config.Endpoints {
		return name
	}
	return ""
}

// endpointNames returns the sub-applications to poll: every named endpoint
// if the config lists any, otherwise a single anonymous endpoint.
func (a *Adapter) endpointNames() []string {
	if len(a.config.Endpoints) == 0 {
		return []string{""}
	}
	names := make([]string, 0, len(a.config.Endpoints))
	for name := range a.config.Endpoints {
		names = append(names, name)
	}
	return names
}

// RunOnce fetches one page per endpoint. One failed endpoint does not abort
// the others (spec.md §4.2); the aggregate run reports success only if
// every endpoint succeeded.
func (a *Adapter) RunOnce(ctx context.Context) error {
	a.mu.Lock()
	cursor := a.cursor
	a.mu.Unlock()

	var maxTimestamp time.Time
	var lastToken string
	var failures []error

	for _, endpoint := range a.endpointNames() {
		var items []Item
		var nextToken string
		fetch := func() error {
			var fetchErr error
			items, nextToken, fetchErr = a.client.FetchBatch(ctx, endpoint, cursor)
			return fetchErr
		}
		var err error
		if a.breaker != nil {
			err = resilience.RetryWithCircuitBreaker(ctx, a.retry, a.breaker, fetch)
		} else {
			err = resilience.Retry(ctx, a.retry, fetch)
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("endpoint %q: %w", endpoint, err))
			continue
		}
		for _, item := range items {
			event := domain.NewRawEvent(item.Timestamp, "api:"+endpoint, item.Type, item.Payload, item.Tags, nil)
			if err := a.sink.Emit(ctx, event); err != nil {
				a.logger.Warn("failed to emit api event", map[string]interface{}{"error": err.Error()})
			}
			if item.Timestamp.After(maxTimestamp) {
				maxTimestamp = item.Timestamp
			}
		}
		if nextToken != "" {
			lastToken = nextToken
		}
	}

	next := domain.CursorState{NextToken: lastToken}
	if !maxTimestamp.IsZero() {
		next.LastEventTimestamp = maxTimestamp
	} else {
		next.LastEventTimestamp = cursor.LastEventTimestamp
	}
	a.mu.Lock()
	a.cursor = next
	a.mu.Unlock()

	if len(failures) > 0 {
		err := combineErrors(failures)
		if a.status != nil {
			a.status.SetStatus(domain.StatusError, err.Error())
		}
		return err
	}
	return nil
}

// Cursor returns the adapter's current resumption token, for tests and for
// the connector to persist.
func (a *Adapter) Cursor() domain.CursorState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

func combineErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := fmt.Sprintf("%d endpoint(s) failed: ", len(errs))
	for i, e := range errs {
		if i > 0 {
			msg += "; "
		}
		msg += e.Error()
	}
	return fmt.Errorf("%w: %s", core.ErrAdapterUnavailable, msg)
}

var _ connector.SourceAdapter = (*Adapter)(nil)
