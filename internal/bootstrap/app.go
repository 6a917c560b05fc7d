package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/quayside-soc/ingestcore/internal/adapters/agent"
	"github.com/quayside-soc/ingestcore/internal/adapters/api"
	"github.com/quayside-soc/ingestcore/internal/adapters/syslog"
	"github.com/quayside-soc/ingestcore/internal/adapters/webhook"
	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	"github.com/quayside-soc/ingestcore/internal/eventbus"
	"github.com/quayside-soc/ingestcore/internal/httpapi"
	"github.com/quayside-soc/ingestcore/internal/monitor"
	"github.com/quayside-soc/ingestcore/internal/observability"
	core "github.com/quayside-soc/ingestcore/internal/platform"
	"github.com/quayside-soc/ingestcore/internal/pipeline"
	"github.com/quayside-soc/ingestcore/internal/queue"
	"github.com/quayside-soc/ingestcore/internal/resilience"
	"github.com/quayside-soc/ingestcore/internal/scheduler"
	"github.com/quayside-soc/ingestcore/internal/store"
)

// Options controls what bootstrap reads besides process config: a static
// connector definitions file and the HMAC secret agent bearer tokens are
// signed with.
type Options struct {
	ConnectorFile string
	AgentSecret   []byte
}

// App owns every top-level component the process runs and the order they
// start and stop in.
type App struct {
	cfg    *core.Config
	logger core.Logger

	telemetry *observability.Provider
	st        store.Store
	bus       *eventbus.Bus
	registry  connector.Registry
	q         *queue.Queue
	pipe      *pipeline.Pipeline
	sched     *scheduler.Scheduler
	mon       *monitor.Monitor

	router         *httpapi.Router
	server         *httpapi.Server
	agentHandlers  *httpapi.AgentHandlers
	healthHandlers *httpapi.HealthHandlers

	connectors []*connector.Connector
}

// New constructs the full dependency graph but starts nothing (spec.md §9:
// "the bootstrap constructs exactly one [of each singleton] and injects
// it"). Call Start to bring the process up.
func New(ctx context.Context, cfg *core.Config, opts Options) (*App, error) {
	logger := cfg.Logger()
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	provider, err := observability.New(cfg.Telemetry, cfg.Development, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	observability.NewMetricsRegistry(provider)

	st, err := buildStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	rows, err := LoadConnectorFile(opts.ConnectorFile)
	if err != nil {
		return nil, fmt.Errorf("load connector file: %w", err)
	}
	for _, row := range rows {
		if memStore, ok := st.(*store.InMemory); ok {
			memStore.PutConnector(row)
		} else if redisStore, ok := st.(*store.Redis); ok {
			if err := redisStore.PutConnector(ctx, row); err != nil {
				return nil, fmt.Errorf("seed connector %s: %w", row.ID, err)
			}
		}
	}

	bus := eventbus.New()

	var registry connector.Registry
	if cfg.Registry.Backend == "redis" {
		client, err := core.NewRedisClient(core.RedisClientOptions{
			RedisURL:  cfg.Registry.RedisURL,
			DB:        core.RedisDBRegistry,
			Namespace: cfg.Namespace,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init registry redis client: %w", err)
		}
		registry = connector.NewRedisBacked(client, bus)
	} else {
		registry = connector.NewInMemory(bus)
	}

	q := queue.New(queue.Config{
		MaxQueueSize:   cfg.Queue.Capacity,
		Concurrency:    cfg.Queue.Workers,
		RetryDelayBase: cfg.Queue.RetryDelayBase,
	}, bus, logger)

	pipe := pipeline.New(pipeline.Config{
		Store:   st,
		Bus:     bus,
		Logger:  logger,
		Metrics: newPipelineMetrics(core.GetGlobalMetricsRegistry()),
	})

	sched := scheduler.New(registry, q, cfg.Scheduler.TickInterval, logger)

	mon := monitor.New(monitor.Config{
		Registry:          registry,
		Bus:               bus,
		Logger:            logger,
		PollInterval:      cfg.Monitor.TickInterval,
		KeepAliveInterval: 30 * time.Second,
	})

	router := httpapi.NewRouter(logger)
	server := httpapi.NewServer(fmt.Sprintf(":%d", cfg.Port), router, cfg.HTTP, logger)
	agentHandlers := httpapi.NewAgentHandlers(opts.AgentSecret, logger)
	healthHandlers := httpapi.NewHealthHandlers(mon)
	agentHandlers.Mount(router)
	healthHandlers.Mount(router)

	app := &App{
		cfg:            cfg,
		logger:         logger,
		telemetry:      provider,
		st:             st,
		bus:            bus,
		registry:       registry,
		q:              q,
		pipe:           pipe,
		sched:          sched,
		mon:            mon,
		router:         router,
		server:         server,
		agentHandlers:  agentHandlers,
		healthHandlers: healthHandlers,
	}

	q.SetProcessor(app.process)

	allRows, err := st.ListConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list connectors: %w", err)
	}
	for _, row := range allRows {
		c, err := app.buildConnector(row, router)
		if err != nil {
			return nil, fmt.Errorf("build connector %s: %w", row.ID, err)
		}
		c.BindSink(queueSink{q: q})
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register connector %s: %w", row.ID, err)
		}
		app.connectors = append(app.connectors, c)
	}

	return app, nil
}

// queueSink adapts *queue.Queue to connector.EventSink: a connector's
// emitted events become JobKindEvent jobs, always at medium priority
// (spec.md §4.5). Nothing re-prioritises a job after the pipeline has
// parsed its event.
type queueSink struct{ q *queue.Queue }

func (s queueSink) Emit(ctx context.Context, event domain.RawEvent) error {
	return s.q.Enqueue(domain.QueueJob{
		Kind:     domain.JobKindEvent,
		Data:     event,
		Priority: domain.PriorityMedium,
	})
}

// process is the queue.Processor: it dispatches on job.Kind to either the
// event pipeline or a connector's RunOnce (spec.md §4.3, §4.5).
func (a *App) process(ctx context.Context, job domain.QueueJob) error {
	switch job.Kind {
	case domain.JobKindEvent:
		return a.pipe.Process(ctx, job)
	case domain.JobKindRunOnce:
		c, ok := a.registry.Get(job.ConnectorID)
		if !ok {
			return fmt.Errorf("%w: %s", core.ErrConnectorNotFound, job.ConnectorID)
		}
		return c.RunOnce(ctx)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func buildStore(cfg *core.Config, logger core.Logger) (store.Store, error) {
	if cfg.Registry.Backend != "redis" {
		return store.NewInMemory(), nil
	}
	client, err := core.NewRedisClient(core.RedisClientOptions{
		RedisURL:  cfg.Registry.RedisURL,
		DB:        core.RedisDBRegistry,
		Namespace: cfg.Namespace,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	return store.NewRedis(client), nil
}

// buildConnector constructs the per-type SourceAdapter and wraps it in a
// Connector, breaking the adapter/connector construction cycle with
// deferredSink/deferredStatus (see wiring.go).
func (a *App) buildConnector(row store.ConnectorRow, router *httpapi.Router) (*connector.Connector, error) {
	sink := &deferredSink{}
	status := &deferredStatus{}
	componentLogger := a.withComponent("connector/" + row.ID)

	var adapter connector.SourceAdapter
	var agentAdapter *agent.Adapter

	switch row.Type {
	case domain.ConnectorTypeAPI:
		cfg := row.Configuration.API
		if cfg == nil {
			return nil, fmt.Errorf("connector %s: missing api configuration", row.ID)
		}
		retryCfg := retryConfigFromResilience(a.cfg.Resilience.Retry)
		breaker, err := resilience.NewCircuitBreakerFromConfig(a.cfg.Resilience.CircuitBreaker, "connector/"+row.ID, componentLogger, nil)
		if err != nil {
			return nil, fmt.Errorf("connector %s: circuit breaker: %w", row.ID, err)
		}
		adapter = api.New(api.Config{
			Client:        api.NewHTTPClient(*cfg),
			Configuration: *cfg,
			Sink:          sink,
			Status:        status,
			Logger:        componentLogger,
			RetryConfig:   retryCfg,
			Breaker:       breaker,
		})
	case domain.ConnectorTypeSyslog:
		cfg := row.Configuration.Syslog
		if cfg == nil {
			return nil, fmt.Errorf("connector %s: missing syslog configuration", row.ID)
		}
		adapter = syslog.New(syslog.Config{
			Configuration: *cfg,
			Sink:          sink,
			Status:        status,
			Logger:        componentLogger,
		})
	case domain.ConnectorTypeAgent:
		cfg := row.Configuration.Agent
		if cfg == nil {
			return nil, fmt.Errorf("connector %s: missing agent configuration", row.ID)
		}
		agentAdapter = agent.New(agent.Config{
			ConnectorID:    row.ID,
			OrganizationID: row.OrganizationID,
			Configuration:  *cfg,
			Sink:           sink,
			Store:          a.st,
			Logger:         componentLogger,
		})
		adapter = agentAdapter
	case domain.ConnectorTypeWebhook:
		cfg := row.Configuration.Webhook
		if cfg == nil {
			return nil, fmt.Errorf("connector %s: missing webhook configuration", row.ID)
		}
		adapter = webhook.New(webhook.Config{
			ConnectorID:    row.ID,
			OrganizationID: row.OrganizationID,
			Configuration:  *cfg,
			Sink:           sink,
			Status:         status,
			Logger:         componentLogger,
			Router:         router,
		})
	default:
		return nil, fmt.Errorf("connector %s: unknown type %q", row.ID, row.Type)
	}

	c, err := connector.New(connector.Config{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		Name:           row.Name,
		Type:           row.Type,
		Configuration:  row.Configuration,
		Adapter:        adapter,
		Bus:            a.bus,
		Store:          a.st,
		Logger:         componentLogger,
	})
	if err != nil {
		return nil, err
	}
	sink.target = c.Sink()
	status.target = c

	if agentAdapter != nil {
		a.agentHandlers.RegisterAdapter(row.ID, agentAdapter)
	}
	return c, nil
}

func retryConfigFromResilience(cfg core.RetryConfig) *resilience.RetryConfig {
	return resilience.NewRetryConfigFromConfig(cfg)
}

func (a *App) withComponent(component string) core.Logger {
	if aware, ok := a.logger.(core.ComponentAwareLogger); ok {
		return aware.WithComponent(component)
	}
	return a.logger
}

// Start brings every component up in dependency order: queue workers and
// monitor before the scheduler starts producing jobs, adapters last since
// they're the first thing that can start emitting events. errCh receives
// any unexpected failure from the HTTP server after startup.
func (a *App) Start(ctx context.Context, errCh chan<- error) error {
	a.q.Start(ctx)
	a.mon.Start(ctx)
	a.sched.Start(ctx)
	a.server.Start(errCh)

	for _, c := range a.connectors {
		if err := c.Start(ctx); err != nil {
			a.logger.Error("connector start failed", map[string]interface{}{
				"connector_id": c.ID(),
				"error":        err.Error(),
			})
		}
	}
	return nil
}

// Shutdown stops components in this order: halt scheduler ticks, stop each
// connector (ending adapter-sourced events), stop the queue (workers are
// cancelled and the jobs they are running are awaited; pending jobs are not
// processed), stop the monitor, then the HTTP server and telemetry. ctx
// bounds the connector, server and telemetry shutdown.
func (a *App) Shutdown(ctx context.Context) error {
	a.sched.Stop()

	for _, c := range a.connectors {
		if err := c.Stop(ctx); err != nil {
			a.logger.Warn("connector stop failed", map[string]interface{}{
				"connector_id": c.ID(),
				"error":        err.Error(),
			})
		}
	}

	a.q.Stop()
	a.mon.Stop()

	if err := a.server.Shutdown(ctx); err != nil {
		a.logger.Warn("http server shutdown failed", map[string]interface{}{"error": err.Error()})
	}

	if a.telemetry != nil {
		if err := a.telemetry.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}
