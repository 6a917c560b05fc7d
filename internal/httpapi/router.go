// Package httpapi is the HTTP surface in front of the ingestion core: agent
// registration/heartbeat/data endpoints, webhook path registration, a
// liveness probe, and a JSON metrics snapshot. Every handler is wrapped with
// otelhttp per the teacher's telemetry.TracingMiddleware pattern (see
// internal/observability), generalized here to per-route otelhttp.NewHandler
// spans since httpapi owns its own net/http mux rather than a framework
// router.
package httpapi

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Router wraps a http.ServeMux so webhook.Router and agent/api handler
// registration share one HTTP surface and one otelhttp instrumentation
// layer, instead of each adapter standing up its own listener.
type Router struct {
	mux    *http.ServeMux
	logger core.Logger
}

func NewRouter(logger core.Logger) *Router {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Router{mux: http.NewServeMux(), logger: logger}
}

// Handle satisfies webhook.Router: it wraps handler in an otelhttp span
// named after the path before registering it.
func (r *Router) Handle(path string, handler http.Handler) {
	r.mux.Handle(path, otelhttp.NewHandler(handler, "webhook "+path))
}

// HandleFunc registers a plain handler function under the same
// instrumentation as Handle.
func (r *Router) HandleFunc(path string, handler http.HandlerFunc) {
	r.mux.Handle(path, otelhttp.NewHandler(handler, path))
}

// ServeHTTP lets Router itself be passed straight to http.Server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
