// Package webhook implements the webhook (push) source adapter (spec.md
// §4.2): it registers its configured path on a shared HTTP router rather
// than owning a listener or a global app instance, so many webhook
// connectors can share one HTTP surface (spec.md §9 design note).
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/quayside-soc/ingestcore/internal/connector"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// Router is the narrow capability the adapter needs from the HTTP surface:
// register a handler at a path. httpapi's mux satisfies this directly.
type Router interface {
	Handle(path string, handler http.Handler)
}

type Adapter struct {
	connectorID    string
	organizationID string
	config         domain.WebhookConfig
	sink           connector.EventSink
	status         connector.StatusReporter
	logger         core.Logger
	router         Router
}

type Config struct {
	ConnectorID    string
	OrganizationID string
	Configuration  domain.WebhookConfig
	Sink           connector.EventSink
	Status         connector.StatusReporter
	Logger         core.Logger
	Router         Router
}

func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Adapter{
		connectorID:    cfg.ConnectorID,
		organizationID: cfg.OrganizationID,
		config:         cfg.Configuration,
		sink:           cfg.Sink,
		status:         cfg.Status,
		logger:         logger,
		router:         cfg.Router,
	}
}

// Start registers the configured path with the router. Unlike the other
// adapters there is no socket to open: the handler becomes live the moment
// it's registered.
func (a *Adapter) Start(ctx context.Context) error {
	if a.router == nil {
		return fmt.Errorf("%w: no router configured for webhook adapter", core.ErrConfigInvalid)
	}
	a.router.Handle(a.config.Path, http.HandlerFunc(a.handle))
	return nil
}

func (a *Adapter) Stop(ctx context.Context) error { return nil }

// RunOnce is a no-op for a push adapter; there is no polling work.
func (a *Adapter) RunOnce(ctx context.Context) error { return nil }

// TestConnection reports whether the path is configured; there is nothing
// else to probe without making an HTTP request to itself.
func (a *Adapter) TestConnection(ctx context.Context) (bool, string, error) {
	if a.config.Path == "" {
		return false, "no path configured", nil
	}
	return true, "ok", nil
}

func (a *Adapter) handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if a.config.VerifySignature {
		sig := r.Header.Get(a.config.SignatureHeader)
		if !validSignature(a.config.SignatureSecret, body, sig) {
			a.emitSignatureError(r)
			http.Error(w, "invalid signature", http.StatusUnauthorized)
			return
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		payload = map[string]interface{}{"raw": string(body)}
	}

	eventType := "webhook"
	if t, ok := payload["type"].(string); ok && t != "" {
		eventType = t
	}

	event := domain.NewRawEvent(time.Now(), "webhook:"+a.config.Path, eventType, payload, nil, map[string]interface{}{
		"connectorId":    a.connectorID,
		"organizationId": a.organizationID,
	})

	if err := a.sink.Emit(r.Context(), event); err != nil {
		if errors.Is(err, core.ErrQueueFull) {
			if a.status != nil {
				a.status.SetStatus(domain.StatusError, "job queue full, rejecting webhook")
			}
			http.Error(w, "queue full", http.StatusServiceUnavailable)
			return
		}
		http.Error(w, "failed to accept event", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// emitSignatureError reports a rejected webhook through the same sink as
// accepted events, tagged "error" instead of carrying the payload - spec.md
// §4.2/§7: "invalid signature -> emit error event, never emit the payload."
func (a *Adapter) emitSignatureError(r *http.Request) {
	event := domain.NewRawEvent(time.Now(), "webhook:"+a.config.Path, "error", map[string]interface{}{
		"reason": "invalid signature",
	}, []string{"error"}, map[string]interface{}{
		"connectorId":    a.connectorID,
		"organizationId": a.organizationID,
	})
	if err := a.sink.Emit(r.Context(), event); err != nil {
		a.logger.Warn("failed to emit webhook signature error event", map[string]interface{}{"error": err.Error()})
	}
}

func validSignature(secret string, body []byte, provided string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(provided))
}

var _ connector.SourceAdapter = (*Adapter)(nil)
