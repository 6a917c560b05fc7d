package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/quayside-soc/ingestcore/internal/adapters/agent"
	"github.com/quayside-soc/ingestcore/internal/domain"
	core "github.com/quayside-soc/ingestcore/internal/platform"
)

// AgentHandlers implements the four agent endpoints spec.md §6 names:
// register, heartbeat, data, and config. One process can host many agent
// connectors; requests are routed to the right one by organizationKey at
// registration and by the bearer token's connectorId claim afterward.
type AgentHandlers struct {
	secret []byte
	logger core.Logger

	mu       sync.RWMutex
	adapters map[string]*agent.Adapter // keyed by connectorID
}

func NewAgentHandlers(secret []byte, logger core.Logger) *AgentHandlers {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &AgentHandlers{secret: secret, logger: logger, adapters: make(map[string]*agent.Adapter)}
}

// RegisterAdapter binds one agent connector's adapter so its endpoints
// become reachable. Bootstrap calls this once per agent connector.
func (h *AgentHandlers) RegisterAdapter(connectorID string, a *agent.Adapter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.adapters[connectorID] = a
}

func (h *AgentHandlers) byOrganizationKey(key string) *agent.Adapter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, a := range h.adapters {
		if a.OrganizationKey() == key {
			return a
		}
	}
	return nil
}

func (h *AgentHandlers) byConnectorID(id string) *agent.Adapter {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.adapters[id]
}

// Mount registers all four routes on router.
func (h *AgentHandlers) Mount(router *Router) {
	router.HandleFunc("/api/agents/register", h.handleRegister)
	router.HandleFunc("/api/agents/heartbeat", h.authenticated(h.handleHeartbeat))
	router.HandleFunc("/api/agents/data", h.authenticated(h.handleData))
	router.HandleFunc("/api/agents/config", h.authenticated(h.handleConfig))
}

type registerRequest struct {
	OrganizationKey string   `json:"organizationKey"`
	Hostname        string   `json:"hostname"`
	IPAddress       string   `json:"ipAddress"`
	OperatingSystem string   `json:"operatingSystem"`
	Version         string   `json:"version"`
	Capabilities    []string `json:"capabilities"`
}

type registerResponse struct {
	AgentID string             `json:"agentId"`
	Token   string             `json:"token"`
	Status  domain.AgentStatus `json:"status"`
}

func (h *AgentHandlers) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	a := h.byOrganizationKey(req.OrganizationKey)
	if a == nil {
		http.Error(w, "no agent connector accepts this organization key", http.StatusUnauthorized)
		return
	}

	rec, err := a.RegisterAgent(r.Context(), agent.RegistrationRequest{
		OrganizationKey: req.OrganizationKey,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		OperatingSystem: req.OperatingSystem,
		Version:         req.Version,
		Capabilities:    req.Capabilities,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := issueAgentToken(h.secret, rec.AgentID, rec.ConnectorID)
	if err != nil {
		h.logger.Error("failed to sign agent token", map[string]interface{}{"error": err.Error()})
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{AgentID: rec.AgentID, Token: token, Status: rec.Status})
}

// authenticated wraps handler with bearer-token verification and passes the
// parsed claims directly, rather than stashing them in the request context.
func (h *AgentHandlers) authenticated(next func(w http.ResponseWriter, r *http.Request, claims *agentClaims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("Authorization")
		raw = strings.TrimPrefix(raw, "Bearer ")
		if raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		claims, err := parseAgentToken(h.secret, raw)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next(w, r, claims)
	}
}

type heartbeatRequest struct {
	Metrics map[string]interface{} `json:"metrics"`
}

func (h *AgentHandlers) handleHeartbeat(w http.ResponseWriter, r *http.Request, claims *agentClaims) {
	a := h.byConnectorID(claims.ConnectorID)
	if a == nil {
		http.Error(w, "unknown connector", http.StatusNotFound)
		return
	}
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := a.ProcessHeartbeat(r.Context(), claims.AgentID, req.Metrics); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type dataEvent struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
}

type dataRequest struct {
	Events []dataEvent `json:"events"`
}

func (h *AgentHandlers) handleData(w http.ResponseWriter, r *http.Request, claims *agentClaims) {
	a := h.byConnectorID(claims.ConnectorID)
	if a == nil {
		http.Error(w, "unknown connector", http.StatusNotFound)
		return
	}
	var req dataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	payloads := make([]agent.EventPayload, 0, len(req.Events))
	for _, e := range req.Events {
		ts := e.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		payloads = append(payloads, agent.EventPayload{Timestamp: ts, Type: e.Type, Data: e.Data})
	}
	if err := a.ProcessEvents(r.Context(), claims.AgentID, payloads); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type configResponse struct {
	HeartbeatIntervalSec int      `json:"heartbeatIntervalSec"`
	BatchSize            int      `json:"batchSize"`
	BatchTimeLimitSec    int      `json:"batchTimeLimitSec"`
	Capabilities         []string `json:"capabilities"`
}

func (h *AgentHandlers) handleConfig(w http.ResponseWriter, r *http.Request, claims *agentClaims) {
	a := h.byConnectorID(claims.ConnectorID)
	if a == nil {
		http.Error(w, "unknown connector", http.StatusNotFound)
		return
	}
	cfg := a.Config()
	writeJSON(w, http.StatusOK, configResponse{
		HeartbeatIntervalSec: cfg.AgentHeartbeatInterval,
		BatchSize:            cfg.BatchSize,
		BatchTimeLimitSec:    cfg.BatchTimeLimit,
		Capabilities:         cfg.Capabilities,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
