package httpapi

import (
	"net/http"

	"github.com/quayside-soc/ingestcore/internal/monitor"
)

// HealthHandlers serves /healthz (liveness) and /metrics (JSON snapshot of
// the realtime monitor's per-connector histories).
type HealthHandlers struct {
	monitor *monitor.Monitor
}

func NewHealthHandlers(m *monitor.Monitor) *HealthHandlers {
	return &HealthHandlers{monitor: m}
}

func (h *HealthHandlers) Mount(router *Router) {
	router.HandleFunc("/healthz", h.handleHealthz)
	router.HandleFunc("/metrics", h.handleMetrics)
}

func (h *HealthHandlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandlers) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.AllHistories())
}
