package handlers

import (
	"net/http"
	"time"

	"github.com/create-my-art/api/internal/platform/httpx"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	started time.Time
	// ready reports whether the backing services are reachable. A nil check
	// means always ready.
	ready func() error
}

// NewHealthHandlers constructs the probe handlers.
func NewHealthHandlers(ready func() error) *HealthHandlers {
	return &HealthHandlers{
		started: time.Now(),
		ready:   ready,
	}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.started).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Readyz reports whether dependencies are ready to serve.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(); err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", err.Error(), http.StatusServiceUnavailable))
			return
		}
	}
	httpx.WriteJSON(r.Context(), w, http.StatusOK, map[string]any{"status": "ready"})
}
