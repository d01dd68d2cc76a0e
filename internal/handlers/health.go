package handlers

import "net/http"

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct{}

// NewHealthHandlers constructs the default health handlers.
func NewHealthHandlers() *HealthHandlers {
	return &HealthHandlers{}
}

// Healthz reports process liveness.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports readiness to accept traffic.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}
