package api

import (
	"net/http"

	"github.com/Priya8975/webhook-ingest/internal/store"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status        string              `json:"status"`
	Version       string              `json:"version"`
	Providers     []string            `json:"providers"`
	ReplayBackend string              `json:"replay_backend"`
	ReplayCircuit *store.BreakerState `json:"replay_circuit,omitempty"`
}

// HealthHandler returns the health check handler. The service reports
// "degraded" while the replay store circuit is open.
func HealthHandler(reg *Registry, replayBackend string, breaker *store.Breaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:        "healthy",
			Version:       "1.0.0",
			Providers:     reg.Providers(),
			ReplayBackend: replayBackend,
		}
		if breaker != nil {
			state := breaker.State()
			resp.ReplayCircuit = &state
			if state.State == store.StateOpen {
				resp.Status = "degraded"
			}
		}

		respondJSON(w, http.StatusOK, resp)
	}
}
