package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vigil-switch/vigil/api"
)

const pingTimeout = 2 * time.Second

// Pinger probes the message transport for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health handles health check requests.
type Health struct {
	Notifier Pinger
}

// GetHandleFunc handles health check requests by verifying the notifier
// transport is reachable.
func (h *Health) GetHandleFunc(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()

	var status api.HealthStatus

	err := h.Notifier.Ping(ctx)
	if err != nil {
		status = api.Failed
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		status = api.Ok
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(api.Health{
		Status: status,
	})
}
