package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/crucial707/mydiary/internal/logging"
)

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// ==========================
// Health Handler
// ==========================
type HealthHandler struct {
	// Checks are probed by Ready, keyed by name (e.g. "db", "redis").
	Checks map[string]Pinger
}

// Health is the liveness probe. It never touches dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready answers 503 when any dependency fails its ping.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{}
	code := http.StatusOK
	for name, p := range h.Checks {
		if err := p.PingContext(ctx); err != nil {
			logging.LogError(ctx, nil, "readiness check failed", err)
			status[name] = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	if code == http.StatusOK {
		status["status"] = "ok"
	} else {
		status["status"] = "unavailable"
	}
	writeJSON(w, code, status)
}
