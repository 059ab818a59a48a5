package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/projectdesk/internal/core"
)

const defaultHealthTimeout = 2 * time.Second

// HealthCheck names one dependency checked by /healthz.
type HealthCheck struct {
	Name   string
	Pinger core.Pinger
}

// HealthHandler answers readiness and liveness checks.
type HealthHandler struct {
	Checks  []HealthCheck
	Timeout time.Duration // Defaults to 2s
	Logger  *slog.Logger
}

// ServeHTTP pings every dependency; any failure yields 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultHealthTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	status, body := http.StatusOK, map[string]string{"status": "ok"}
	for _, c := range h.Checks {
		if c.Pinger == nil {
			continue
		}
		if err := c.Pinger.Ping(ctx); err != nil {
			if h.Logger != nil {
				h.Logger.WarnContext(r.Context(), "health check failed", "check", c.Name, "error", err)
			}
			status, body = http.StatusServiceUnavailable, map[string]string{"status": "unavailable"}
			break
		}
	}

	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		return
	}
	WriteJSON(w, status, body)
}

// PingFunc adapts a function to core.Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
