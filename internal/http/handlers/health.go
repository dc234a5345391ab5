package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hongminglow/pawmart/internal/http/respond"
)

// Pinger is a dependency whose reachability the health check reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler returns uptime and basic status.
type HealthHandler struct {
	startedAt time.Time
	deps      map[string]Pinger
}

// NewHealthHandler creates a health endpoint handler.
func NewHealthHandler(startedAt time.Time, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{startedAt: startedAt, deps: deps}
}

// Register wires the handler into the router.
func (h *HealthHandler) Register(public chi.Router) {
	public.Get("/health", h.handle)
}

func (h *HealthHandler) handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(h.deps))
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	respond.JSON(w, code, status, map[string]any{
		"status": status,
		"uptime": time.Since(h.startedAt).Truncate(time.Second).String(),
		"checks": checks,
	})
}
