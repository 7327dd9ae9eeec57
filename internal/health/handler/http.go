// Package handler serves readiness/liveness for load balancers and CI.
package handler

import (
	"context"
	"net/http"

	"quillaborn/backend/internal/httpx"
)

// Pinger reports store connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	db Pinger
}

// New returns a health handler. db may be nil when no store is configured.
func New(db Pinger) *Handler {
	return &Handler{db: db}
}

// Healthz answers 200 when the process is up and its store reachable, 503 when
// the store ping fails.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
