// Package handler exposes the admission gate decision over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quillaborn/backend/internal/gate"
	"quillaborn/backend/internal/httpx"
	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/server/middleware"
	"quillaborn/backend/internal/telemetry"
	telemetrydomain "quillaborn/backend/internal/telemetry/domain"
)

// Resolver is the slice of the gate the handler uses.
type Resolver interface {
	Resolve(ctx context.Context, ident identitydomain.Identity, requestedPath string) (gate.Decision, error)
}

type Handler struct {
	gate    Resolver
	emitter telemetry.EventEmitter
}

// New returns a gate HTTP handler. emitter may be nil.
func New(resolver Resolver, emitter telemetry.EventEmitter) *Handler {
	return &Handler{gate: resolver, emitter: emitter}
}

// Routes registers the gate endpoints on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/gate/resolve", h.resolve)
}

type decisionResponse struct {
	Kind     string `json:"kind"`
	Location string `json:"location"`
	Reason   string `json:"reason,omitempty"`
	Step     string `json:"step,omitempty"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	ident, _ := middleware.IdentityFrom(r.Context())
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	decision, err := h.gate.Resolve(r.Context(), ident, path)
	if err != nil {
		// Fail closed: no decision leaves the server on an error.
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
		EventType: telemetrydomain.EventGateDecision,
		ProfileID: ident.ID,
		Outcome:   string(decision.Kind),
		Source:    telemetrydomain.SourceAPI,
	})

	httpx.WriteJSON(w, http.StatusOK, decisionResponse{
		Kind:     string(decision.Kind),
		Location: decision.Location(),
		Reason:   string(decision.Reason),
		Step:     decision.Step,
	})
}
