// Package handler exposes the waitlist over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"quillaborn/backend/internal/audit"
	"quillaborn/backend/internal/httpx"
	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/server/middleware"
	"quillaborn/backend/internal/telemetry"
	telemetrydomain "quillaborn/backend/internal/telemetry/domain"
	waitlistdomain "quillaborn/backend/internal/waitlist/domain"
	"quillaborn/backend/internal/waitlist/service"
)

// Admissions is the slice of the admission service the handler uses.
type Admissions interface {
	Submit(ctx context.Context, rawEmail string) (service.SubmitResult, error)
	StatusFor(ctx context.Context, rawEmail string) (waitlistdomain.Status, error)
	Link(ctx context.Context, ident identitydomain.Identity, token string) (service.RedeemResult, error)
}

// Handler serves the public waitlist endpoints and the authenticated redemption.
type Handler struct {
	admissions Admissions
	emitter    telemetry.EventEmitter
	audit      audit.AuditLogger
}

// New returns a waitlist HTTP handler. emitter and auditLogger may be nil.
func New(admissions Admissions, emitter telemetry.EventEmitter, auditLogger audit.AuditLogger) *Handler {
	return &Handler{admissions: admissions, emitter: emitter, audit: auditLogger}
}

// PublicRoutes registers the unauthenticated endpoints.
func (h *Handler) PublicRoutes(r chi.Router) {
	r.Post("/waitlist", h.submit)
	r.Get("/waitlist/status", h.status)
}

// SessionRoutes registers the endpoints that need an authenticated identity.
func (h *Handler) SessionRoutes(r chi.Router) {
	r.Post("/waitlist/redeem", h.redeem)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.admissions.Submit(r.Context(), body.Email)
	if err != nil {
		if errors.Is(err, service.ErrInvalidEmail) {
			httpx.Error(w, http.StatusBadRequest, "invalid email address")
			return
		}
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
		EventType: telemetrydomain.EventWaitlistSubmit,
		Email:     waitlistdomain.NormalizeEmail(body.Email),
		Outcome:   string(result),
		Source:    telemetrydomain.SourceAPI,
	})
	httpx.WriteJSON(w, http.StatusAccepted, map[string]string{"result": string(result)})
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		httpx.Error(w, http.StatusBadRequest, "email is required")
		return
	}
	status, err := h.admissions.StatusFor(r.Context(), email)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	// Always 200 with one of exactly three states; the absence of an entry is
	// not distinguishable from a malformed address.
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || body.Token == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.admissions.Link(r.Context(), ident, body.Token)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if h.audit != nil {
		h.audit.LogEvent(r.Context(), ident.ID, "redeem", "approval_token", `{"result":"`+string(result)+`"}`)
	}
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
		EventType: telemetrydomain.EventTokenRedeem,
		Email:     waitlistdomain.NormalizeEmail(ident.Email),
		ProfileID: ident.ID,
		Outcome:   string(result),
		Source:    telemetrydomain.SourceAPI,
	})
	httpx.WriteJSON(w, redeemStatus(result), map[string]string{"result": string(result)})
}

// redeemStatus maps each redemption outcome to an HTTP status. Every outcome
// still carries the typed result body.
func redeemStatus(result service.RedeemResult) int {
	switch result {
	case service.RedeemOK:
		return http.StatusOK
	case service.RedeemInvalidToken:
		return http.StatusNotFound
	case service.RedeemEmailMismatch:
		return http.StatusForbidden
	case service.RedeemAlreadyUsed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
