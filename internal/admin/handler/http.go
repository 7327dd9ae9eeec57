// Package handler exposes the admin back-office endpoints under /api/admin.
// All routes are guarded by the X-Admin-Key middleware; the handlers assume an
// authenticated admin.
package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"quillaborn/backend/internal/audit"
	auditdomain "quillaborn/backend/internal/audit/domain"
	"quillaborn/backend/internal/httpx"
	profiledomain "quillaborn/backend/internal/profile/domain"
	"quillaborn/backend/internal/telemetry"
	telemetrydomain "quillaborn/backend/internal/telemetry/domain"
	waitlistdomain "quillaborn/backend/internal/waitlist/domain"
	"quillaborn/backend/internal/waitlist/service"
)

const defaultPageSize = 100

// Admissions is the slice of the admission service the admin surface uses.
type Admissions interface {
	Approve(ctx context.Context, rawEmail string) (*waitlistdomain.ApprovalToken, error)
	Reissue(ctx context.Context, rawEmail string) (*waitlistdomain.ApprovalToken, error)
}

// EntryLister lists waitlist entries for the back-office.
type EntryLister interface {
	ListEntries(ctx context.Context, status waitlistdomain.Status, limit, offset int) ([]*waitlistdomain.Entry, error)
}

// ProfileLister lists profiles for the user overview and export.
type ProfileLister interface {
	List(ctx context.Context, limit, offset int) ([]*profiledomain.Profile, error)
}

// AuditLister reads the audit trail for the back-office, newest first.
type AuditLister interface {
	List(ctx context.Context, limit, offset int32) ([]*auditdomain.AuditLog, error)
}

type Handler struct {
	admissions Admissions
	entries    EntryLister
	profiles   ProfileLister
	auditTrail AuditLister
	emitter    telemetry.EventEmitter
	audit      audit.AuditLogger
}

// New returns an admin HTTP handler. auditTrail, emitter and auditLogger may be nil.
func New(admissions Admissions, entries EntryLister, profiles ProfileLister, auditTrail AuditLister, emitter telemetry.EventEmitter, auditLogger audit.AuditLogger) *Handler {
	return &Handler{admissions: admissions, entries: entries, profiles: profiles, auditTrail: auditTrail, emitter: emitter, audit: auditLogger}
}

// Routes registers the admin endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/waitlist", h.listWaitlist)
	r.Post("/waitlist/approve", h.approve)
	r.Post("/waitlist/reissue", h.reissue)
	r.Get("/users", h.listUsers)
	r.Get("/users/export", h.exportUsers)
	r.Get("/audit", h.listAudit)
}

type entryResponse struct {
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) listWaitlist(w http.ResponseWriter, r *http.Request) {
	status := waitlistdomain.Status(r.URL.Query().Get("status"))
	switch status {
	case "", waitlistdomain.StatusPending, waitlistdomain.StatusApproved:
	default:
		httpx.Error(w, http.StatusBadRequest, "invalid status filter")
		return
	}
	limit, offset := pagination(r)

	rows, err := h.entries.ListEntries(r.Context(), status, limit, offset)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]entryResponse, 0, len(rows))
	for _, e := range rows {
		out = append(out, entryResponse{Email: e.Email, Status: string(e.Status), CreatedAt: e.CreatedAt})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": out})
}

type tokenResponse struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.tokenAction(w, r, "approve", h.admissions.Approve)
}

func (h *Handler) reissue(w http.ResponseWriter, r *http.Request) {
	h.tokenAction(w, r, "reissue", h.admissions.Reissue)
}

func (h *Handler) tokenAction(w http.ResponseWriter, r *http.Request, action string, op func(ctx context.Context, email string) (*waitlistdomain.ApprovalToken, error)) {
	var body struct {
		Email string `json:"email"`
	}
	if err := httpx.DecodeJSON(r, &body); err != nil || body.Email == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := op(r.Context(), body.Email)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotPending):
			httpx.Error(w, http.StatusConflict, "waitlist entry is not pending")
		case errors.Is(err, service.ErrNotApproved):
			httpx.Error(w, http.StatusConflict, "waitlist entry is not approved")
		default:
			httpx.Error(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if h.audit != nil {
		h.audit.LogEvent(r.Context(), "admin", action, "waitlist_entry", `{"email":"`+token.Email+`"}`)
	}
	telemetry.EmitAsync(h.emitter, r.Context(), &telemetrydomain.Event{
		EventType: telemetrydomain.EventWaitlistApprove,
		Email:     token.Email,
		Actor:     "admin",
		Outcome:   action,
		Source:    telemetrydomain.SourceAPI,
	})
	httpx.WriteJSON(w, http.StatusOK, tokenResponse{
		Email:     token.Email,
		Token:     token.Token,
		CreatedAt: token.CreatedAt,
	})
}

type userResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username,omitempty"`
	DisplayName        string    `json:"displayName,omitempty"`
	OnboardingComplete bool      `json:"onboardingComplete"`
	EarlyAccess        bool      `json:"earlyAccess"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	rows, err := h.profiles.List(r.Context(), limit, offset)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]userResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, userResponse{
			ID:                 p.ID,
			Username:           p.Username,
			DisplayName:        p.DisplayName,
			OnboardingComplete: p.OnboardingComplete,
			EarlyAccess:        p.EarlyAccess,
			CreatedAt:          p.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"users": out})
}

// exportUsers streams the whole profile table as CSV, paging through the repo.
func (h *Handler) exportUsers(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "username", "display_name", "interests", "onboarding_complete", "early_access", "created_at"})

	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		rows, err := h.profiles.List(r.Context(), pageSize, offset)
		if err != nil {
			// Headers are gone already; the truncated file is the best we can do.
			cw.Flush()
			return
		}
		for _, p := range rows {
			_ = cw.Write([]string{
				p.ID,
				p.Username,
				p.DisplayName,
				strings.Join(p.Interests, ";"),
				strconv.FormatBool(p.OnboardingComplete),
				strconv.FormatBool(p.EarlyAccess),
				p.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		if len(rows) < pageSize {
			break
		}
	}
	cw.Flush()

	if h.audit != nil {
		h.audit.LogEvent(r.Context(), "admin", "export", "users", "")
	}
}

type auditLogResponse struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	IP        string    `json:"ip"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if h.auditTrail == nil {
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": []auditLogResponse{}})
		return
	}
	limit, offset := pagination(r)
	rows, err := h.auditTrail.List(r.Context(), int32(limit), int32(offset))
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]auditLogResponse, 0, len(rows))
	for _, a := range rows {
		out = append(out, auditLogResponse{
			ID:        a.ID,
			Actor:     a.Actor,
			Action:    a.Action,
			Resource:  a.Resource,
			IP:        a.IP,
			Metadata:  a.Metadata,
			CreatedAt: a.CreatedAt,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{"logs": out})
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
