// Package handler exposes a user's notifications over HTTP.
package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"quillaborn/backend/internal/httpx"
	"quillaborn/backend/internal/notification/domain"
	notificationrepo "quillaborn/backend/internal/notification/repository"
	"quillaborn/backend/internal/server/middleware"
)

const defaultPageSize = 50

type Handler struct {
	repo notificationrepo.Repository
}

// New returns a notification HTTP handler.
func New(repo notificationrepo.Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes registers the notification endpoints on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/notifications", h.list)
	r.Post("/notifications/{id}/read", h.markRead)
}

type notificationResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Body      string     `json:"body"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > 200 {
		limit = 200
	}
	offset := queryInt(r, "offset", 0)

	rows, err := h.repo.ListByProfile(r.Context(), ident.ID, int32(limit), int32(offset))
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	unread, err := h.repo.CountUnread(r.Context(), ident.ID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]notificationResponse, 0, len(rows))
	for _, n := range rows {
		out = append(out, toResponse(n))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": out,
		"unread":        unread,
	})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	id := chi.URLParam(r, "id")
	updated, err := h.repo.MarkRead(r.Context(), id, ident.ID)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !updated {
		// Absent, someone else's, or already read; all look the same.
		httpx.Error(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(n *domain.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		Kind:      n.Kind,
		Body:      n.Body,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
