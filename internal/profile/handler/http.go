// Package handler exposes the authenticated profile endpoints under /api/me.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"quillaborn/backend/internal/httpx"
	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/profile/domain"
	"quillaborn/backend/internal/profile/service"
	"quillaborn/backend/internal/server/middleware"
)

// Profiles is the slice of the provisioner the handler uses.
type Profiles interface {
	EnsureProfile(ctx context.Context, ident identitydomain.Identity) (*domain.Profile, error)
	SetUsername(ctx context.Context, id, username string) error
	UsernameAvailable(ctx context.Context, username string) (bool, error)
	UpdateBio(ctx context.Context, id, bio string) error
	SetInterests(ctx context.Context, id string, interests []string) error
	CompleteOnboarding(ctx context.Context, id string) error
}

// Welcomer posts the in-app welcome after onboarding completes. Best-effort.
type Welcomer interface {
	NotifyWelcome(ctx context.Context, profileID string)
}

type Handler struct {
	profiles Profiles
	welcome  Welcomer
}

// New returns a profile HTTP handler. welcome may be nil.
func New(profiles Profiles, welcome Welcomer) *Handler {
	return &Handler{profiles: profiles, welcome: welcome}
}

// Routes registers the /me endpoints on an authenticated router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/me", h.me)
	r.Post("/me/username", h.setUsername)
	r.Get("/me/username/check", h.checkUsername)
	r.Post("/me/bio", h.updateBio)
	r.Post("/me/interests", h.setInterests)
	r.Post("/me/onboarding/complete", h.completeOnboarding)
}

type profileResponse struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username,omitempty"`
	DisplayName        string    `json:"displayName,omitempty"`
	Bio                string    `json:"bio,omitempty"`
	Interests          []string  `json:"interests"`
	OnboardingComplete bool      `json:"onboardingComplete"`
	EarlyAccess        bool      `json:"earlyAccess"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func toResponse(p *domain.Profile) profileResponse {
	interests := p.Interests
	if interests == nil {
		interests = []string{}
	}
	return profileResponse{
		ID:                 p.ID,
		Username:           p.Username,
		DisplayName:        p.DisplayName,
		Bio:                p.Bio,
		Interests:          interests,
		OnboardingComplete: p.OnboardingComplete,
		EarlyAccess:        p.EarlyAccess,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	profile, err := h.profiles.EnsureProfile(r.Context(), ident)
	if err != nil {
		writeProfileError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(profile))
}

func (h *Handler) setUsername(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) error {
		var body struct {
			Username string `json:"username"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			return errBadBody
		}
		return h.profiles.SetUsername(ctx, id, body.Username)
	})
}

func (h *Handler) checkUsername(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.IdentityFrom(r.Context()); !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	available, err := h.profiles.UsernameAvailable(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		writeProfileError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]bool{"available": available})
}

func (h *Handler) updateBio(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) error {
		var body struct {
			Bio string `json:"bio"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			return errBadBody
		}
		return h.profiles.UpdateBio(ctx, id, body.Bio)
	})
}

func (h *Handler) setInterests(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, id string) error {
		var body struct {
			Interests []string `json:"interests"`
		}
		if err := httpx.DecodeJSON(r, &body); err != nil {
			return errBadBody
		}
		return h.profiles.SetInterests(ctx, id, body.Interests)
	})
}

func (h *Handler) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	if err := h.profiles.CompleteOnboarding(r.Context(), ident.ID); err != nil {
		writeProfileError(w, err)
		return
	}
	if h.welcome != nil {
		h.welcome.NotifyWelcome(r.Context(), ident.ID)
	}
	h.respondProfile(w, r, ident)
}

// mutate runs op for the authenticated profile and answers with the fresh profile.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error) {
	ident, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	if err := op(r.Context(), ident.ID); err != nil {
		writeProfileError(w, err)
		return
	}
	h.respondProfile(w, r, ident)
}

func (h *Handler) respondProfile(w http.ResponseWriter, r *http.Request, ident identitydomain.Identity) {
	profile, err := h.profiles.EnsureProfile(r.Context(), ident)
	if err != nil {
		writeProfileError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(profile))
}

var errBadBody = errors.New("invalid request body")

func writeProfileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBadBody):
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
	case errors.Is(err, domain.ErrInvalidUsername):
		httpx.Error(w, http.StatusBadRequest, "invalid username")
	case errors.Is(err, service.ErrUsernameTaken):
		httpx.Error(w, http.StatusConflict, "username already taken")
	case errors.Is(err, service.ErrUsernameRequired):
		httpx.Error(w, http.StatusConflict, "username must be chosen first")
	case errors.Is(err, service.ErrProfileNotFound):
		httpx.Error(w, http.StatusNotFound, "profile not found")
	case errors.Is(err, service.ErrIdentityRequired):
		httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
	default:
		httpx.Error(w, http.StatusInternalServerError, "internal error")
	}
}
