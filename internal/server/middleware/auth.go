package middleware

import (
	"net/http"
	"strings"

	"quillaborn/backend/internal/httpx"
	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/security"
)

const bearerPrefix = "bearer "

// Auth validates the Bearer session token on every request and sets the
// identity in context. Requests without a valid token get 401; routes that
// should not require login simply go outside this middleware.
func Auth(tokens *security.SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			claims, err := tokens.Verify(token)
			if err != nil {
				httpx.Error(w, http.StatusUnauthorized, "missing or invalid authorization")
				return
			}
			ident := identitydomain.Identity{
				ID:          claims.Subject,
				Email:       claims.Email,
				DisplayName: claims.Name,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
