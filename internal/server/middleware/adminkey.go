package middleware

import (
	"net/http"

	"quillaborn/backend/internal/httpx"
	"quillaborn/backend/internal/security"
)

// AdminKeyHeader carries the admin service key on /api/admin requests.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey guards admin routes with a bcrypt-hashed service key. When no hash
// is configured the whole admin surface answers 404, indistinguishable from
// routes that do not exist.
func AdminKey(hasher *security.Hasher, keyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keyHash == "" {
				http.NotFound(w, r)
				return
			}
			key := r.Header.Get(AdminKeyHeader)
			if key == "" || hasher.Compare(keyHash, []byte(key)) != nil {
				httpx.Error(w, http.StatusUnauthorized, "missing or invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
