package middleware

import (
	"context"

	identitydomain "quillaborn/backend/internal/identity/domain"
)

type contextKey struct{ name string }

var identityKey = contextKey{"identity"}

// WithIdentity returns a context carrying the authenticated identity.
// Handlers read it back via IdentityFrom.
func WithIdentity(ctx context.Context, ident identitydomain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom returns the authenticated identity and true if set; otherwise a
// zero Identity and false.
func IdentityFrom(ctx context.Context) (identitydomain.Identity, bool) {
	v, ok := ctx.Value(identityKey).(identitydomain.Identity)
	return v, ok
}
