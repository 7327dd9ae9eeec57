package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a session token is malformed, expired, or mis-signed.
	ErrInvalidToken = errors.New("invalid token")
)

// SessionClaims holds the JWT claims expected on a session token from the hosted auth provider.
// Subject carries the user id; Email is the verified account email.
type SessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// SessionVerifier validates session JWTs (RS256 or ES256) issued by the auth provider.
// This service never issues tokens; it only verifies signature, exp, iss, and aud.
type SessionVerifier struct {
	publicKey crypto.PublicKey
	issuer    string
	audience  string
}

// NewSessionVerifier returns a SessionVerifier for the given provider public key, issuer, and audience.
func NewSessionVerifier(publicKey crypto.PublicKey, issuer, audience string) *SessionVerifier {
	return &SessionVerifier{publicKey: publicKey, issuer: issuer, audience: audience}
}

// Verify parses and validates the session token. Returns the claims, or ErrInvalidToken
// for any validation failure (no distinction is surfaced to callers).
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); ok {
			return v.publicKey, nil
		}
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); ok {
			return v.publicKey, nil
		}
		return nil, ErrInvalidToken
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != v.issuer {
		return nil, ErrInvalidToken
	}
	audOk := false
	for _, a := range claims.Audience {
		if a == v.audience {
			audOk = true
			break
		}
	}
	if !audOk {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// NewOpaqueToken returns a 32-byte random token, hex-encoded. Used for single-use
// approval tokens; unguessable, never derived from the email.
func NewOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
