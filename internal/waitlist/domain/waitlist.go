package domain

import (
	"strings"
	"time"
)

// Status is the stored state of a waitlist entry. "Consumed" is never stored:
// an email is consumed once the identity that redeemed its token carries early access.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	// StatusUnknown is the uniform answer for both "no such entry" and "entry exists but
	// malformed", so status lookups cannot be used as an email enumeration oracle.
	StatusUnknown Status = "unknown"
)

// Entry is one row per email address. An email may be waitlisted before any account
// exists for it. The row persists as an audit record even after consumption.
type Entry struct {
	Email     string // unique key, normalized
	Status    Status
	CreatedAt time.Time
}

// ApprovalToken is a single-use credential binding an approved email to a signup action.
// UsedAt is nil until first successful redemption.
type ApprovalToken struct {
	Token     string
	Email     string
	CreatedAt time.Time
	UsedAt    *time.Time
}

// NormalizeEmail lowercases and trims the address. All store lookups and comparisons
// use the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
