package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Profile is one row per authenticated identity. A profile, once created, is never
// deleted by this service. OnboardingComplete transitions exactly once, false to true.
// EarlyAccess is set only by the admission link flow.
type Profile struct {
	ID                 string
	Username           string // empty until chosen during onboarding; globally unique when set
	DisplayName        string // optional; seeded from provider metadata at creation
	Bio                string
	Interests          []string
	OnboardingComplete bool
	EarlyAccess        bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,30}$`)

// ErrInvalidUsername is returned for usernames outside [a-z0-9_]{3,30} after normalization.
var ErrInvalidUsername = errors.New("username must be 3-30 characters: lowercase letters, digits, underscore")

// NormalizeUsername lowercases and trims the candidate username and validates it.
func NormalizeUsername(username string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernamePattern.MatchString(username) {
		return "", ErrInvalidUsername
	}
	return username, nil
}
