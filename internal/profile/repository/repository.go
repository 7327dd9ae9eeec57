package repository

import (
	"context"
	"errors"

	"quillaborn/backend/internal/profile/domain"
)

// ErrDuplicate is returned by Create and SetUsername when a uniqueness constraint
// (profile id or username) is violated.
var ErrDuplicate = errors.New("duplicate row")

// Repository defines persistence for profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	// Create inserts the profile. Returns ErrDuplicate if a profile with the same id already exists.
	Create(ctx context.Context, p *domain.Profile) error
	// SetUsername sets the username once. Returns ErrDuplicate if the username is taken.
	SetUsername(ctx context.Context, id, username string) error
	UpdateBio(ctx context.Context, id, bio string) error
	SetInterests(ctx context.Context, id string, interests []string) error
	// SetOnboardingComplete flips onboarding_complete to true. Monotonic: there is no way back.
	SetOnboardingComplete(ctx context.Context, id string) error
	SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error
	// List returns profiles ordered by creation time descending, newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Profile, error)
}
