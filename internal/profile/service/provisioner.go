package service

import (
	"context"
	"errors"
	"time"

	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/profile/domain"
	profilerepo "quillaborn/backend/internal/profile/repository"
)

// Sentinel errors for the profile service; handlers map them to HTTP statuses.
var (
	ErrIdentityRequired       = errors.New("identity id is required")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrUsernameTaken          = errors.New("username already taken")
	ErrUsernameRequired       = errors.New("username must be chosen before completing onboarding")
	ErrConflictRetryExhausted = errors.New("profile provisioning retries exhausted")
)

// createRetries bounds the insert/re-read loop in EnsureProfile. Losing the first-access
// race resolves on the next read; needing more than a couple of attempts means the store
// itself is misbehaving, which is surfaced as fatal rather than retried forever.
const createRetries = 3

// ProfileRepo is the minimal profile repository needed by the provisioner.
type ProfileRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	GetByUsername(ctx context.Context, username string) (*domain.Profile, error)
	Create(ctx context.Context, p *domain.Profile) error
	SetUsername(ctx context.Context, id, username string) error
	UpdateBio(ctx context.Context, id, bio string) error
	SetInterests(ctx context.Context, id string, interests []string) error
	SetOnboardingComplete(ctx context.Context, id string) error
	SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error
}

// Provisioner guarantees exactly one profile row per authenticated identity and owns
// the onboarding mutations on that row.
type Provisioner struct {
	profiles ProfileRepo
}

// NewProvisioner returns a Provisioner backed by the given repository.
func NewProvisioner(profiles ProfileRepo) *Provisioner {
	return &Provisioner{profiles: profiles}
}

// EnsureProfile returns the profile for the identity, creating it on first access.
// An existing profile is returned as-is; a provisioning check never mutates it.
// Concurrent first access is resolved by the store's primary-key constraint: the losing
// insert re-reads and returns the row the winner created. Store errors propagate; the
// caller must treat them as fatal for the request.
func (s *Provisioner) EnsureProfile(ctx context.Context, ident identitydomain.Identity) (*domain.Profile, error) {
	if ident.ID == "" {
		return nil, ErrIdentityRequired
	}
	for i := 0; i < createRetries; i++ {
		p, err := s.profiles.GetByID(ctx, ident.ID)
		if err != nil {
			return nil, err
		}
		if p != nil {
			return p, nil
		}
		now := time.Now().UTC()
		created := &domain.Profile{
			ID:          ident.ID,
			DisplayName: ident.DisplayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err = s.profiles.Create(ctx, created)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, profilerepo.ErrDuplicate) {
			return nil, err
		}
		// Lost the first-access race; re-read the winner's row.
	}
	return nil, ErrConflictRetryExhausted
}

// SetUsername sets the profile's username, the first onboarding step.
// The username is normalized and validated; uniqueness conflicts surface as ErrUsernameTaken.
func (s *Provisioner) SetUsername(ctx context.Context, id, username string) error {
	if id == "" {
		return ErrIdentityRequired
	}
	normalized, err := domain.NormalizeUsername(username)
	if err != nil {
		return err
	}
	if err := s.profiles.SetUsername(ctx, id, normalized); err != nil {
		if errors.Is(err, profilerepo.ErrDuplicate) {
			return ErrUsernameTaken
		}
		return err
	}
	return nil
}

// UsernameAvailable reports whether the normalized username can still be claimed.
// A malformed candidate surfaces as domain.ErrInvalidUsername, same as SetUsername.
func (s *Provisioner) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	normalized, err := domain.NormalizeUsername(username)
	if err != nil {
		return false, err
	}
	p, err := s.profiles.GetByUsername(ctx, normalized)
	if err != nil {
		return false, err
	}
	return p == nil, nil
}

// UpdateBio replaces the profile's bio.
func (s *Provisioner) UpdateBio(ctx context.Context, id, bio string) error {
	if id == "" {
		return ErrIdentityRequired
	}
	return s.profiles.UpdateBio(ctx, id, bio)
}

// SetInterests replaces the profile's interest tags.
func (s *Provisioner) SetInterests(ctx context.Context, id string, interests []string) error {
	if id == "" {
		return ErrIdentityRequired
	}
	return s.profiles.SetInterests(ctx, id, interests)
}

// CompleteOnboarding marks onboarding done. Requires a username to have been chosen;
// the transition is monotonic and idempotent (completing twice is a no-op).
func (s *Provisioner) CompleteOnboarding(ctx context.Context, id string) error {
	if id == "" {
		return ErrIdentityRequired
	}
	p, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrProfileNotFound
	}
	if p.Username == "" {
		return ErrUsernameRequired
	}
	if p.OnboardingComplete {
		return nil
	}
	return s.profiles.SetOnboardingComplete(ctx, id)
}

// SetEarlyAccess sets the early_access flag. Only the admission link flow calls this
// with true; nothing in normal operation calls it with false.
func (s *Provisioner) SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error {
	if id == "" {
		return ErrIdentityRequired
	}
	return s.profiles.SetEarlyAccess(ctx, id, earlyAccess)
}
