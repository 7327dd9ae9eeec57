package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/profile/domain"
	profilerepo "quillaborn/backend/internal/profile/repository"
)

type memProfileRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.Profile
	byUsername map[string]string // username -> profile id

	getErr    error
	createErr error
	creates   int
}

func newMemProfileRepo() *memProfileRepo {
	return &memProfileRepo{
		byID:       map[string]*domain.Profile{},
		byUsername: map[string]string{},
	}
}

func (r *memProfileRepo) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	if p, ok := r.byID[id]; ok {
		p2 := *p
		return &p2, nil
	}
	return nil, nil
}

func (r *memProfileRepo) GetByUsername(ctx context.Context, username string) (*domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byUsername[username]; ok {
		p2 := *r.byID[id]
		return &p2, nil
	}
	return nil, nil
}

func (r *memProfileRepo) Create(ctx context.Context, p *domain.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.creates++
	if _, ok := r.byID[p.ID]; ok {
		return profilerepo.ErrDuplicate
	}
	p2 := *p
	r.byID[p.ID] = &p2
	return nil
}

func (r *memProfileRepo) SetUsername(ctx context.Context, id, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if owner, ok := r.byUsername[username]; ok && owner != id {
		return profilerepo.ErrDuplicate
	}
	if p, ok := r.byID[id]; ok {
		delete(r.byUsername, p.Username)
		p.Username = username
		r.byUsername[username] = id
	}
	return nil
}

func (r *memProfileRepo) UpdateBio(ctx context.Context, id, bio string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Bio = bio
	}
	return nil
}

func (r *memProfileRepo) SetInterests(ctx context.Context, id string, interests []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.Interests = interests
	}
	return nil
}

func (r *memProfileRepo) SetOnboardingComplete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.OnboardingComplete = true
	}
	return nil
}

func (r *memProfileRepo) SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.EarlyAccess = earlyAccess
	}
	return nil
}

func ident(id string) identitydomain.Identity {
	return identitydomain.Identity{ID: id, Email: id + "@example.com", DisplayName: "Test User"}
}

func TestEnsureProfile_CreatesOnFirstAccess(t *testing.T) {
	repo := newMemProfileRepo()
	s := NewProvisioner(repo)

	p, err := s.EnsureProfile(context.Background(), ident("u1"))
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if p.ID != "u1" {
		t.Errorf("ID = %q, want u1", p.ID)
	}
	if p.DisplayName != "Test User" {
		t.Errorf("DisplayName = %q, want seeded from identity", p.DisplayName)
	}
	if p.OnboardingComplete || p.EarlyAccess {
		t.Error("new profile must start with onboarding_complete=false and early_access=false")
	}
}

func TestEnsureProfile_NoMutationOnRead(t *testing.T) {
	repo := newMemProfileRepo()
	existing := &domain.Profile{
		ID:                 "u1",
		Username:           "writer",
		OnboardingComplete: true,
		EarlyAccess:        true,
		CreatedAt:          time.Now().Add(-time.Hour),
	}
	repo.byID["u1"] = existing
	s := NewProvisioner(repo)

	p, err := s.EnsureProfile(context.Background(), ident("u1"))
	if err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if p.Username != "writer" || !p.OnboardingComplete || !p.EarlyAccess {
		t.Errorf("existing profile was altered by a provisioning check: %+v", p)
	}
	if repo.creates != 0 {
		t.Errorf("creates = %d, want 0 for an existing profile", repo.creates)
	}
}

func TestEnsureProfile_ConcurrentFirstAccess(t *testing.T) {
	repo := newMemProfileRepo()
	s := NewProvisioner(repo)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*domain.Profile, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.EnsureProfile(context.Background(), ident("racer"))
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].ID != "racer" {
			t.Errorf("caller %d: ID = %q, want racer", i, results[i].ID)
		}
	}
	repo.mu.Lock()
	rows := len(repo.byID)
	repo.mu.Unlock()
	if rows != 1 {
		t.Errorf("profile rows = %d, want exactly 1", rows)
	}
}

func TestEnsureProfile_StoreErrorPropagates(t *testing.T) {
	repo := newMemProfileRepo()
	repo.getErr = errors.New("store unavailable")
	s := NewProvisioner(repo)

	if _, err := s.EnsureProfile(context.Background(), ident("u1")); err == nil {
		t.Fatal("EnsureProfile must fail when the store read fails, never continue silently")
	}
}

func TestEnsureProfile_ConflictRetryExhausted(t *testing.T) {
	// A repo that always reports the row missing but rejects every insert as a duplicate
	// simulates a store-level problem, not a normal race.
	repo := newMemProfileRepo()
	repo.createErr = profilerepo.ErrDuplicate
	s := NewProvisioner(repo)

	_, err := s.EnsureProfile(context.Background(), ident("u1"))
	if !errors.Is(err, ErrConflictRetryExhausted) {
		t.Fatalf("err = %v, want ErrConflictRetryExhausted", err)
	}
}

func TestEnsureProfile_EmptyIdentity(t *testing.T) {
	s := NewProvisioner(newMemProfileRepo())
	if _, err := s.EnsureProfile(context.Background(), identitydomain.Identity{}); !errors.Is(err, ErrIdentityRequired) {
		t.Fatalf("err = %v, want ErrIdentityRequired", err)
	}
}

func TestSetUsername(t *testing.T) {
	repo := newMemProfileRepo()
	s := NewProvisioner(repo)
	if _, err := s.EnsureProfile(context.Background(), ident("u1")); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if _, err := s.EnsureProfile(context.Background(), ident("u2")); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	if err := s.SetUsername(context.Background(), "u1", "  Inkwell "); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}
	if repo.byID["u1"].Username != "inkwell" {
		t.Errorf("username = %q, want normalized inkwell", repo.byID["u1"].Username)
	}

	if err := s.SetUsername(context.Background(), "u2", "inkwell"); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("err = %v, want ErrUsernameTaken", err)
	}
	if err := s.SetUsername(context.Background(), "u2", "x"); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Errorf("err = %v, want ErrInvalidUsername", err)
	}
}

func TestUsernameAvailable(t *testing.T) {
	repo := newMemProfileRepo()
	s := NewProvisioner(repo)
	if _, err := s.EnsureProfile(context.Background(), ident("u1")); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}
	if err := s.SetUsername(context.Background(), "u1", "inkwell"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}

	available, err := s.UsernameAvailable(context.Background(), "quillpen")
	if err != nil || !available {
		t.Errorf("available = %v, %v; want true for an unclaimed name", available, err)
	}
	// Normalization applies before the lookup, so casing does not hide a claim.
	available, err = s.UsernameAvailable(context.Background(), "  Inkwell ")
	if err != nil || available {
		t.Errorf("available = %v, %v; want false for a taken name", available, err)
	}
	if _, err := s.UsernameAvailable(context.Background(), "x"); !errors.Is(err, domain.ErrInvalidUsername) {
		t.Errorf("err = %v, want ErrInvalidUsername", err)
	}
}

func TestCompleteOnboarding(t *testing.T) {
	repo := newMemProfileRepo()
	s := NewProvisioner(repo)
	if _, err := s.EnsureProfile(context.Background(), ident("u1")); err != nil {
		t.Fatalf("EnsureProfile: %v", err)
	}

	if err := s.CompleteOnboarding(context.Background(), "u1"); !errors.Is(err, ErrUsernameRequired) {
		t.Fatalf("err = %v, want ErrUsernameRequired before a username is chosen", err)
	}

	if err := s.SetUsername(context.Background(), "u1", "inkwell"); err != nil {
		t.Fatalf("SetUsername: %v", err)
	}
	if err := s.CompleteOnboarding(context.Background(), "u1"); err != nil {
		t.Fatalf("CompleteOnboarding: %v", err)
	}
	if !repo.byID["u1"].OnboardingComplete {
		t.Error("onboarding_complete should be true")
	}

	// Idempotent: completing again is a no-op, never an error.
	if err := s.CompleteOnboarding(context.Background(), "u1"); err != nil {
		t.Fatalf("CompleteOnboarding twice: %v", err)
	}

	if err := s.CompleteOnboarding(context.Background(), "ghost"); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("err = %v, want ErrProfileNotFound", err)
	}
}
