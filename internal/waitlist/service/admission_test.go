package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/waitlist/domain"
	waitlistrepo "quillaborn/backend/internal/waitlist/repository"
)

type memWaitlistRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.Entry
	tokens  map[string]*domain.ApprovalToken
}

func newMemWaitlistRepo() *memWaitlistRepo {
	return &memWaitlistRepo{
		entries: map[string]*domain.Entry{},
		tokens:  map[string]*domain.ApprovalToken{},
	}
}

func (r *memWaitlistRepo) GetEntry(ctx context.Context, email string) (*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[email]; ok {
		e2 := *e
		return &e2, nil
	}
	return nil, nil
}

func (r *memWaitlistRepo) InsertEntry(ctx context.Context, e *domain.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[e.Email]; ok {
		return waitlistrepo.ErrDuplicate
	}
	e2 := *e
	r.entries[e.Email] = &e2
	return nil
}

func (r *memWaitlistRepo) MarkApproved(ctx context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[email]
	if !ok || e.Status != domain.StatusPending {
		return false, nil
	}
	e.Status = domain.StatusApproved
	return true, nil
}

func (r *memWaitlistRepo) ListEntries(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Entry
	for _, e := range r.entries {
		if status == "" || e.Status == status {
			e2 := *e
			out = append(out, &e2)
		}
	}
	return out, nil
}

func (r *memWaitlistRepo) GetToken(ctx context.Context, token string) (*domain.ApprovalToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tokens[token]; ok {
		t2 := *t
		return &t2, nil
	}
	return nil, nil
}

func (r *memWaitlistRepo) InsertToken(ctx context.Context, t *domain.ApprovalToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t2 := *t
	r.tokens[t.Token] = &t2
	return nil
}

func (r *memWaitlistRepo) RedeemToken(ctx context.Context, token, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Email != email || t.UsedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	t.UsedAt = &now
	return true, nil
}

type memEarlyAccess struct {
	mu      sync.Mutex
	granted map[string]bool
}

func (m *memEarlyAccess) SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.granted == nil {
		m.granted = map[string]bool{}
	}
	m.granted[id] = earlyAccess
	return nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string // recipient emails
	err  error
}

func (s *recordingSender) Send(ctx context.Context, toEmail, templateID string, vars map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, toEmail)
	return nil
}

func newAdmission(repo *memWaitlistRepo, profiles *memEarlyAccess, sender *recordingSender) *Admission {
	return NewAdmission(repo, profiles, sender, nil, zap.NewNop().Sugar())
}

func TestSubmit_IdempotentAndNormalized(t *testing.T) {
	repo := newMemWaitlistRepo()
	s := newAdmission(repo, &memEarlyAccess{}, &recordingSender{})
	ctx := context.Background()

	res, err := s.Submit(ctx, "foo@example.com")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res != SubmitCreated {
		t.Errorf("first Submit = %q, want created", res)
	}

	// Re-submission with different casing and whitespace hits the same row.
	res, err = s.Submit(ctx, "  Foo@EXAMPLE.com ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res != SubmitAlreadyPending {
		t.Errorf("second Submit = %q, want already_pending", res)
	}
	if len(repo.entries) != 1 {
		t.Errorf("entries = %d, want 1", len(repo.entries))
	}

	if _, err := s.Approve(ctx, "foo@example.com"); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	res, err = s.Submit(ctx, "foo@example.com")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res != SubmitAlreadyApproved {
		t.Errorf("Submit after approval = %q, want already_approved", res)
	}
	if repo.entries["foo@example.com"].Status != domain.StatusApproved {
		t.Error("re-submission must never move an approved entry back to pending")
	}
}

func TestSubmit_InvalidEmail(t *testing.T) {
	s := newAdmission(newMemWaitlistRepo(), &memEarlyAccess{}, &recordingSender{})
	for _, bad := range []string{"", "   ", "not-an-email", "a@b", "@example.com"} {
		if _, err := s.Submit(context.Background(), bad); !errors.Is(err, ErrInvalidEmail) {
			t.Errorf("Submit(%q) err = %v, want ErrInvalidEmail", bad, err)
		}
	}
}

func TestApprove_MintsTokenAndSendsInvite(t *testing.T) {
	repo := newMemWaitlistRepo()
	sender := &recordingSender{}
	s := newAdmission(repo, &memEarlyAccess{}, sender)
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if token.Token == "" || token.Email != "a@x.com" || token.UsedAt != nil {
		t.Errorf("unexpected token: %+v", token)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "a@x.com" {
		t.Errorf("invite recipients = %v, want [a@x.com]", sender.sent)
	}

	// Approving again is NotPending; so is approving an address that never submitted.
	if _, err := s.Approve(ctx, "a@x.com"); !errors.Is(err, ErrNotPending) {
		t.Errorf("second Approve err = %v, want ErrNotPending", err)
	}
	if _, err := s.Approve(ctx, "nobody@x.com"); !errors.Is(err, ErrNotPending) {
		t.Errorf("Approve of absent entry err = %v, want ErrNotPending", err)
	}
}

func TestApprove_EmailFailureDoesNotFailApproval(t *testing.T) {
	repo := newMemWaitlistRepo()
	sender := &recordingSender{err: errors.New("provider down")}
	s := newAdmission(repo, &memEarlyAccess{}, sender)
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve must succeed when only the email fails: %v", err)
	}
	if token == nil {
		t.Fatal("token should still be minted")
	}
}

func TestReissue(t *testing.T) {
	repo := newMemWaitlistRepo()
	sender := &recordingSender{}
	s := newAdmission(repo, &memEarlyAccess{}, sender)
	ctx := context.Background()

	if _, err := s.Reissue(ctx, "a@x.com"); !errors.Is(err, ErrNotApproved) {
		t.Errorf("Reissue of absent entry err = %v, want ErrNotApproved", err)
	}

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := s.Reissue(ctx, "a@x.com"); !errors.Is(err, ErrNotApproved) {
		t.Errorf("Reissue of pending entry err = %v, want ErrNotApproved", err)
	}

	first, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	second, err := s.Reissue(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Reissue: %v", err)
	}
	if first.Token == second.Token {
		t.Error("reissue must mint a new token")
	}

	// The earlier token stays valid until used: reissue does not revoke.
	res, err := s.Redeem(ctx, "a@x.com", first.Token)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if res != RedeemOK {
		t.Errorf("redeem of pre-reissue token = %q, want ok", res)
	}
}

func TestRedeem_Outcomes(t *testing.T) {
	repo := newMemWaitlistRepo()
	s := newAdmission(repo, &memEarlyAccess{}, &recordingSender{})
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	res, err := s.Redeem(ctx, "a@x.com", "no-such-token")
	if err != nil || res != RedeemInvalidToken {
		t.Errorf("unknown token = (%q, %v), want invalid_token", res, err)
	}

	// Email mismatch wins over consumption: the token stays unused.
	res, err = s.Redeem(ctx, "b@x.com", token.Token)
	if err != nil || res != RedeemEmailMismatch {
		t.Errorf("mismatched email = (%q, %v), want email_mismatch", res, err)
	}

	res, err = s.Redeem(ctx, " A@X.com ", token.Token)
	if err != nil || res != RedeemOK {
		t.Errorf("first redemption = (%q, %v), want ok", res, err)
	}

	res, err = s.Redeem(ctx, "a@x.com", token.Token)
	if err != nil || res != RedeemAlreadyUsed {
		t.Errorf("second redemption = (%q, %v), want already_used", res, err)
	}
}

func TestRedeem_ConcurrentSingleWinner(t *testing.T) {
	repo := newMemWaitlistRepo()
	s := newAdmission(repo, &memEarlyAccess{}, &recordingSender{})
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]RedeemResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Redeem(ctx, "a@x.com", token.Token)
		}(i)
	}
	wg.Wait()

	var oks, used int
	for _, r := range results {
		switch r {
		case RedeemOK:
			oks++
		case RedeemAlreadyUsed:
			used++
		default:
			t.Errorf("unexpected result %q", r)
		}
	}
	if oks != 1 {
		t.Errorf("ok count = %d, want exactly 1", oks)
	}
	if used != callers-1 {
		t.Errorf("already_used count = %d, want %d", used, callers-1)
	}
}

func TestLink_GrantsEarlyAccess(t *testing.T) {
	repo := newMemWaitlistRepo()
	profiles := &memEarlyAccess{}
	s := newAdmission(repo, profiles, &recordingSender{})
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	me := identitydomain.Identity{ID: "u1", Email: "a@x.com"}
	res, err := s.Link(ctx, me, token.Token)
	if err != nil || res != RedeemOK {
		t.Fatalf("Link = (%q, %v), want ok", res, err)
	}
	if !profiles.granted["u1"] {
		t.Error("early access should be granted to the redeeming identity")
	}

	// A verified session email that differs from the token's binding must not link.
	other := identitydomain.Identity{ID: "u2", Email: "b@x.com"}
	res, err = s.Link(ctx, other, token.Token)
	if err != nil || res != RedeemEmailMismatch {
		t.Errorf("Link with other identity = (%q, %v), want email_mismatch", res, err)
	}
	if profiles.granted["u2"] {
		t.Error("mismatched link must not grant early access")
	}
}

type memNotifier struct {
	notified []string
}

func (m *memNotifier) NotifyEarlyAccessGranted(ctx context.Context, profileID string) {
	m.notified = append(m.notified, profileID)
}

func TestLink_NotifiesOnGrantOnly(t *testing.T) {
	repo := newMemWaitlistRepo()
	notifier := &memNotifier{}
	s := NewAdmission(repo, &memEarlyAccess{}, &recordingSender{}, notifier, zap.NewNop().Sugar())
	ctx := context.Background()

	if _, err := s.Submit(ctx, "a@x.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	token, err := s.Approve(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	other := identitydomain.Identity{ID: "u2", Email: "b@x.com"}
	if res, err := s.Link(ctx, other, token.Token); err != nil || res != RedeemEmailMismatch {
		t.Fatalf("Link mismatch = (%q, %v)", res, err)
	}
	if len(notifier.notified) != 0 {
		t.Error("mismatch must not notify")
	}

	me := identitydomain.Identity{ID: "u1", Email: "a@x.com"}
	if res, err := s.Link(ctx, me, token.Token); err != nil || res != RedeemOK {
		t.Fatalf("Link = (%q, %v), want ok", res, err)
	}
	if len(notifier.notified) != 1 || notifier.notified[0] != "u1" {
		t.Errorf("notified = %v, want exactly [u1]", notifier.notified)
	}
}

func TestStatusFor(t *testing.T) {
	repo := newMemWaitlistRepo()
	s := newAdmission(repo, &memEarlyAccess{}, &recordingSender{})
	ctx := context.Background()

	status, err := s.StatusFor(ctx, "nobody@example.com")
	if err != nil || status != domain.StatusUnknown {
		t.Errorf("absent = (%q, %v), want unknown", status, err)
	}

	if _, err := s.Submit(ctx, "foo@example.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	status, err = s.StatusFor(ctx, " Foo@EXAMPLE.com ")
	if err != nil || status != domain.StatusPending {
		t.Errorf("normalization round-trip = (%q, %v), want pending", status, err)
	}

	// A malformed stored status is indistinguishable from no entry at all.
	repo.entries["foo@example.com"].Status = "corrupted"
	status, err = s.StatusFor(ctx, "foo@example.com")
	if err != nil || status != domain.StatusUnknown {
		t.Errorf("malformed entry = (%q, %v), want unknown", status, err)
	}
}
