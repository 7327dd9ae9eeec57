package service

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.uber.org/zap"

	"quillaborn/backend/internal/email"
	identitydomain "quillaborn/backend/internal/identity/domain"
	"quillaborn/backend/internal/security"
	"quillaborn/backend/internal/waitlist/domain"
	waitlistrepo "quillaborn/backend/internal/waitlist/repository"
)

// Sentinel errors for the admission service; handlers map them to HTTP statuses.
var (
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrNotPending is returned by Approve when the entry is absent or already approved.
	// Approval is not retriable; re-issuing a token for an approved entry is Reissue.
	ErrNotPending = errors.New("waitlist entry is not pending")
	// ErrNotApproved is returned by Reissue when the entry is absent or still pending.
	ErrNotApproved = errors.New("waitlist entry is not approved")
)

// SubmitResult reports what Submit found or did.
type SubmitResult string

const (
	SubmitCreated         SubmitResult = "created"
	SubmitAlreadyPending  SubmitResult = "already_pending"
	SubmitAlreadyApproved SubmitResult = "already_approved"
)

// RedeemResult is the typed outcome of a redemption attempt. Callers branch on it to
// show distinct user-facing messages; none of these is an error.
type RedeemResult string

const (
	RedeemOK            RedeemResult = "ok"
	RedeemInvalidToken  RedeemResult = "invalid_token"
	RedeemEmailMismatch RedeemResult = "email_mismatch"
	RedeemAlreadyUsed   RedeemResult = "already_used"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// EarlyAccessSetter is the slice of the profile service needed to link a redemption
// to the redeeming identity's profile.
type EarlyAccessSetter interface {
	SetEarlyAccess(ctx context.Context, id string, earlyAccess bool) error
}

// Notifier delivers the in-app "you're in" message after a successful link.
// Best-effort: a delivery failure never rolls back the grant.
type Notifier interface {
	NotifyEarlyAccessGranted(ctx context.Context, profileID string)
}

// Admission owns the waitlist state machine: per email, NoEntry → Pending → Approved,
// with consumption inferred from the linked profile's early_access flag.
type Admission struct {
	entries   waitlistrepo.Repository
	profiles  EarlyAccessSetter
	emails    email.Sender
	notifier  Notifier
	logger    *zap.SugaredLogger
	mintToken func() (string, error)
}

// NewAdmission returns an Admission service. emails may be a Noop sender, notifier may
// be nil; logger must be non-nil.
func NewAdmission(entries waitlistrepo.Repository, profiles EarlyAccessSetter, emails email.Sender, notifier Notifier, logger *zap.SugaredLogger) *Admission {
	return &Admission{
		entries:   entries,
		profiles:  profiles,
		emails:    emails,
		notifier:  notifier,
		logger:    logger,
		mintToken: security.NewOpaqueToken,
	}
}

// Submit records interest for the email. Idempotent: resubmission reports the current
// state without mutation and never moves an entry backwards.
func (s *Admission) Submit(ctx context.Context, rawEmail string) (SubmitResult, error) {
	addr := domain.NormalizeEmail(rawEmail)
	if !emailPattern.MatchString(addr) {
		return "", ErrInvalidEmail
	}
	entry, err := s.entries.GetEntry(ctx, addr)
	if err != nil {
		return "", err
	}
	if entry == nil {
		err = s.entries.InsertEntry(ctx, &domain.Entry{
			Email:     addr,
			Status:    domain.StatusPending,
			CreatedAt: time.Now().UTC(),
		})
		if err == nil {
			return SubmitCreated, nil
		}
		if !errors.Is(err, waitlistrepo.ErrDuplicate) {
			return "", err
		}
		// Raced with another submit for the same address; report its state.
		entry, err = s.entries.GetEntry(ctx, addr)
		if err != nil {
			return "", err
		}
		if entry == nil {
			return "", errors.New("waitlist entry vanished after duplicate insert")
		}
	}
	if entry.Status == domain.StatusApproved {
		return SubmitAlreadyApproved, nil
	}
	return SubmitAlreadyPending, nil
}

// Approve transitions the entry pending → approved, mints a single-use token bound to the
// email, and dispatches the invite mail best-effort. Fails with ErrNotPending when the
// entry is absent or already approved.
func (s *Admission) Approve(ctx context.Context, rawEmail string) (*domain.ApprovalToken, error) {
	addr := domain.NormalizeEmail(rawEmail)
	ok, err := s.entries.MarkApproved(ctx, addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotPending
	}
	return s.issueToken(ctx, addr)
}

// Reissue mints a fresh token for an already-approved entry. Earlier unused tokens stay
// independently valid: invalidation is a separate, explicit admin operation, not a side
// effect of re-issuing.
func (s *Admission) Reissue(ctx context.Context, rawEmail string) (*domain.ApprovalToken, error) {
	addr := domain.NormalizeEmail(rawEmail)
	entry, err := s.entries.GetEntry(ctx, addr)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != domain.StatusApproved {
		return nil, ErrNotApproved
	}
	return s.issueToken(ctx, addr)
}

func (s *Admission) issueToken(ctx context.Context, addr string) (*domain.ApprovalToken, error) {
	value, err := s.mintToken()
	if err != nil {
		return nil, err
	}
	token := &domain.ApprovalToken{
		Token:     value,
		Email:     addr,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.entries.InsertToken(ctx, token); err != nil {
		return nil, err
	}
	if err := s.emails.Send(ctx, addr, email.TemplateInvite, map[string]string{
		"email": addr,
		"token": token.Token,
	}); err != nil {
		// Fire-and-forget: the approval stands, the admin can reissue if the mail is lost.
		s.logger.Warnw("invite email failed", "email", addr, "err", err)
	}
	return token, nil
}

// Redeem consumes the token for the given email. The conditional update in the store,
// not a read-then-write, decides between ok and already_used under concurrency.
func (s *Admission) Redeem(ctx context.Context, rawEmail, token string) (RedeemResult, error) {
	addr := domain.NormalizeEmail(rawEmail)
	stored, err := s.entries.GetToken(ctx, token)
	if err != nil {
		return "", err
	}
	if stored == nil {
		return RedeemInvalidToken, nil
	}
	if domain.NormalizeEmail(stored.Email) != addr {
		return RedeemEmailMismatch, nil
	}
	consumed, err := s.entries.RedeemToken(ctx, token, stored.Email)
	if err != nil {
		return "", err
	}
	if !consumed {
		return RedeemAlreadyUsed, nil
	}
	return RedeemOK, nil
}

// Link redeems the token on behalf of an authenticated identity and, on success, grants
// the identity's profile early access. This is the only path that sets the flag.
func (s *Admission) Link(ctx context.Context, ident identitydomain.Identity, token string) (RedeemResult, error) {
	result, err := s.Redeem(ctx, ident.Email, token)
	if err != nil || result != RedeemOK {
		return result, err
	}
	if err := s.profiles.SetEarlyAccess(ctx, ident.ID, true); err != nil {
		return "", err
	}
	if s.notifier != nil {
		s.notifier.NotifyEarlyAccessGranted(ctx, ident.ID)
	}
	return RedeemOK, nil
}

// StatusFor is the only query exposed to lightly-authenticated callers. It answers with
// exactly three states; absent and malformed entries are both "unknown".
func (s *Admission) StatusFor(ctx context.Context, rawEmail string) (domain.Status, error) {
	addr := domain.NormalizeEmail(rawEmail)
	entry, err := s.entries.GetEntry(ctx, addr)
	if err != nil {
		return "", err
	}
	if entry == nil {
		return domain.StatusUnknown, nil
	}
	switch entry.Status {
	case domain.StatusPending, domain.StatusApproved:
		return entry.Status, nil
	default:
		return domain.StatusUnknown, nil
	}
}
