package repository

import (
	"context"
	"errors"

	"quillaborn/backend/internal/waitlist/domain"
)

// ErrDuplicate is returned by InsertEntry when the email is already waitlisted.
var ErrDuplicate = errors.New("duplicate row")

// Repository defines persistence for waitlist entries and approval tokens.
type Repository interface {
	GetEntry(ctx context.Context, email string) (*domain.Entry, error)
	// InsertEntry inserts a pending entry. Returns ErrDuplicate if the email exists.
	InsertEntry(ctx context.Context, e *domain.Entry) error
	// MarkApproved transitions the entry pending → approved. Returns false when the entry
	// is absent or not pending; the transition never runs in reverse.
	MarkApproved(ctx context.Context, email string) (bool, error)
	ListEntries(ctx context.Context, status domain.Status, limit, offset int) ([]*domain.Entry, error)

	GetToken(ctx context.Context, token string) (*domain.ApprovalToken, error)
	InsertToken(ctx context.Context, t *domain.ApprovalToken) error
	// RedeemToken atomically sets used_at where it is still null for the matching token and
	// email. Returns true iff this call consumed the token: concurrent redemptions of the
	// same token yield exactly one true.
	RedeemToken(ctx context.Context, token, email string) (bool, error)
}
