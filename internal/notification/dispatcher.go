// Package notification delivers in-app messages to profiles.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quillaborn/backend/internal/notification/domain"
	notificationrepo "quillaborn/backend/internal/notification/repository"
)

// Dispatcher writes notifications for backend-originated events. Every method is
// best-effort: failures are logged and do not affect the caller.
type Dispatcher struct {
	repo   notificationrepo.Repository
	logger *zap.SugaredLogger
}

// NewDispatcher returns a Dispatcher persisting to repo. logger must be non-nil.
func NewDispatcher(repo notificationrepo.Repository, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{repo: repo, logger: logger}
}

// NotifyEarlyAccessGranted records the "you're in" message for a freshly admitted profile.
func (d *Dispatcher) NotifyEarlyAccessGranted(ctx context.Context, profileID string) {
	d.create(ctx, profileID, domain.KindEarlyAccessGranted,
		"Your early access is active. Welcome to Quillaborn!")
}

// NotifyWelcome records the post-onboarding welcome message.
func (d *Dispatcher) NotifyWelcome(ctx context.Context, profileID string) {
	d.create(ctx, profileID, domain.KindWelcome,
		"Your profile is set up. Time to find your first collaboration.")
}

func (d *Dispatcher) create(ctx context.Context, profileID, kind, body string) {
	if d.repo == nil {
		return
	}
	n := &domain.Notification{
		ID:        uuid.New().String(),
		ProfileID: profileID,
		Kind:      kind,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.repo.Create(ctx, n); err != nil {
		d.logger.Warnw("notification write failed", "kind", kind, "profile_id", profileID, "err", err)
	}
}
