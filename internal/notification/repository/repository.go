package repository

import (
	"context"

	"quillaborn/backend/internal/notification/domain"
)

// Repository defines persistence for notifications.
type Repository interface {
	// Create persists the notification. ID must be set by the caller.
	Create(ctx context.Context, n *domain.Notification) error
	// ListByProfile returns the profile's notifications, newest first.
	ListByProfile(ctx context.Context, profileID string, limit, offset int32) ([]*domain.Notification, error)
	// MarkRead stamps read_at on the notification if it belongs to profileID and
	// is still unread. Returns true if a row was updated.
	MarkRead(ctx context.Context, id, profileID string) (bool, error)
	// CountUnread returns the number of unread notifications for the profile.
	CountUnread(ctx context.Context, profileID string) (int64, error)
}
