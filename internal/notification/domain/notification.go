package domain

import "time"

// Notification kinds. Kind is free-form TEXT in storage; these are the ones the
// backend itself produces.
const (
	KindEarlyAccessGranted = "early_access_granted"
	KindWelcome            = "welcome"
)

// Notification is one in-app message for a profile. ReadAt is nil until the
// owner marks it read.
type Notification struct {
	ID        string
	ProfileID string
	Kind      string
	Body      string
	ReadAt    *time.Time
	CreatedAt time.Time
}

// Read reports whether the notification has been marked read.
func (n *Notification) Read() bool {
	return n.ReadAt != nil
}
