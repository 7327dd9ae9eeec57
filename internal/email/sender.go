// Package email sends transactional mail through a JSON-over-HTTP provider API.
package email

import "context"

// Template ids understood by the senders in this package.
const (
	TemplateInvite = "waitlist-invite"
)

// Sender dispatches one templated message. Callers treat it as fire-and-forget:
// failures are logged, never retried, and never fail the triggering operation.
type Sender interface {
	Send(ctx context.Context, toEmail, templateID string, vars map[string]string) error
}

// Noop is a Sender that discards every message. Used when no provider API key is configured.
type Noop struct{}

func (Noop) Send(ctx context.Context, toEmail, templateID string, vars map[string]string) error {
	return nil
}
