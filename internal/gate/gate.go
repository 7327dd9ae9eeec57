// Package gate centralizes the admission decision for every protected request.
// Route handlers and middleware must call Resolve instead of reading profile or
// waitlist state directly, so the gating rules live in exactly one place.
package gate

import (
	"context"

	identitydomain "quillaborn/backend/internal/identity/domain"
	profiledomain "quillaborn/backend/internal/profile/domain"
	waitlistdomain "quillaborn/backend/internal/waitlist/domain"
)

// Kind is the category of a routing decision.
type Kind string

const (
	KindAllow              Kind = "allow"
	KindRedirectLogin      Kind = "redirect_login"
	KindRedirectNoAccess   Kind = "redirect_no_access"
	KindRedirectOnboarding Kind = "redirect_onboarding"
)

// StepUsername is the first onboarding stage. The gate only distinguishes done from not
// done; it always points a not-done user at the username step and lets the onboarding UI
// walk the rest.
const StepUsername = "username"

// Decision is the single routing outcome for a request. Exactly one of the Kind-specific
// fields is meaningful: Path for allow, Reason for no-access, Step for onboarding.
type Decision struct {
	Kind   Kind
	Path   string                // allow: the originally requested path
	Reason waitlistdomain.Status // no-access: waitlist status for the identity's email
	Step   string                // onboarding: first incomplete stage
}

// Location returns the redirect target for non-allow decisions, or the requested path
// for allow. The reason/step carried on the Decision lets the UI render the right
// message without a second round trip.
func (d Decision) Location() string {
	switch d.Kind {
	case KindRedirectLogin:
		return "/login"
	case KindRedirectNoAccess:
		return "/waitlist"
	case KindRedirectOnboarding:
		return "/onboarding/" + d.Step
	default:
		return d.Path
	}
}

// Provisioner is the slice of the profile service the gate needs.
type Provisioner interface {
	EnsureProfile(ctx context.Context, ident identitydomain.Identity) (*profiledomain.Profile, error)
}

// StatusReader is the slice of the admission service the gate needs.
type StatusReader interface {
	StatusFor(ctx context.Context, email string) (waitlistdomain.Status, error)
}

// Gate resolves the admission state of an identity into one routing decision.
// Stateless: every call recomputes from current store state.
type Gate struct {
	profiles Provisioner
	waitlist StatusReader
}

// New returns a Gate over the given collaborators.
func New(profiles Provisioner, waitlist StatusReader) *Gate {
	return &Gate{profiles: profiles, waitlist: waitlist}
}

// Resolve returns the single correct next action for the identity requesting path.
//
// The check order is load-bearing and must not be rearranged: early access is checked
// before onboarding completeness, because a stale onboarding_complete=true must never
// let a user past a missing or revoked access grant. Any store failure is fatal for the
// request; the gate fails closed, never open.
func (g *Gate) Resolve(ctx context.Context, ident identitydomain.Identity, requestedPath string) (Decision, error) {
	if ident.ID == "" {
		return Decision{Kind: KindRedirectLogin}, nil
	}

	profile, err := g.profiles.EnsureProfile(ctx, ident)
	if err != nil {
		return Decision{}, err
	}

	if !profile.EarlyAccess {
		status, err := g.waitlist.StatusFor(ctx, ident.Email)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Kind: KindRedirectNoAccess, Reason: status}, nil
	}

	if !profile.OnboardingComplete {
		return Decision{Kind: KindRedirectOnboarding, Step: StepUsername}, nil
	}

	return Decision{Kind: KindAllow, Path: requestedPath}, nil
}
