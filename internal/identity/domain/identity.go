package domain

// Identity is the authenticated-user reference produced by session verification.
// It is created by the auth provider at sign-in and immutable within a session;
// this service never persists it.
type Identity struct {
	ID    string
	Email string
	// DisplayName is optional provider metadata (e.g. an OAuth name field),
	// used only to seed a new profile's display name.
	DisplayName string
}
