package auth

// Identity represents a normalized external authentication identity
// returned by the identity provider. It contains facts only, no decisions.
type Identity struct {
	Subject       string // full provider-scoped user id, e.g. "google-oauth2|123"
	Email         string // email returned by the provider
	EmailVerified bool   // whether the provider asserts email ownership
}
