package auth

import "errors"

// Typed authentication failures. Adapters classify provider responses into
// these sentinels; handlers map them onto user-facing messages. They are
// surfaced to the caller, never thrown across an asynchronous boundary.
var (
	// ErrInvalidCredentials is returned for a bad email/password pair.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailNotConfirmed is returned when the account exists but the
	// address has not been confirmed yet.
	ErrEmailNotConfirmed = errors.New("email not confirmed")

	// ErrEmailTaken is returned on duplicate sign-up. Callers should
	// special-case it into a "switch to login" flow rather than a generic
	// error.
	ErrEmailTaken = errors.New("email already registered")

	// ErrBackendUnavailable is returned when the auth backend is not
	// configured or unreachable. Session restoration treats it as "no
	// session"; interactive flows surface it.
	ErrBackendUnavailable = errors.New("auth backend unavailable")
)
