package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
)

// Credentials carries an email/password pair for password-based flows.
type Credentials struct {
	Email    string
	Password string
}

// AuthBackend is the contract the portal requires from the hosted
// authentication service. All calls are non-blocking with respect to the
// session manager's event loop; results of sign-in/sign-out arrive through
// the change feed, keeping a single code path for state mutation.
type AuthBackend interface {
	// CurrentIdentity restores any persisted session. A nil identity with a
	// nil error means "no session" and is not an error condition.
	CurrentIdentity(ctx context.Context) (*domainauth.Identity, error)

	// SignIn authenticates with a password. Failures are typed
	// (domainauth.ErrInvalidCredentials, ErrEmailNotConfirmed).
	SignIn(ctx context.Context, creds Credentials) (domainauth.Identity, error)

	// SignUp registers a new identity with attached metadata. The profile
	// row is created separately; callers must not assume it exists
	// immediately after this returns. Duplicate registration returns
	// domainauth.ErrEmailTaken.
	SignUp(ctx context.Context, creds Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error)

	// SignOut destroys the backend session.
	SignOut(ctx context.Context) error

	// Subscribe registers a callback invoked on every identity transition,
	// in order, with no coalescing. The returned function unregisters it.
	Subscribe(fn func(domainauth.Event)) (unsubscribe func())
}

// SSOBeginInput carries inputs for initiating a campus SSO flow.
type SSOBeginInput struct {
	RedirectURL string
}

// SSOExchangeInput groups parameters for the code/token exchange.
type SSOExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SSOFlow initiates and completes a campus single-sign-on flow against the
// college identity provider.
type SSOFlow interface {
	// Begin starts the login flow and returns the provider auth URL, an
	// opaque state, and a nonce.
	Begin(ctx context.Context, in SSOBeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and
	// returns the authenticated identity.
	Exchange(ctx context.Context, in SSOExchangeInput) (domainauth.Identity, error)
}

// ErrProfileNotFound is returned by ProfileStore.Get when no row exists for
// the identity id. The resolver treats it as non-fatal absence.
var ErrProfileNotFound = errors.New("profile not found")

// ErrRollNumberTaken is returned by ProfileStore.Upsert when the roll
// number is already registered to a different identity.
var ErrRollNumberTaken = errors.New("roll number already registered")

// ProfileStore persists application profiles keyed by identity id.
type ProfileStore interface {
	// Get returns the profile for an identity id, or ErrProfileNotFound.
	Get(ctx context.Context, identityID string) (domainauth.Profile, error)

	// Upsert inserts or updates the profile row for its identity id.
	// A roll number collision with another identity returns
	// ErrRollNumberTaken.
	Upsert(ctx context.Context, p domainauth.Profile) (domainauth.Profile, error)

	// SetRole changes the role of an existing profile.
	SetRole(ctx context.Context, identityID string, role domainauth.Role) (domainauth.Profile, error)

	// AddXP adds delta experience points and returns the updated profile.
	AddXP(ctx context.Context, identityID string, delta int) (domainauth.Profile, error)

	// Delete removes the profile row. Reports whether a row was deleted.
	// Deleting revokes application-level access but does not touch the
	// underlying identity.
	Delete(ctx context.Context, identityID string) (bool, error)

	// List returns profiles ordered by creation time, newest first.
	List(ctx context.Context, limit, offset int) ([]domainauth.Profile, error)
}

// SessionStore persists and retrieves the portal's server-side sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}
