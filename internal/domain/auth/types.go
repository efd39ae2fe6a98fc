package auth

// Package auth contains domain-level types for identity, profiles, and
// sessions. It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role is the application role stored on a profile.
// Keep string form for easy persistence and cookies.
// Valid values are defined as constants below.
type Role string

const (
	RoleTinkerer Role = "tinkerer"
	RoleMember   Role = "member"
	RoleCore     Role = "core"
	RoleAdmin    Role = "admin"
)

// ParseRole normalizes a stored role string. Unknown values fall back to
// tinkerer so a corrupted row never grants access.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleMember:
		return RoleMember
	case RoleCore:
		return RoleCore
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleTinkerer
	}
}

// SignupMetadata is the metadata attached to an identity at sign-up time.
// The backend stores it verbatim; the portal copies it into the profile row.
type SignupMetadata struct {
	DisplayName string `json:"display_name"`
	RollNumber  string `json:"roll_number"`
	Department  string `json:"department"`
}

// Identity is the authenticated principal issued by the auth backend.
// The portal holds a read-only cached reference; the backend owns the
// lifecycle (created on sign-up, destroyed on sign-out or expiry).
type Identity struct {
	ID       string
	Email    string
	Metadata SignupMetadata
}

// Profile is the application-owned record keyed 1:1 by identity id.
// At most one profile exists per identity.
type Profile struct {
	ID          string    `json:"id"            db:"id"`
	DisplayName string    `json:"display_name"  db:"display_name"`
	RollNumber  string    `json:"roll_number"   db:"roll_number"`
	Department  string    `json:"department"    db:"department"`
	Role        Role      `json:"role"          db:"role"`
	XP          int       `json:"xp"            db:"xp"`
	CreatedAt   time.Time `json:"created_at"    db:"created_at"`
}

// Session is the server-side record the portal persists for an
// authenticated browser session. ID is an opaque identifier referenced by
// the session cookie.
type Session struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsExpired reports whether the session record has passed its expiry.
func (s Session) IsExpired() bool { return time.Now().After(s.ExpiresAt) }

// EventKind classifies identity transitions on the backend change feed.
type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
	// EventRefreshed is emitted on token refresh; the identity is unchanged
	// but observers must still see the event (no coalescing).
	EventRefreshed EventKind = "refreshed"
)

// Event is a single identity transition. Identity is nil for sign-out.
type Event struct {
	Kind     EventKind
	Identity *Identity
}

// NormalizeEmail lower-cases and trims an email address. Sign-in, sign-up,
// and the allow-list comparison all apply the same normalization so
// bootstrap accounts never lose access to a casing mismatch.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
