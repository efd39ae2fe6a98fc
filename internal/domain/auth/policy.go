package auth

// Level is the derived authorization tier. It is computed, never stored,
// and recomputed whenever identity or profile changes.
type Level int

const (
	LevelNone Level = iota
	LevelMember
	LevelCore
	LevelAdmin
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case LevelMember:
		return "member"
	case LevelCore:
		return "core"
	case LevelAdmin:
		return "admin"
	default:
		return "none"
	}
}

// LevelForRole maps a profile role onto its authorization level.
func LevelForRole(r Role) Level {
	switch r {
	case RoleAdmin:
		return LevelAdmin
	case RoleCore:
		return LevelCore
	case RoleMember:
		return LevelMember
	default:
		return LevelNone
	}
}

// Policy derives the effective authorization level from a profile role and
// a static allow-list of bootstrap administrator emails. Every consumer
// (middleware, handlers, the admin CLI) goes through this one policy; no
// page re-implements the precedence rule.
type Policy struct {
	allowlist map[string]struct{}
}

// NewPolicy builds a policy from the configured allow-list. Entries are
// normalized once at construction; Evaluate normalizes the probe email so
// the comparison is case-insensitive in both directions.
func NewPolicy(allowlist []string) Policy {
	m := make(map[string]struct{}, len(allowlist))
	for _, e := range allowlist {
		if n := NormalizeEmail(e); n != "" {
			m[n] = struct{}{}
		}
	}
	return Policy{allowlist: m}
}

// Evaluate computes the authorization level for an identity/profile pair.
// Precedence, first match wins:
//  1. profile role (admin > core > member)
//  2. allow-list fallback for accounts provisioned before role-based
//     access existed: a listed email is granted admin even with no profile
//  3. none (the "tinkerer" default)
//
// The function is pure: same inputs, same level, independent of call order.
func (p Policy) Evaluate(identity *Identity, profile *Profile) Level {
	if profile != nil {
		if lvl := LevelForRole(profile.Role); lvl > LevelNone {
			return lvl
		}
	}
	if identity != nil {
		if _, ok := p.allowlist[NormalizeEmail(identity.Email)]; ok {
			return LevelAdmin
		}
	}
	return LevelNone
}
