package auth

// Decision is the outcome of gating a protected view.
type Decision int

const (
	// DecisionWaiting means the session is still loading; render a neutral
	// waiting state and do not redirect.
	DecisionWaiting Decision = iota
	// DecisionSignIn means no identity is present; the caller must
	// authenticate.
	DecisionSignIn
	// DecisionForbidden means an identity is present but its level is
	// insufficient. Distinct from DecisionSignIn: the user message is "your
	// access level is insufficient", not "log in".
	DecisionForbidden
	// DecisionAllow means the protected content may render.
	DecisionAllow
)

// String returns the lowercase name of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionSignIn:
		return "sign_in"
	case DecisionForbidden:
		return "forbidden"
	case DecisionAllow:
		return "allow"
	default:
		return "waiting"
	}
}

// GuardInput is the snapshot a route guard decides on.
type GuardInput struct {
	Loading  bool
	Identity *Identity
	Level    Level
}

// Decide gates a protected view. It is a pure function of its inputs and
// has no side effects; in particular it never mutates session state.
// Protected content is never allowed while Loading is true, regardless of
// what the identity will eventually resolve to.
func Decide(in GuardInput, required Level) Decision {
	if in.Loading {
		return DecisionWaiting
	}
	if in.Identity == nil {
		return DecisionSignIn
	}
	if in.Level < required {
		return DecisionForbidden
	}
	return DecisionAllow
}
