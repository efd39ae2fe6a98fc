package notify

import (
	"context"
	"time"
)

// Membership event kinds recognised by downstream sinks.
const (
	KindSignedUp    = "signed_up"
	KindRoleChanged = "role_changed"
)

// MembershipEvent captures the canonical data emitted when the club roster
// changes: a new signup or a role promotion.
type MembershipEvent struct {
	Kind        string
	IdentityID  string
	Email       string
	DisplayName string
	RollNumber  string
	Department  string
	Role        string
	OccurredAt  time.Time
}

// Sink describes a destination capable of consuming membership events.
type Sink interface {
	SendMembershipEvent(ctx context.Context, ev MembershipEvent) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, ev MembershipEvent) error

// SendMembershipEvent implements the Sink interface.
func (f SinkFunc) SendMembershipEvent(ctx context.Context, ev MembershipEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, ev)
}
