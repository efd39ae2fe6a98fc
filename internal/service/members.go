package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/observability/notify"
	"github.com/iotgcet/club-portal/internal/ports"
)

// ErrInsufficientLevel is returned when an actor attempts a member
// operation above their authorization level. It is a normal decided
// outcome, not a fault.
var ErrInsufficientLevel = errors.New("insufficient access level")

// MemberServiceOptions groups dependencies for MemberService.
type MemberServiceOptions struct {
	Profiles ports.ProfileStore
	Logger   *slog.Logger
	// Notify is optional; role-change announcements are skipped when nil.
	Notify notify.Sink
}

// MemberService manages the recruitment pipeline's profile records: role
// promotion, experience points, listing, and removal. Route-level gating
// is the guard middleware's job; this service only enforces the rules that
// depend on the relationship between actor and change (for example, only
// admins may mint other admins).
type MemberService struct {
	profiles ports.ProfileStore
	logger   *slog.Logger
	notify   notify.Sink
}

// NewMemberService constructs a new MemberService.
func NewMemberService(opts MemberServiceOptions) *MemberService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberService{profiles: opts.Profiles, logger: logger, notify: opts.Notify}
}

// List returns profiles with pagination, newest first.
func (s *MemberService) List(ctx context.Context, limit, offset int) ([]domainauth.Profile, error) {
	profiles, err := s.profiles.List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return profiles, nil
}

// Get returns one profile, or ports.ErrProfileNotFound.
func (s *MemberService) Get(ctx context.Context, identityID string) (domainauth.Profile, error) {
	return s.profiles.Get(ctx, identityID)
}

// SetRole changes a member's role. Assigning core or admin requires an
// admin actor; core members may move members between tinkerer and member.
func (s *MemberService) SetRole(ctx context.Context, actor domainauth.Level, identityID string, role domainauth.Role) (domainauth.Profile, error) {
	role = domainauth.ParseRole(string(role))
	required := domainauth.LevelCore
	if role == domainauth.RoleAdmin || role == domainauth.RoleCore {
		required = domainauth.LevelAdmin
	}
	if actor < required {
		return domainauth.Profile{}, ErrInsufficientLevel
	}

	profile, err := s.profiles.SetRole(ctx, identityID, role)
	if err != nil {
		return domainauth.Profile{}, err
	}
	s.logger.InfoContext(ctx, "member role changed", "identity_id", identityID, "role", role)
	s.announceRoleChange(profile)
	return profile, nil
}

// announceRoleChange posts a role-change event to the club Slack, detached
// from the request so a slow webhook never delays the response.
func (s *MemberService) announceRoleChange(p domainauth.Profile) {
	if s.notify == nil {
		return
	}
	ev := notify.MembershipEvent{
		Kind:        notify.KindRoleChanged,
		IdentityID:  p.ID,
		DisplayName: p.DisplayName,
		RollNumber:  p.RollNumber,
		Department:  p.Department,
		Role:        string(p.Role),
		OccurredAt:  time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notify.SendMembershipEvent(ctx, ev); err != nil {
			s.logger.Warn("role change announcement failed", "identity_id", ev.IdentityID, "error", err)
		}
	}()
}

// AwardXP adds experience points to a member's profile.
func (s *MemberService) AwardXP(ctx context.Context, identityID string, delta int) (domainauth.Profile, error) {
	if delta == 0 {
		return s.profiles.Get(ctx, identityID)
	}
	return s.profiles.AddXP(ctx, identityID, delta)
}

// Remove deletes a member's profile, revoking application-level access.
// The underlying identity is untouched; only an admin route reaches this.
func (s *MemberService) Remove(ctx context.Context, identityID string) (bool, error) {
	deleted, err := s.profiles.Delete(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	if deleted {
		s.logger.InfoContext(ctx, "member profile removed", "identity_id", identityID)
	}
	return deleted, nil
}
