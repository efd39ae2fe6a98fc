package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/observability/notify"
	"github.com/iotgcet/club-portal/internal/ports"
)

// ErrSessionExpired is returned by GetSession for sessions past expiry.
var ErrSessionExpired = errors.New("session expired")

const defaultSessionTTL = 12 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Backend  ports.AuthBackend
	Sessions ports.SessionStore
	Profiles ports.ProfileStore
	Policy   domainauth.Policy
	// SSO is optional; campus login is disabled when nil.
	SSO        ports.SSOFlow
	SessionTTL time.Duration
	Logger     *slog.Logger
	// Notify is optional; signup announcements are skipped when nil.
	Notify notify.Sink
}

// AuthService orchestrates the portal's server-side authentication: it
// delegates credential checks to the auth backend, maintains the profile
// row, computes authorization through the one shared policy, and persists
// portal session records.
type AuthService struct {
	backend    ports.AuthBackend
	sessions   ports.SessionStore
	resolver   *Resolver
	profiles   ports.ProfileStore
	policy     domainauth.Policy
	sso        ports.SSOFlow
	sessionTTL time.Duration
	logger     *slog.Logger
	notify     notify.Sink
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		backend:    opts.Backend,
		sessions:   opts.Sessions,
		resolver:   NewResolver(opts.Profiles, logger),
		profiles:   opts.Profiles,
		policy:     opts.Policy,
		sso:        opts.SSO,
		sessionTTL: ttl,
		logger:     logger,
		notify:     opts.Notify,
	}
}

// announceSignup posts a membership event to the club Slack, detached from
// the request so a slow webhook never delays the signup response.
func (s *AuthService) announceSignup(identity domainauth.Identity, meta domainauth.SignupMetadata) {
	if s.notify == nil {
		return
	}
	ev := notify.MembershipEvent{
		Kind:        notify.KindSignedUp,
		IdentityID:  identity.ID,
		Email:       identity.Email,
		DisplayName: meta.DisplayName,
		RollNumber:  meta.RollNumber,
		Department:  meta.Department,
		Role:        string(domainauth.RoleTinkerer),
		OccurredAt:  time.Now(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notify.SendMembershipEvent(ctx, ev); err != nil {
			s.logger.Warn("signup announcement failed", "identity_id", ev.IdentityID, "error", err)
		}
	}()
}

// SignInResult carries the outcome of a successful sign-in.
type SignInResult struct {
	Session  domainauth.Session
	Identity domainauth.Identity
	Profile  *domainauth.Profile
	Level    domainauth.Level
}

// SignIn authenticates an email/password pair against the backend and
// creates a portal session. Authentication failures pass through typed
// (domainauth.ErrInvalidCredentials, ErrEmailNotConfirmed) for the login
// form to present; they are never retried here.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if email == "" {
		return nil, errors.New("email is required")
	}
	if password == "" {
		return nil, errors.New("password is required")
	}

	identity, err := s.backend.SignIn(ctx, ports.Credentials{
		Email:    domainauth.NormalizeEmail(email),
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	return s.establishSession(ctx, identity)
}

// SignUp registers a new identity with the backend and creates the matching
// profile row (the portal plays the role of the hosted trigger). Transient
// profile creation failures do not fail the signup, the row will be lazily
// upserted on a later sign-in. A roll number collision is user-correctable
// and surfaces as ports.ErrRollNumberTaken instead of being deferred.
func (s *AuthService) SignUp(ctx context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	if creds.Email == "" {
		return domainauth.Identity{}, errors.New("email is required")
	}
	if creds.Password == "" {
		return domainauth.Identity{}, errors.New("password is required")
	}
	creds.Email = domainauth.NormalizeEmail(creds.Email)

	identity, err := s.backend.SignUp(ctx, creds, meta)
	if err != nil {
		return domainauth.Identity{}, err
	}

	if _, upsertErr := s.profiles.Upsert(ctx, domainauth.Profile{
		ID:          identity.ID,
		DisplayName: meta.DisplayName,
		RollNumber:  meta.RollNumber,
		Department:  meta.Department,
		Role:        domainauth.RoleTinkerer,
	}); upsertErr != nil {
		if errors.Is(upsertErr, ports.ErrRollNumberTaken) {
			return domainauth.Identity{}, fmt.Errorf("create profile: %w", upsertErr)
		}
		s.logger.WarnContext(ctx, "profile creation deferred", "identity_id", identity.ID, "error", upsertErr)
	}

	s.announceSignup(identity, meta)
	return identity, nil
}

// GetSession retrieves a portal session by id, cleaning up expired records.
func (s *AuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if sessionID == "" {
		return nil, errors.New("session ID is required")
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.IsExpired() {
		if deleteErr := s.sessions.Delete(ctx, sessionID); deleteErr != nil {
			return nil, errors.Join(ErrSessionExpired, fmt.Errorf("delete session: %w", deleteErr))
		}
		return nil, ErrSessionExpired
	}

	return &session, nil
}

// Authorization is the per-request authorization view of a session.
type Authorization struct {
	Identity domainauth.Identity
	Profile  *domainauth.Profile
	Level    domainauth.Level
}

// Authorize recomputes the authorization level for a session from the
// current profile row. The level is derived fresh on every call so a role
// promotion or a profile deletion takes effect without re-login.
func (s *AuthService) Authorize(ctx context.Context, session *domainauth.Session) Authorization {
	identity := domainauth.Identity{ID: session.IdentityID, Email: session.Email}
	res := s.resolver.Resolve(ctx, session.IdentityID)
	return Authorization{
		Identity: identity,
		Profile:  res.Profile,
		Level:    s.policy.Evaluate(&identity, res.Profile),
	}
}

// Logout removes a portal session. The local record is deleted regardless
// of backend state, so a network failure can never leave a stuck
// signed-in session.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil // Nothing to logout
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// BeginSSOResult contains the result of beginning a campus SSO flow.
type BeginSSOResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginSSOLogin initiates a campus SSO flow.
func (s *AuthService) BeginSSOLogin(ctx context.Context, redirectURL string) (*BeginSSOResult, error) {
	if s.sso == nil {
		return nil, errors.New("campus SSO is not configured")
	}
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.sso.Begin(ctx, ports.SSOBeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin sso flow: %w", err)
	}
	return &BeginSSOResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteSSOInput groups parameters for completing a campus SSO flow.
type CompleteSSOInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteSSOLogin exchanges the authorization code for an identity,
// ensures a profile row exists, and creates a portal session.
func (s *AuthService) CompleteSSOLogin(ctx context.Context, input CompleteSSOInput) (*SignInResult, error) {
	if s.sso == nil {
		return nil, errors.New("campus SSO is not configured")
	}
	if input.Code == "" {
		return nil, errors.New("authorization code is required")
	}
	if input.State == "" {
		return nil, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return nil, errors.New("nonce parameter is required")
	}

	identity, err := s.sso.Exchange(ctx, ports.SSOExchangeInput(input))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}

	if _, upsertErr := s.profiles.Upsert(ctx, domainauth.Profile{
		ID:          identity.ID,
		DisplayName: identity.Metadata.DisplayName,
		RollNumber:  identity.Metadata.RollNumber,
		Department:  identity.Metadata.Department,
		Role:        domainauth.RoleTinkerer,
	}); upsertErr != nil {
		s.logger.WarnContext(ctx, "profile creation deferred", "identity_id", identity.ID, "error", upsertErr)
	}

	return s.establishSession(ctx, identity)
}

// establishSession resolves the profile, computes the level, and persists a
// portal session record.
func (s *AuthService) establishSession(ctx context.Context, identity domainauth.Identity) (*SignInResult, error) {
	res := s.resolver.Resolve(ctx, identity.ID)
	level := s.policy.Evaluate(&identity, res.Profile)

	role := domainauth.RoleTinkerer
	if res.Profile != nil {
		role = res.Profile.Role
	}

	session := domainauth.Session{
		ID:         uuid.NewString(),
		IdentityID: identity.ID,
		Email:      identity.Email,
		Role:       role,
		ExpiresAt:  time.Now().Add(s.sessionTTL),
	}

	if saveErr := s.sessions.Save(ctx, session); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	return &SignInResult{
		Session:  session,
		Identity: identity,
		Profile:  res.Profile,
		Level:    level,
	}, nil
}
