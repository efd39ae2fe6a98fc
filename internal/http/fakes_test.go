package httpx

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
)

var (
	errNoSession   = errors.New("session not found")
	errSSODisabled = errors.New("campus SSO is not configured")
)

// stubAuthService implements AuthServiceInterface with overridable
// functions, defaulting to an unauthenticated state.
type stubAuthService struct {
	signInFn      func(ctx context.Context, email, password string) (*service.SignInResult, error)
	signUpFn      func(ctx context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error)
	getSessionFn  func(ctx context.Context, sessionID string) (*domainauth.Session, error)
	authorizeFn   func(ctx context.Context, session *domainauth.Session) service.Authorization
	logoutFn      func(ctx context.Context, sessionID string) error
	beginSSOFn    func(ctx context.Context, redirectURL string) (*service.BeginSSOResult, error)
	completeSSOFn func(ctx context.Context, input service.CompleteSSOInput) (*service.SignInResult, error)

	loggedOut []string
}

func (s *stubAuthService) SignIn(ctx context.Context, email, password string) (*service.SignInResult, error) {
	if s.signInFn != nil {
		return s.signInFn(ctx, email, password)
	}
	return nil, domainauth.ErrInvalidCredentials
}

func (s *stubAuthService) SignUp(ctx context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
	if s.signUpFn != nil {
		return s.signUpFn(ctx, creds, meta)
	}
	return domainauth.Identity{}, domainauth.ErrEmailTaken
}

func (s *stubAuthService) GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error) {
	if s.getSessionFn != nil {
		return s.getSessionFn(ctx, sessionID)
	}
	return nil, errNoSession
}

func (s *stubAuthService) Authorize(ctx context.Context, session *domainauth.Session) service.Authorization {
	if s.authorizeFn != nil {
		return s.authorizeFn(ctx, session)
	}
	return service.Authorization{}
}

func (s *stubAuthService) Logout(ctx context.Context, sessionID string) error {
	s.loggedOut = append(s.loggedOut, sessionID)
	if s.logoutFn != nil {
		return s.logoutFn(ctx, sessionID)
	}
	return nil
}

func (s *stubAuthService) BeginSSOLogin(ctx context.Context, redirectURL string) (*service.BeginSSOResult, error) {
	if s.beginSSOFn != nil {
		return s.beginSSOFn(ctx, redirectURL)
	}
	return nil, errSSODisabled
}

func (s *stubAuthService) CompleteSSOLogin(ctx context.Context, input service.CompleteSSOInput) (*service.SignInResult, error) {
	if s.completeSSOFn != nil {
		return s.completeSSOFn(ctx, input)
	}
	return nil, errSSODisabled
}

// authedStub returns a stub that resolves the given session id to a session
// for identity "u1" at the given level.
func authedStub(sessionID string, level domainauth.Level) *stubAuthService {
	session := &domainauth.Session{
		ID:         sessionID,
		IdentityID: "u1",
		Email:      "member@gcet.edu.in",
		Role:       domainauth.RoleMember,
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	return &stubAuthService{
		getSessionFn: func(_ context.Context, id string) (*domainauth.Session, error) {
			if id != sessionID {
				return nil, errNoSession
			}
			return session, nil
		},
		authorizeFn: func(_ context.Context, s *domainauth.Session) service.Authorization {
			return service.Authorization{
				Identity: domainauth.Identity{ID: s.IdentityID, Email: s.Email},
				Level:    level,
			}
		},
	}
}
