package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
)

func signInResult(level domainauth.Level) *service.SignInResult {
	return &service.SignInResult{
		Session: domainauth.Session{
			ID:         "sess-1",
			IdentityID: "u1",
			Email:      "member@gcet.edu.in",
			Role:       domainauth.RoleMember,
			ExpiresAt:  time.Now().Add(time.Hour),
		},
		Identity: domainauth.Identity{ID: "u1", Email: "member@gcet.edu.in"},
		Level:    level,
	}
}

func findCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSignInHandlerSuccess(t *testing.T) {
	svc := &stubAuthService{
		signInFn: func(_ context.Context, email, password string) (*service.SignInResult, error) {
			assert.Equal(t, "member@gcet.edu.in", email)
			assert.Equal(t, "hunter22", password)
			return signInResult(domainauth.LevelMember), nil
		},
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		strings.NewReader(`{"email":"member@gcet.edu.in","password":"hunter22"}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	cookie := findCookie(t, rec, "session_id")
	require.NotNil(t, cookie)
	assert.Equal(t, "sess-1", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Positive(t, cookie.MaxAge)

	var body struct {
		Level string `json:"level"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "member", body.Level)
	assert.Equal(t, "u1", body.User.ID)
}

func TestSignInHandlerInvalidCredentials(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		strings.NewReader(`{"email":"member@gcet.edu.in","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", decodeErrorCode(t, rec))
	assert.Nil(t, findCookie(t, rec, "session_id"))
}

func TestSignInHandlerBadJSON(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_json", decodeErrorCode(t, rec))
}

func TestSignInHandlerBackendUnavailable(t *testing.T) {
	h := &AuthHandlers{
		Svc: &stubAuthService{
			signInFn: func(_ context.Context, _, _ string) (*service.SignInResult, error) {
				return nil, domainauth.ErrBackendUnavailable
			},
		},
		Logger: testLogger(),
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/signin",
		strings.NewReader(`{"email":"member@gcet.edu.in","password":"pw"}`))
	rec := httptest.NewRecorder()
	h.SignIn(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "auth_unavailable", decodeErrorCode(t, rec))
}

func TestSignUpHandlerSuccess(t *testing.T) {
	svc := &stubAuthService{
		signUpFn: func(_ context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error) {
			assert.Equal(t, "fresher@gcet.edu.in", creds.Email)
			assert.Equal(t, "Asha", meta.DisplayName)
			assert.Equal(t, "24EC042", meta.RollNumber)
			return domainauth.Identity{ID: "u9", Email: creds.Email}, nil
		},
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup", strings.NewReader(
		`{"email":"fresher@gcet.edu.in","password":"pw123456","display_name":"Asha","roll_number":"24EC042","department":"ECE"}`))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "u9", body["id"])
}

func TestSignUpHandlerEmailTaken(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup",
		strings.NewReader(`{"email":"member@gcet.edu.in","password":"pw123456"}`))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "email_taken", decodeErrorCode(t, rec))
}

func TestSignUpHandlerRollNumberTaken(t *testing.T) {
	svc := &stubAuthService{
		signUpFn: func(context.Context, ports.Credentials, domainauth.SignupMetadata) (domainauth.Identity, error) {
			return domainauth.Identity{}, ports.ErrRollNumberTaken
		},
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signup",
		strings.NewReader(`{"email":"fresher@gcet.edu.in","password":"pw123456","roll_number":"24EC042"}`))
	rec := httptest.NewRecorder()
	h.SignUp(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "roll_number_taken", decodeErrorCode(t, rec))
}

func TestSignOutHandlerInvalidatesSession(t *testing.T) {
	svc := &stubAuthService{}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"sess-1"}, svc.loggedOut)

	cookie := findCookie(t, rec, "session_id")
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.Negative(t, cookie.MaxAge)
}

func TestSignOutHandlerClearsCookieOnStoreFailure(t *testing.T) {
	svc := &stubAuthService{
		logoutFn: func(_ context.Context, _ string) error { return assert.AnError },
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(t, rec, "session_id")
	require.NotNil(t, cookie)
	assert.Negative(t, cookie.MaxAge)
}

func TestSignOutHandlerWithoutCookie(t *testing.T) {
	svc := &stubAuthService{}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodPost, "/auth/signout", nil)
	rec := httptest.NewRecorder()
	h.SignOut(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, svc.loggedOut)
}

func TestStatusHandlerUnauthenticated(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Authenticated)
}

func TestStatusHandlerExpiredSessionClearsCookie(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "stale"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookie := findCookie(t, rec, "session_id")
	require.NotNil(t, cookie)
	assert.Negative(t, cookie.MaxAge)
}

func TestStatusHandlerAuthenticated(t *testing.T) {
	h := &AuthHandlers{Svc: authedStub("sess-1", domainauth.LevelCore), Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "sess-1"})
	rec := httptest.NewRecorder()
	h.Status(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Authenticated bool   `json:"authenticated"`
		Level         string `json:"level"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Authenticated)
	assert.Equal(t, "core", body.Level)
}

func TestSSOLoginHandlerRedirects(t *testing.T) {
	svc := &stubAuthService{
		beginSSOFn: func(_ context.Context, redirectURL string) (*service.BeginSSOResult, error) {
			assert.Equal(t, "https://portal.gcet.edu.in/auth/sso/callback", redirectURL)
			return &service.BeginSSOResult{
				AuthURL: "https://sso.gcet.edu.in/authorize?state=s1",
				State:   "s1",
				Nonce:   "n1",
			}, nil
		},
	}
	h := &AuthHandlers{
		Svc:         svc,
		SSORedirect: "https://portal.gcet.edu.in/auth/sso/callback",
		Logger:      testLogger(),
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/login?redirect_uri=/dashboard", nil)
	rec := httptest.NewRecorder()
	h.SSOLogin(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://sso.gcet.edu.in/authorize?state=s1", rec.Header().Get("Location"))

	state := findCookie(t, rec, "sso_state")
	require.NotNil(t, state)
	assert.Equal(t, "s1", state.Value)
	redirect := findCookie(t, rec, "sso_redirect")
	require.NotNil(t, redirect)
	assert.Equal(t, "/dashboard", redirect.Value)
}

func TestSSOLoginHandlerRejectsAbsoluteRedirect(t *testing.T) {
	svc := &stubAuthService{
		beginSSOFn: func(_ context.Context, _ string) (*service.BeginSSOResult, error) {
			return &service.BeginSSOResult{AuthURL: "https://sso.gcet.edu.in/authorize", State: "s1", Nonce: "n1"}, nil
		},
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/login?redirect_uri=https://evil.example/phish", nil)
	rec := httptest.NewRecorder()
	h.SSOLogin(rec, req)

	redirect := findCookie(t, rec, "sso_redirect")
	require.NotNil(t, redirect)
	assert.Equal(t, "/", redirect.Value)
}

func TestSSOCallbackHandlerStateMismatch(t *testing.T) {
	h := &AuthHandlers{Svc: &stubAuthService{}, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=abc&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "sso_state", Value: "s1"})
	rec := httptest.NewRecorder()
	h.SSOCallback(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_state", decodeErrorCode(t, rec))
}

func TestSSOCallbackHandlerSuccess(t *testing.T) {
	svc := &stubAuthService{
		completeSSOFn: func(_ context.Context, input service.CompleteSSOInput) (*service.SignInResult, error) {
			assert.Equal(t, "abc", input.Code)
			assert.Equal(t, "n1", input.Nonce)
			return signInResult(domainauth.LevelMember), nil
		},
	}
	h := &AuthHandlers{Svc: svc, Logger: testLogger()}

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: "sso_state", Value: "s1"})
	req.AddCookie(&http.Cookie{Name: "sso_nonce", Value: "n1"})
	req.AddCookie(&http.Cookie{Name: "sso_redirect", Value: "/dashboard"})
	rec := httptest.NewRecorder()
	h.SSOCallback(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))

	session := findCookie(t, rec, "session_id")
	require.NotNil(t, session)
	assert.Equal(t, "sess-1", session.Value)
}
