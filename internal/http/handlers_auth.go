package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
)

const sessionCookieName = "session_id"

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	SignIn(ctx context.Context, email, password string) (*service.SignInResult, error)
	SignUp(ctx context.Context, creds ports.Credentials, meta domainauth.SignupMetadata) (domainauth.Identity, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Authorize(ctx context.Context, session *domainauth.Session) service.Authorization
	Logout(ctx context.Context, sessionID string) error
	BeginSSOLogin(ctx context.Context, redirectURL string) (*service.BeginSSOResult, error)
	CompleteSSOLogin(ctx context.Context, input service.CompleteSSOInput) (*service.SignInResult, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	CookieDomain string
	SSORedirect  string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	RollNumber  string `json:"roll_number"`
	Department  string `json:"department"`
}

// SignIn handles the password login endpoint.
// POST /auth/signin.
func (h *AuthHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	result, err := h.Svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.setSessionCookie(w, r, result.Session)
	WriteJSON(w, http.StatusOK, sessionPayload(result))
}

// SignUp handles the registration endpoint.
// POST /auth/signup.
func (h *AuthHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	identity, err := h.Svc.SignUp(r.Context(), ports.Credentials{
		Email:    req.Email,
		Password: req.Password,
	}, domainauth.SignupMetadata{
		DisplayName: req.DisplayName,
		RollNumber:  req.RollNumber,
		Department:  req.Department,
	})
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]any{
		"id":    identity.ID,
		"email": identity.Email,
	})
}

// SignOut handles the logout endpoint.
// POST /auth/signout.
func (h *AuthHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	// Invalidate the server-side session if present; the cookie is cleared
	// regardless so the client is signed out even when the store call fails.
	if sessionCookie, err := r.Cookie(sessionCookieName); err == nil {
		if logoutErr := h.Svc.Logout(r.Context(), sessionCookie.Value); logoutErr != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}

	h.clearCookie(w, r, sessionCookieName)
	WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sessionCookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	session, err := h.Svc.GetSession(r.Context(), sessionCookie.Value)
	if err != nil {
		// Session is invalid or expired, clear the cookie
		h.clearCookie(w, r, sessionCookieName)
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	authz := h.Svc.Authorize(r.Context(), session)
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":    session.IdentityID,
			"email": session.Email,
		},
		"profile":    authz.Profile,
		"level":      authz.Level.String(),
		"expires_at": session.ExpiresAt,
	})
}

// SSOLogin handles the campus SSO initiation endpoint.
// GET /auth/sso/login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) SSOLogin(w http.ResponseWriter, r *http.Request) {
	redirectURI := safeRedirectPath(r.URL.Query().Get("redirect_uri"))

	result, err := h.Svc.BeginSSOLogin(r.Context(), h.SSORedirect)
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "sso_login_failed",
			Err:     err,
		})
		return
	}

	h.setSSOCookies(w, r, ssoCookieParams{State: result.State, Nonce: result.Nonce, RedirectURI: redirectURI})
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// SSOCallback handles the campus SSO callback endpoint.
// GET /auth/sso/callback?code=<code>&state=<state>.
func (h *AuthHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_code",
			Err:     errors.New("authorization code is required"),
		})
		return
	}

	stateCookie, err := r.Cookie("sso_state")
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("sso_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	result, err := h.Svc.CompleteSSOLogin(r.Context(), service.CompleteSSOInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: "sso_completion_failed",
			Err:     err,
		})
		return
	}

	h.setSessionCookie(w, r, result.Session)
	h.clearCookie(w, r, "sso_state")
	h.clearCookie(w, r, "sso_nonce")

	redirectURI := "/"
	if redirectCookie, cookieErr := r.Cookie("sso_redirect"); cookieErr == nil {
		redirectURI = safeRedirectPath(redirectCookie.Value)
		h.clearCookie(w, r, "sso_redirect")
	}
	http.Redirect(w, r, redirectURI, http.StatusFound)
}

// writeAuthError maps typed authentication failures onto response codes the
// login/signup forms special-case. Duplicate signup gets its own code so
// the form can switch to login instead of showing a generic error.
func (h *AuthHandlers) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainauth.ErrInvalidCredentials):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "invalid_credentials", Err: err})
	case errors.Is(err, domainauth.ErrEmailNotConfirmed):
		WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "email_not_confirmed", Err: err})
	case errors.Is(err, domainauth.ErrEmailTaken):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "email_taken", Err: err})
	case errors.Is(err, ports.ErrRollNumberTaken):
		WriteError(w, ErrorParams{Code: http.StatusConflict, ErrCode: "roll_number_taken", Err: err})
	case errors.Is(err, domainauth.ErrBackendUnavailable):
		WriteError(w, ErrorParams{Code: http.StatusServiceUnavailable, ErrCode: "auth_unavailable", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "auth_failed", Err: err})
	}
}

func sessionPayload(result *service.SignInResult) map[string]any {
	return map[string]any{
		"user": map[string]any{
			"id":    result.Identity.ID,
			"email": result.Identity.Email,
		},
		"profile":    result.Profile,
		"level":      result.Level.String(),
		"expires_at": result.Session.ExpiresAt,
	}
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when
// setting cookies to maximize compatibility across browsers during deletion.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ssoCookieParams groups values needed to set the SSO flow cookies.
type ssoCookieParams struct {
	State       string
	Nonce       string
	RedirectURI string
}

// setSSOCookies stores SSO state, nonce, and the post-login redirect in secure cookies.
func (h *AuthHandlers) setSSOCookies(w http.ResponseWriter, r *http.Request, p ssoCookieParams) {
	isSecure := isSecureRequest(r)
	for name, value := range map[string]string{
		"sso_state":    p.State,
		"sso_nonce":    p.Nonce,
		"sso_redirect": p.RedirectURI,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   h.CookieDomain,
			HttpOnly: true,
			Secure:   isSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   600, // 10 minutes
		})
	}
}

// setSessionCookie writes the session cookie based on the session's expiry.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, s domainauth.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.ID,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(time.Until(s.ExpiresAt).Seconds()),
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path
// starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
