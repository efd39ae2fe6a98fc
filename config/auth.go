package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the authentication backend for the portal.
type AuthMode string

const (
	// AuthModeHosted delegates authentication to the hosted backend API.
	AuthModeHosted AuthMode = "hosted"
	// AuthModeLocal uses the config-seeded local backend (development only).
	AuthModeLocal AuthMode = "local"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "hosted", "local":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: hosted, local)", v)
	}
}

// SSOConfig contains campus OIDC single-sign-on configuration.
// SSO is enabled only when DiscoveryURL, ClientID, and ClientSecret are all set.
type SSOConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// LocalAuthConfig seeds the local development backend with one account.
type LocalAuthConfig struct {
	Email       string        `env:"EMAIL"        envDefault:"dev@gcet.edu.in"`
	Password    string        `env:"PASSWORD"     envDefault:"devpass"`
	DisplayName string        `env:"DISPLAY_NAME" envDefault:"Dev Tinkerer"`
	Department  string        `env:"DEPARTMENT"   envDefault:"ECE"`
	SessionTTL  time.Duration `env:"SESSION_TTL"  envDefault:"8h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which authentication backend to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"hosted"`

	// AdminEmails is the static allow-list of bootstrap administrator
	// addresses, granted admin access even before a profile role exists.
	AdminEmails []string `env:"AUTH_ADMIN_EMAILS" envDefault:"iotgcet2024@gmail.com" envSeparator:";"`

	// SessionTTL is the lifetime of portal session records.
	SessionTTL time.Duration `env:"AUTH_SESSION_TTL" envDefault:"12h"`

	// RequestTimeout bounds session restoration and profile fetches so a
	// hung backend never leaves the session context loading forever.
	RequestTimeout time.Duration `env:"AUTH_REQUEST_TIMEOUT" envDefault:"10s"`

	// SSO configuration (campus OIDC login, optional).
	SSO SSOConfig `envPrefix:"SSO_"`

	// Local backend configuration (used when Mode=local).
	Local LocalAuthConfig `envPrefix:"LOCAL_AUTH_"`
}

// EffectiveSessionTTL returns the portal session lifetime for the active
// mode. The local backend carries its own, shorter TTL so development
// sessions expire within a working day.
func (a AuthConfig) EffectiveSessionTTL() time.Duration {
	if a.Mode == AuthModeLocal && a.Local.SessionTTL > 0 {
		return a.Local.SessionTTL
	}
	return a.SessionTTL
}

// Sanitize applies guardrails to auth configuration values.
func (a *AuthConfig) Sanitize() {
	if a.SessionTTL <= 0 {
		a.SessionTTL = 12 * time.Hour
	}
	if a.RequestTimeout <= 0 {
		a.RequestTimeout = 10 * time.Second
	}
}
