package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/iotgcet/club-portal/config"
	"github.com/iotgcet/club-portal/internal/adapters/campusauth"
	"github.com/iotgcet/club-portal/internal/adapters/hostedauth"
	"github.com/iotgcet/club-portal/internal/adapters/localauth"
	redisadapter "github.com/iotgcet/club-portal/internal/adapters/redis"
	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/data"
	"github.com/iotgcet/club-portal/internal/observability/notify"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
)

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	Backend     config.BackendConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
	// Notify is optional; signup announcements are skipped when nil.
	Notify notify.Sink
}

// BuildAuthService creates the auth service for the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid; the
// portal then serves only the health endpoint instead of crashing.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	if cfg.RedisClient == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth service disabled: redis client not configured", "mode", cfg.Auth.Mode)
		}
		return nil
	}
	if cfg.DB == nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("auth service disabled: database not configured", "mode", cfg.Auth.Mode)
		}
		return nil
	}

	backend := BuildBackend(cfg)
	if backend == nil {
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Backend:    backend,
		Sessions:   redisadapter.NewSessionStore(cfg.RedisClient),
		Profiles:   data.NewProfileRepo(cfg.DB),
		Policy:     domainauth.NewPolicy(cfg.Auth.AdminEmails),
		SSO:        buildSSOFlow(cfg),
		SessionTTL: cfg.Auth.EffectiveSessionTTL(),
		Logger:     cfg.Logger,
		Notify:     cfg.Notify,
	})
}

// BuildBackend creates the configured auth backend, or nil when the mode's
// required configuration is missing.
//
//nolint:ireturn // the backend is consumed through its port interface.
func BuildBackend(cfg AuthConfig) ports.AuthBackend {
	switch cfg.Auth.Mode {
	case config.AuthModeLocal:
		backend, err := localauth.New(localauth.Config{
			Email:       cfg.Auth.Local.Email,
			Password:    cfg.Auth.Local.Password,
			DisplayName: cfg.Auth.Local.DisplayName,
			Department:  cfg.Auth.Local.Department,
		})
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("failed to create local auth backend, auth disabled", "error", err)
			}
			return nil
		}
		return backend

	case config.AuthModeHosted:
		if !cfg.Backend.Configured() {
			if cfg.Logger != nil {
				cfg.Logger.Warn("AuthModeHosted selected but required config missing; auth disabled",
					"url_empty", cfg.Backend.URL == "",
					"api_key_empty", cfg.Backend.APIKey == "",
				)
			}
			return nil
		}
		hostedCfg := hostedauth.Config{
			BaseURL: cfg.Backend.URL,
			APIKey:  cfg.Backend.APIKey,
		}
		if cfg.RedisClient != nil {
			hostedCfg.Tokens = redisadapter.NewTokenStore(cfg.RedisClient, "")
		}
		backend, err := hostedauth.New(hostedCfg)
		if err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Warn("failed to create hosted auth backend, auth disabled", "error", err)
			}
			return nil
		}
		return backend

	default:
		return nil
	}
}

// buildSSOFlow creates the campus OIDC flow when fully configured.
// SSO is optional; nil simply disables the campus login routes' backend.
//
//nolint:ireturn // the flow is consumed through its port interface.
func buildSSOFlow(cfg AuthConfig) ports.SSOFlow {
	sso := cfg.Auth.SSO
	if sso.DiscoveryURL == "" || sso.ClientID == "" || sso.ClientSecret == "" {
		return nil
	}

	prov, err := campusauth.NewProvider(campusauth.ProviderConfig{
		ClientID:     sso.ClientID,
		ClientSecret: sso.ClientSecret,
		RedirectURL:  sso.RedirectURL,
		Scope:        sso.Scope,
		DiscoveryURL: sso.DiscoveryURL,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create campus SSO provider, SSO disabled", "error", err)
		}
		return nil
	}
	return prov
}
