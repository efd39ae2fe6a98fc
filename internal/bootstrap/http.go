package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/iotgcet/club-portal/config"
	httpx "github.com/iotgcet/club-portal/internal/http"
	"github.com/iotgcet/club-portal/internal/observability/statsd"
	"github.com/iotgcet/club-portal/internal/service"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config  *config.AppConfig
	Auth    *service.AuthService
	Members *service.MemberService
	Logger  *slog.Logger
	// Metrics is optional; the metrics middleware is skipped when nil.
	Metrics *statsd.Client
}

// StartHTTPServer creates and starts the HTTP server.
// Returns the server instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	router := httpx.NewRouter(httpx.RouterServices{
		Auth:         cfg.Auth,
		Members:      cfg.Members,
		CookieDomain: appCfg.HTTP.CookieDomain,
		SSORedirect:  appCfg.HTTP.BaseURL,
		Logger:       logger,
	})

	// Order: Recover -> Logging -> Metrics -> Router
	var handler http.Handler = router
	if cfg.Metrics != nil {
		handler = httpx.Metrics(cfg.Metrics)(handler)
	}
	handler = httpx.Logging(logger)(handler)
	handler = httpx.Recover(logger)(handler)

	return startServer(logger, handler, appCfg.HTTP.Addr)
}

func startServer(logger *slog.Logger, handler http.Handler, addr string) *http.Server {
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if server == nil {
		return nil
	}

	if logger != nil {
		logger.Info("shutting down HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if logger != nil {
		logger.Info("HTTP server stopped")
	}

	return nil
}
