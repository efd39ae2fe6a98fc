package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iotgcet/club-portal/config"
	"github.com/iotgcet/club-portal/internal/bootstrap"
	"github.com/iotgcet/club-portal/internal/data"
	"github.com/iotgcet/club-portal/internal/service"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	db, redisClient, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close redis failed", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	metrics := bootstrap.BuildMetrics(cfg.Metrics, logger)
	defer func() {
		if cerr := metrics.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close metrics client failed", "error", cerr)
		}
	}()
	notifier := bootstrap.BuildNotifier(cfg.Notify, logger)

	authSvc := bootstrap.BuildAuthService(bootstrap.AuthConfig{
		Auth:        cfg.Auth,
		Backend:     cfg.Backend,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
		Notify:      notifier,
	})
	memberSvc := service.NewMemberService(service.MemberServiceOptions{
		Profiles: data.NewProfileRepo(db),
		Logger:   logger,
		Notify:   notifier,
	})

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:  &cfg,
		Auth:    authSvc,
		Members: memberSvc,
		Logger:  logger,
		Metrics: metrics,
	})

	// Wait for interrupt, then shut down gracefully.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	return bootstrap.ShutdownHTTPServer(ctx, server, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting club portal",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"auth_mode", cfg.Auth.Mode,
		"addr", cfg.HTTP.Addr)
}

// initInfrastructure connects shared dependencies used by the portal
// runtime. Postgres and Redis are dialed concurrently; if either fails the
// other connection is closed before returning.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (*sql.DB, redis.UniversalClient, error) {
	dbCfg := bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	}

	var (
		db          *sql.DB
		redisClient redis.UniversalClient
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if db, err = bootstrap.ConnectDB(dbCfg); err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if redisClient, err = bootstrap.ConnectRedis(dbCfg); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if db != nil {
			if cerr := db.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close database after connect failure", "error", cerr)
			}
		}
		if redisClient != nil {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis after connect failure", "error", cerr)
			}
		}
		return nil, nil, err
	}

	return db, redisClient, nil
}
