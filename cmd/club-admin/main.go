package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/iotgcet/club-portal/config"
	"github.com/iotgcet/club-portal/internal/bootstrap"
	"github.com/iotgcet/club-portal/internal/data"
	"github.com/iotgcet/club-portal/internal/devseed"
	domainauth "github.com/iotgcet/club-portal/internal/domain/auth"
	"github.com/iotgcet/club-portal/internal/ports"
	"github.com/iotgcet/club-portal/internal/service"
	"github.com/iotgcet/club-portal/internal/util"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Run database migrations",
			run:         runMigrate,
		},
		"create-admin": {
			name:        "create-admin",
			description: "Create or promote a profile with the admin role",
			run:         runCreateAdmin,
		},
		"set-role": {
			name:        "set-role",
			description: "Change a member's role",
			run:         runSetRole,
		},
		"list-members": {
			name:        "list-members",
			description: "List member profiles",
			run:         runListMembers,
		},
		"seed-dev": {
			name:        "seed-dev",
			description: "Seed the development database with a demo roster",
			run:         runSeedDev,
		},
		"whoami": {
			name:        "whoami",
			description: "Sign in against the configured backend and print the session context",
			run:         runWhoami,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: club-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(os.Stdout, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func runMigrate(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	timeout := fs.Duration("timeout", defaultMigrationTimeout, "migration timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, *timeout)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
}

func runCreateAdmin(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	id := fs.String("id", "", "identity id of the account (required)")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("create-admin: -id is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	profile, err := data.NewProfileRepo(db).Promote(ctx,
		domainauth.Profile{ID: *id, DisplayName: *name}, domainauth.RoleAdmin)
	if err != nil {
		return fmt.Errorf("promote to admin: %w", err)
	}

	cmdCtx.Logger.Info("admin profile ready", "id", profile.ID, "display_name", profile.DisplayName)
	return nil
}

func runSetRole(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("set-role", flag.ContinueOnError)
	id := fs.String("id", "", "identity id of the account (required)")
	role := fs.String("role", "", "role to assign: tinkerer, member, core, admin (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" || *role == "" {
		return errors.New("set-role: -id and -role are required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	profile, err := data.NewProfileRepo(db).SetRole(ctx, *id, domainauth.ParseRole(*role))
	if err != nil {
		if errors.Is(err, ports.ErrProfileNotFound) {
			return fmt.Errorf("no profile for id %q", *id)
		}
		return fmt.Errorf("set role: %w", err)
	}

	cmdCtx.Logger.Info("role updated", "id", profile.ID, "role", profile.Role)
	return nil
}

func runListMembers(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("list-members", flag.ContinueOnError)
	limit := fs.Int("limit", 50, "maximum number of profiles to print")
	offset := fs.Int("offset", 0, "number of profiles to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	profiles, err := data.NewProfileRepo(db).List(ctx, *limit, *offset)
	if err != nil {
		return fmt.Errorf("list profiles: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(w, "ID\tNAME\tROLL\tDEPT\tROLE\tXP\tJOINED\n"); err != nil {
		return err
	}
	for _, p := range profiles {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.DisplayName, p.RollNumber, p.Department, p.Role, p.XP, util.FormatAge(p.CreatedAt)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func runSeedDev(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("seed-dev", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !cmdCtx.Config.IsDev {
		return errors.New("seed-dev: refusing to seed outside development mode (set DEV=true)")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
		return err
	}
	return devseed.Seed(ctx, db, cmdCtx.Logger)
}

// runWhoami signs in against the configured backend and walks the live
// session context: restore, sign in, wait for the profile fetch, report.
func runWhoami(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	email := fs.String("email", "", "email to sign in with (optional; restores existing session when empty)")
	password := fs.String("password", "", "password for -email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	db, err := connectDB(cmdCtx)
	if err != nil {
		return err
	}
	defer closeDB(db, cmdCtx.Logger)

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := redisClient.Close(); cerr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", cerr)
		}
	}()

	backend := bootstrap.BuildBackend(bootstrap.AuthConfig{
		Auth:        cmdCtx.Config.Auth,
		Backend:     cmdCtx.Config.Backend,
		DB:          db,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	})
	if backend == nil {
		return errors.New("auth backend not configured")
	}

	mgr := service.NewManager(service.ManagerOptions{
		Backend:  backend,
		Resolver: service.NewResolver(data.NewProfileRepo(db), cmdCtx.Logger),
		Policy:   domainauth.NewPolicy(cmdCtx.Config.Auth.AdminEmails),
		Timeout:  cmdCtx.Config.Auth.RequestTimeout,
		Logger:   cmdCtx.Logger,
	})
	defer mgr.Close()

	settled := make(chan service.Snapshot, 8)
	unsubscribe := mgr.Subscribe(func(snap service.Snapshot) {
		select {
		case settled <- snap:
		default:
		}
	})
	defer unsubscribe()

	mgr.Initialize(ctx)

	if *email != "" {
		if _, err := mgr.SignIn(ctx, *email, *password); err != nil {
			return fmt.Errorf("sign in: %w", err)
		}
	}

	snap := waitForSnapshot(ctx, mgr, settled)
	return printSnapshot(snap)
}

// waitForSnapshot waits for the session context to settle: not loading,
// and either signed out or with the profile fetch resolved.
func waitForSnapshot(ctx context.Context, mgr *service.Manager, settled <-chan service.Snapshot) service.Snapshot {
	deadline := time.After(5 * time.Second)
	for {
		snap := mgr.Snapshot()
		if !snap.Loading && (snap.Identity == nil || snap.Profile != nil || snap.Level > domainauth.LevelNone) {
			return snap
		}
		select {
		case <-settled:
		case <-deadline:
			return mgr.Snapshot()
		case <-ctx.Done():
			return mgr.Snapshot()
		}
	}
}

func printSnapshot(snap service.Snapshot) error {
	if snap.Identity == nil {
		return writef(os.Stdout, "not signed in\n")
	}
	if err := writef(os.Stdout, "id:    %s\nemail: %s\nlevel: %s\n",
		snap.Identity.ID, snap.Identity.Email, snap.Level); err != nil {
		return err
	}
	if snap.Profile != nil {
		return writef(os.Stdout, "name:  %s\nrole:  %s\nxp:    %d\n",
			snap.Profile.DisplayName, snap.Profile.Role, snap.Profile.XP)
	}
	return writef(os.Stdout, "profile: none\n")
}

func connectDB(cmdCtx *commandContext) (*sql.DB, error) {
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return db, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("db close failed", "error", err)
	}
}
