// Package main is the entry point for the Base Documentaire admin CLI.
// This tool provides administrative commands for managing users, settings and stored files.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/logging"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository/sqldb"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "version":
		fmt.Printf("Base Documentaire Admin CLI\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)

	case "user":
		err = runUser(ctx, args)

	case "setting":
		err = runSetting(ctx, args)

	case "gc":
		err = runGC(ctx, args)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *database.DB
	repos  *repository.Repositories
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		repos:  sqldb.NewRepositories(db),
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}

// =============================================================================
// user
// =============================================================================

func runUser(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: basedoc-admin user <create|list> [flags]")
	}

	switch args[0] {
	case "create":
		fs := flag.NewFlagSet("user create", flag.ExitOnError)
		configPath := fs.String("config", "", "path to the configuration file")
		username := fs.String("username", "", "login name (required)")
		email := fs.String("email", "", "email address")
		password := fs.String("password", "", "password, at least 8 characters (required)")
		admin := fs.Bool("admin", false, "grant administrator rights")
		fs.Parse(args[1:])

		a, err := openApp(ctx, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		users := service.NewUserService(a.repos.User, nil, a.cfg.Auth.BcryptCost, a.logger)
		user, err := users.Create(ctx, auth.System(), service.CreateUserInput{
			Username: *username,
			Email:    *email,
			Password: *password,
			IsAdmin:  *admin,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created user %q (id %d, admin: %t)\n", user.Username, user.ID, user.IsAdmin)
		return nil

	case "list":
		fs := flag.NewFlagSet("user list", flag.ExitOnError)
		configPath := fs.String("config", "", "path to the configuration file")
		fs.Parse(args[1:])

		a, err := openApp(ctx, *configPath)
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := service.NewUserService(a.repos.User, nil, a.cfg.Auth.BcryptCost, a.logger).List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tADMIN\tLAST LOGIN")
		for _, u := range users {
			email, lastLogin := "-", "never"
			if u.Email != nil {
				email = *u.Email
			}
			if u.LastLoginAt != nil {
				lastLogin = u.LastLoginAt.Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\n", u.ID, u.Username, email, u.IsAdmin, lastLogin)
		}
		return w.Flush()

	default:
		return fmt.Errorf("unknown user command: %s", args[0])
	}
}

// =============================================================================
// setting
// =============================================================================

func runSetting(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: basedoc-admin setting <get|set> [flags] <key> [value]")
	}

	fs := flag.NewFlagSet("setting "+args[0], flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	fs.Parse(args[1:])
	rest := fs.Args()

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	// No cache: the CLI must see and write the stored value.
	settings := service.NewSettingService(a.repos.Setting, nil, 0, a.logger)

	switch args[0] {
	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("usage: basedoc-admin setting get <key>")
		}
		value, err := settings.Get(ctx, rest[0], "")
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil

	case "set":
		if len(rest) != 2 {
			return fmt.Errorf("usage: basedoc-admin setting set <key> <value>")
		}
		if err := settings.Set(ctx, auth.System(), rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Printf("Setting %q updated\n", rest[0])
		return nil

	default:
		return fmt.Errorf("unknown setting command: %s", args[0])
	}
}

// =============================================================================
// gc
// =============================================================================

func runGC(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] != "run" {
		return fmt.Errorf("usage: basedoc-admin gc run [--dry-run] [--grace-period 24h]")
	}

	fs := flag.NewFlagSet("gc run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to the configuration file")
	dryRun := fs.Bool("dry-run", false, "report orphan files without deleting them")
	grace := fs.Duration("grace-period", 0, "minimum orphan age (default from gc.grace_period)")
	fs.Parse(args[1:])

	a, err := openApp(ctx, *configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := filestore.New(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		return err
	}

	gcConfig := service.GCConfig{
		GracePeriod: a.cfg.GC.GracePeriod,
		DryRun:      a.cfg.GC.DryRun || *dryRun,
	}
	if *grace > 0 {
		gcConfig.GracePeriod = *grace
	}

	result, err := service.NewGarbageCollector(a.repos.Document, store, nil, a.logger, gcConfig).RunOnce(ctx)
	if err != nil {
		return err
	}

	verb := "Deleted"
	if gcConfig.DryRun {
		verb = "Would delete"
	}
	fmt.Printf("Scanned %d files, %d orphans. %s %d files (%d bytes), %d errors in %s\n",
		result.Scanned, result.Orphans, verb, result.FilesDeleted, result.BytesFreed, result.Errors, result.Duration)
	return nil
}

func printUsage() {
	fmt.Println(`Base Documentaire Admin CLI

Usage:
  basedoc-admin <command> [arguments]

Commands:
  user        Manage users (create, list)
  setting     Read or change a setting (get, set)
  gc          Remove stored files no document references
  version     Print version information
  help        Show this help message

Every command accepts --config <path>; BASEDOC_* environment variables and a .env
file are read as well.

Examples:
  basedoc-admin user create --username admin --password 'change-me-now' --admin
  basedoc-admin user list
  basedoc-admin setting set announcement "Fermeture le 1er mai"
  basedoc-admin gc run --dry-run`)
}
