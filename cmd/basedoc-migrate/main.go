// Package main is the entry point for the Base Documentaire database migration tool.
// This tool manages SQLite and PostgreSQL schema migrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	_ "github.com/joho/godotenv/autoload"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/logging"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)

	switch command {
	case "version":
		fmt.Printf("Base Documentaire Migration Tool\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		if err := withMigrator(*configPath, func(mg *database.Migrator) error {
			version, dirty, err := mg.Version()
			if err != nil {
				return err
			}
			fmt.Printf("Schema Version: %d (dirty: %t)\n", version, dirty)
			return nil
		}); err != nil {
			fail(err)
		}

	case "up":
		if err := withMigrator(*configPath, (*database.Migrator).Up); err != nil {
			fail(err)
		}
		fmt.Println("Migrations applied")

	case "down":
		if err := withMigrator(*configPath, (*database.Migrator).Down); err != nil {
			fail(err)
		}
		fmt.Println("Migrations rolled back")

	case "force":
		if flag.NArg() < 2 {
			fail(fmt.Errorf("force requires a version number"))
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			fail(fmt.Errorf("invalid version %q: %w", flag.Arg(1), err))
		}
		if err := withMigrator(*configPath, func(mg *database.Migrator) error {
			return mg.Force(version)
		}); err != nil {
			fail(err)
		}
		fmt.Printf("Schema version forced to %d\n", version)

	case "help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func withMigrator(configPath string, fn func(*database.Migrator) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	mg, err := database.NewMigrator(context.Background(), cfg.Database, logger)
	if err != nil {
		return err
	}
	defer mg.Close()

	return fn(mg)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println(`Base Documentaire Migration Tool

Usage:
  basedoc-migrate [--config path] <command> [arguments]

Commands:
  up          Run all pending migrations
  down        Roll back every migration
  version     Print tool and schema versions
  force N     Set the schema version to N without running migrations
  help        Show this help message`)
}
