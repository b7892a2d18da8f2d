package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/migrations"
)

// Migrator applies the embedded schema migrations.
// It owns its own connection because closing a golang-migrate instance closes
// the database handle it was given.
type Migrator struct {
	m      *migrate.Migrate
	logger zerolog.Logger
}

// NewMigrator opens a dedicated connection for cfg and prepares the migration source
// for its dialect.
func NewMigrator(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (*Migrator, error) {
	var (
		conn *sql.DB
		err  error
	)
	switch cfg.Driver {
	case "sqlite":
		conn, err = openSQLite(cfg)
	case "postgres":
		conn, err = openPostgres(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return newMigrator(conn, Dialect(cfg.Driver), logger)
}

// NewMigratorForSQLite prepares migrations for the SQLite file at path.
func NewMigratorForSQLite(path string, logger zerolog.Logger) (*Migrator, error) {
	conn, err := openSQLite(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		return nil, err
	}
	return newMigrator(conn, DialectSQLite, logger)
}

func newMigrator(conn *sql.DB, dialect Dialect, logger zerolog.Logger) (*Migrator, error) {
	var (
		driver migratedb.Driver
		err    error
	)
	switch dialect {
	case DialectSQLite:
		driver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	case DialectPostgres:
		driver, err = migratepgx.WithInstance(conn, &migratepgx.Config{})
	}
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	return &Migrator{
		m:      m,
		logger: logger.With().Str("component", "migrate").Logger(),
	}, nil
}

// Up applies all pending migrations.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.logger.Debug().Msg("schema is up to date")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, _, _ := mg.m.Version()
	mg.logger.Info().Uint("version", version).Msg("applied migrations")
	return nil
}

// Down rolls back every migration.
func (mg *Migrator) Down() error {
	if err := mg.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	mg.logger.Info().Msg("rolled back migrations")
	return nil
}

// Version returns the applied version and whether the schema is dirty.
// A database with no migrations reports version 0.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Force sets the recorded version without running migrations.
func (mg *Migrator) Force(version int) error {
	return mg.m.Force(version)
}

// Close releases the source and the dedicated connection.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Migrate applies pending migrations for cfg and closes the migrator.
func Migrate(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) error {
	mg, err := NewMigrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up()
}
