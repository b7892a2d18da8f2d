package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
)

func newMockDB(t *testing.T, dialect Dialect) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return New(sqlDB, dialect, zerolog.Nop()), mock
}

func TestWithTx_Commit(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO categories").WithArgs("Irrigation").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		_, err := db.ExecContext(ctx, "INSERT INTO categories (name) VALUES (?)", "Irrigation")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM documents").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectRollback()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		if _, err := db.ExecContext(ctx, "DELETE FROM documents WHERE category_id = ?", 1); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithTx(context.Background(), func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t, DialectSQLite)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTx(context.Background(), func(ctx context.Context) error {
		return db.WithTx(ctx, func(ctx context.Context) error {
			_, err := db.ExecContext(ctx, "UPDATE documents SET view_count = view_count + 1 WHERE id = ?", 7)
			return err
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitFailure(t *testing.T) {
	db, mock := newMockDB(t, DialectPostgres)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := db.WithTx(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
}

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres, zerolog.Nop())
	lite := New(nil, DialectSQLite, zerolog.Nop())

	query := "SELECT id FROM documents WHERE title = ? AND description <> '?' AND category_id = ?"
	assert.Equal(t, "SELECT id FROM documents WHERE title = $1 AND description <> '?' AND category_id = $2", pg.Rebind(query))
	assert.Equal(t, query, lite.Rebind(query))
}

func TestErrorClassification(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: categories.name (2067)")))
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestTimeFormat(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.FixedZone("CET", 3600))
	s := FormatTime(ts)
	assert.Equal(t, "2024-05-06T06:08:09.123456Z", s)

	parsed, err := ParseTime(s)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))

	// Fixed width keeps lexical and chronological order aligned.
	assert.Less(t, FormatTime(time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)), FormatTime(time.Date(2024, 5, 6, 0, 0, 0, 1000, time.UTC)))
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	ctx := context.Background()
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "nested", "basedoc.db")}

	require.NoError(t, Migrate(ctx, cfg, zerolog.Nop()))
	// A second run is a no-op.
	require.NoError(t, Migrate(ctx, cfg, zerolog.Nop()))

	db, err := Open(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count))
	assert.Equal(t, 0, count)

	mg, err := NewMigratorForSQLite(cfg.Path, zerolog.Nop())
	require.NoError(t, err)
	defer mg.Close()
	version, dirty, err := mg.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestLower(t *testing.T) {
	sqliteDB, _ := newMockDB(t, DialectSQLite)
	assert.Equal(t, "unicode_lower(d.title)", sqliteDB.Lower("d.title"))

	pgDB, _ := newMockDB(t, DialectPostgres)
	assert.Equal(t, "LOWER(CAST(? AS TEXT))", pgDB.Lower("?"))
}

func TestSQLiteUnicodeLower(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "fold.db")}, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	var folded string
	require.NoError(t, db.QueryRowContext(ctx, "SELECT "+db.Lower("?"), "ÉCOLE Primaire").Scan(&folded))
	assert.Equal(t, "école primaire", folded)

	var matched int
	require.NoError(t, db.QueryRowContext(ctx,
		"SELECT COUNT(*) WHERE "+db.Lower("?")+" LIKE "+db.Lower("?"), "Récolte d'été", "%RÉCOLTE%").Scan(&matched))
	assert.Equal(t, 1, matched)

	assert.Equal(t, "école", FoldCase("E\u0301cole"))
}
