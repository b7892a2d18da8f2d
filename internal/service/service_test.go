package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/cache/memory"
	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository/sqldb"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

// testEnv wires services over a temporary SQLite database and upload directory.
type testEnv struct {
	repos    *repository.Repositories
	store    *filestore.FilesystemStore
	settings *SettingService
	catalog  *CatalogService
	users    *UserService
	sessions *session.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	logger := zerolog.Nop()

	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "test.db")}
	require.NoError(t, database.Migrate(ctx, cfg, logger))
	db, err := database.Open(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := filestore.NewFilesystemStore(filepath.Join(dir, "uploads"), []string{".pdf", ".doc", ".docx"}, logger)
	require.NoError(t, err)

	repos := sqldb.NewRepositories(db)
	settings := NewSettingService(repos.Setting, memory.NewCache(), time.Minute, logger)
	sessions := session.NewMemoryStore(time.Hour)

	return &testEnv{
		repos:    repos,
		store:    store,
		settings: settings,
		catalog:  NewCatalogService(repos, store, settings, nil, logger, DefaultCatalogConfig()),
		users:    NewUserService(repos.User, sessions, bcrypt.MinCost, logger),
		sessions: sessions,
	}
}

func adminPrincipal() auth.Principal {
	id := int64(1)
	return auth.Principal{UserID: &id, Username: "admin", IsAdmin: true}
}

func readerPrincipal() auth.Principal {
	id := int64(2)
	return auth.Principal{UserID: &id, Username: "reader"}
}

// blobExists reports whether the store holds name.
func (e *testEnv) blobExists(t *testing.T, name string) bool {
	t.Helper()
	size, err := e.store.SizeOf(context.Background(), name)
	require.NoError(t, err)
	return size != nil
}
