package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, int64(100*1000*1000), cfg.Server.MaxBodyBytes())
	assert.Equal(t, []string{".pdf", ".doc", ".docx"}, cfg.Storage.AllowedExtensions)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 10, cfg.Catalog.DefaultPageSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Catalog.RecentWindow)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	t.Setenv("BASEDOC_SERVER_PORT", "9090")
	t.Setenv("BASEDOC_SERVER_MAX_BODY_SIZE", "2MB")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(2*1000*1000), cfg.Server.MaxBodyBytes())
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
}

func TestLoad_NormalizesExtensions(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  allowed_extensions: [\"PDF\", \" .Odt \"]\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{".pdf", ".odt"}, cfg.Storage.AllowedExtensions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "bad port", content: "server:\n  port: 70000\n", wantErr: "server.port"},
		{name: "bad body size", content: "server:\n  max_body_size: lots\n", wantErr: "max_body_size"},
		{name: "bad driver", content: "database:\n  driver: mysql\n", wantErr: "database.driver"},
		{name: "s3 without bucket", content: "storage:\n  backend: s3\n", wantErr: "storage.s3.bucket"},
		{name: "bad session backend", content: "session:\n  backend: cookie\n", wantErr: "session.backend"},
		{name: "short admin password", content: "auth:\n  initial_admin_username: admin\n  initial_admin_password: short\n", wantErr: "initial_admin_password"},
		{name: "bad level", content: "logging:\n  level: loud\n", wantErr: "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_URL(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "/tmp/app.db"}
	assert.Equal(t, "sqlite:///tmp/app.db", sqlite.URL())
	assert.True(t, sqlite.IsEmbedded())

	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Database: "docs", SSLMode: "disable"}
	assert.Equal(t, "pgx5://u:p@db:5432/docs?sslmode=disable", pg.URL())
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=docs sslmode=disable", pg.DSN())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
