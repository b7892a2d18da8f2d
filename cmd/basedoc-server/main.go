// Package main is the entry point for the Base Documentaire web server.
// It serves the public catalog, the login pages and the administration area.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/cache/memory"
	rediscache "github.com/ErnestDikoum/basedocumentaire/internal/cache/redis"
	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/database"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/handler"
	"github.com/ErnestDikoum/basedocumentaire/internal/logging"
	"github.com/ErnestDikoum/basedocumentaire/internal/metrics"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository/sqldb"
	"github.com/ErnestDikoum/basedocumentaire/internal/service"
	"github.com/ErnestDikoum/basedocumentaire/internal/session"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// settingCacheTTL bounds how stale a cached setting may be on another instance.
const settingCacheTTL = 5 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("server stopped with an error")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Msg("starting Base Documentaire server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Database, logger); err != nil {
			return err
		}
	}
	db, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Blob storage
	store, err := filestore.New(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}

	// Sessions and the settings cache share one Redis client when enabled.
	var (
		sessions session.Store
		cache    repository.Cache
	)
	switch cfg.Session.Backend {
	case "redis":
		client, err := session.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeRedis(client, logger)
		sessions = session.NewRedisStore(client, cfg.Session.TTL)
		cache = rediscache.NewCache(client)
	default:
		sessions = session.NewMemoryStore(cfg.Session.TTL)
		cache = memory.NewCache()
	}
	logger.Info().Str("backend", cfg.Session.Backend).Msg("session store ready")

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err = metrics.New(reg)
		if err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// Services
	repos := sqldb.NewRepositories(db)
	settings := service.NewSettingService(repos.Setting, cache, settingCacheTTL, logger)
	catalog := service.NewCatalogService(repos, store, settings, m, logger, service.CatalogConfig{
		DefaultPageSize: cfg.Catalog.DefaultPageSize,
		MaxPageSize:     cfg.Catalog.MaxPageSize,
		RecentWindow:    cfg.Catalog.RecentWindow,
		TopViewedLimit:  cfg.Catalog.TopViewedLimit,
		LatestLimit:     cfg.Catalog.LatestLimit,
		HomeLatestLimit: cfg.Catalog.HomeLatestLimit,
		RelatedLimit:    cfg.Catalog.RelatedLimit,
	})
	users := service.NewUserService(repos.User, sessions, cfg.Auth.BcryptCost, logger)
	sessionService := service.NewSessionService(users, sessions, logger)

	if cfg.Auth.InitialAdminUsername != "" {
		if _, err := users.EnsureInitialAdmin(ctx,
			cfg.Auth.InitialAdminUsername,
			cfg.Auth.InitialAdminEmail,
			cfg.Auth.InitialAdminPassword,
		); err != nil {
			return err
		}
	}

	// HTTP
	h, err := handler.New(handler.Config{
		Catalog:  catalog,
		Settings: settings,
		Users:    users,
		Sessions: sessionService,
		Auth: auth.Config{
			CookieName: cfg.Session.CookieName,
			LoginPath:  "/auth/login",
		},
		CookieSecure: cfg.Session.CookieSecure,
		SessionTTL:   cfg.Session.TTL,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	router := handler.NewRouter(handler.RouterConfig{
		Handler:      h,
		Metrics:      m,
		MetricsPath:  cfg.Metrics.Path,
		MaxBodyBytes: cfg.Server.MaxBodyBytes(),
		Health:       db,
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}

func closeRedis(client *goredis.Client, logger zerolog.Logger) {
	if err := client.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close redis client")
	}
}
