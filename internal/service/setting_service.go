package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/auth"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// Cached setting values carry a one-byte marker so an absent setting can be
// cached too.
const (
	settingPresent byte = '1'
	settingAbsent  byte = '0'
)

// SettingService reads and writes dynamic settings such as the announcement
// banner. Reads go through a cache because the banner is shown on every page.
type SettingService struct {
	repo     repository.SettingRepository
	cache    repository.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewSettingService creates a new SettingService. cache may be nil.
func NewSettingService(repo repository.SettingRepository, cache repository.Cache, cacheTTL time.Duration, logger zerolog.Logger) *SettingService {
	return &SettingService{
		repo:     repo,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("service", "setting").Logger(),
	}
}

// Get returns the value of key, or def when it is not set.
func (s *SettingService) Get(ctx context.Context, key, def string) (string, error) {
	cacheKey := repository.CacheKey{}.Setting(key)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey); err == nil && len(raw) > 0 {
			if raw[0] == settingAbsent {
				return def, nil
			}
			return string(raw[1:]), nil
		}
	}

	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.remember(ctx, cacheKey, []byte{settingAbsent})
			return def, nil
		}
		s.logger.Error().Err(err).Str("key", key).Msg("failed to get setting")
		return "", domain.StorageError(err, "failed to get setting")
	}

	s.remember(ctx, cacheKey, append([]byte{settingPresent}, setting.Value...))
	return setting.Value, nil
}

// Set stores a setting value. Only administrators may change settings.
func (s *SettingService) Set(ctx context.Context, p auth.Principal, key, value string) error {
	if err := auth.RequireAdmin(p); err != nil {
		return err
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return domain.NewDomainError(domain.ErrInvalidInput, "setting key is required", "")
	}

	setting := &domain.Setting{
		Key:        key,
		Value:      strings.TrimSpace(value),
		ModifiedAt: time.Now().UTC(),
	}
	if err := s.repo.Upsert(ctx, setting); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("failed to save setting")
		return domain.StorageError(err, "failed to save setting")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, repository.CacheKey{}.Setting(key)); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("failed to invalidate cached setting")
		}
	}

	s.logger.Info().Str("key", key).Str("by", p.Username).Msg("setting updated")
	return nil
}

// List returns every stored setting.
func (s *SettingService) List(ctx context.Context) ([]domain.Setting, error) {
	settings, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.StorageError(err, "failed to list settings")
	}
	return settings, nil
}

// Announcement returns the banner message, or "" when unset or unreadable.
func (s *SettingService) Announcement(ctx context.Context) string {
	msg, err := s.Get(ctx, domain.SettingAnnouncement, "")
	if err != nil {
		return ""
	}
	return msg
}

// SetAnnouncement replaces the banner message. An empty message hides it.
func (s *SettingService) SetAnnouncement(ctx context.Context, p auth.Principal, message string) error {
	return s.Set(ctx, p, domain.SettingAnnouncement, message)
}

// Invalidate drops every cached setting.
func (s *SettingService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Flush(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to flush setting cache")
	}
}

func (s *SettingService) remember(ctx context.Context, key string, value []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache setting")
	}
}
