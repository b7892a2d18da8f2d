package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
	"github.com/ErnestDikoum/basedocumentaire/internal/filestore"
	"github.com/ErnestDikoum/basedocumentaire/internal/metrics"
	"github.com/ErnestDikoum/basedocumentaire/internal/repository"
)

// GarbageCollector removes stored files that no document references. Such
// files are left behind when a process dies between writing a file and
// committing its row. It only runs when invoked.
type GarbageCollector struct {
	docRepo repository.DocumentRepository
	store   filestore.Store
	metrics *metrics.Metrics
	logger  zerolog.Logger
	config  GCConfig
	now     func() time.Time
}

// GCConfig contains garbage collection configuration.
type GCConfig struct {
	// GracePeriod is how long to wait before deleting orphan files.
	// This keeps uploads in flight safe.
	GracePeriod time.Duration

	// DryRun logs what would be deleted without actually deleting.
	DryRun bool
}

// DefaultGCConfig returns sensible defaults.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		GracePeriod: 24 * time.Hour,
		DryRun:      false,
	}
}

// NewGarbageCollector creates a new garbage collector.
func NewGarbageCollector(
	docRepo repository.DocumentRepository,
	store filestore.Store,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config GCConfig,
) *GarbageCollector {
	return &GarbageCollector{
		docRepo: docRepo,
		store:   store,
		metrics: m,
		logger:  logger.With().Str("service", "gc").Logger(),
		config:  config,
		now:     time.Now,
	}
}

// GCResult contains the result of a garbage collection run.
type GCResult struct {
	// Scanned is the number of stored files examined.
	Scanned int

	// Orphans is the number of unreferenced files past the grace period.
	Orphans int

	// FilesDeleted is the number of files deleted (or that would be, in a dry run).
	FilesDeleted int

	// BytesFreed is the total size of deleted files.
	BytesFreed int64

	// Errors is the number of deletions that failed.
	Errors int

	// Duration is how long the run took.
	Duration time.Duration
}

// RunOnce executes a single garbage collection run.
func (gc *GarbageCollector) RunOnce(ctx context.Context) (GCResult, error) {
	start := time.Now()
	result := GCResult{}

	gc.logger.Debug().Msg("starting garbage collection run")

	// Files are listed before references so a file written after the
	// reference snapshot is never mistaken for an orphan.
	blobs, err := gc.store.List(ctx)
	if err != nil {
		gc.logger.Error().Err(err).Msg("failed to list stored files")
		return result, domain.StorageError(err, "failed to list stored files")
	}

	referenced, err := gc.docRepo.StoredFilenames(ctx)
	if err != nil {
		gc.logger.Error().Err(err).Msg("failed to list referenced files")
		return result, domain.StorageError(err, "failed to list referenced files")
	}

	cutoff := gc.now().Add(-gc.config.GracePeriod)

	for _, blob := range blobs {
		result.Scanned++

		if _, ok := referenced[blob.Name]; ok {
			continue
		}
		if blob.ModTime.After(cutoff) {
			continue
		}
		result.Orphans++

		if gc.config.DryRun {
			gc.logger.Info().
				Str("stored_filename", blob.Name).
				Int64("size", blob.Size).
				Msg("[DRY RUN] would delete orphan file")
			result.FilesDeleted++
			result.BytesFreed += blob.Size
			continue
		}

		if _, err := gc.store.Delete(ctx, blob.Name); err != nil {
			gc.logger.Error().
				Err(err).
				Str("stored_filename", blob.Name).
				Msg("failed to delete orphan file")
			gc.metrics.BlobCleanupFailed()
			result.Errors++
			continue
		}

		gc.logger.Debug().
			Str("stored_filename", blob.Name).
			Int64("size", blob.Size).
			Msg("deleted orphan file")

		result.FilesDeleted++
		result.BytesFreed += blob.Size
	}

	result.Duration = time.Since(start)

	gc.logger.Info().
		Int("scanned", result.Scanned).
		Int("orphans", result.Orphans).
		Int("files_deleted", result.FilesDeleted).
		Int64("bytes_freed", result.BytesFreed).
		Int("errors", result.Errors).
		Bool("dry_run", gc.config.DryRun).
		Dur("duration", result.Duration).
		Msg("garbage collection run completed")

	return result, nil
}
