package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// FilesystemStore keeps blobs as plain files in one directory.
type FilesystemStore struct {
	dir     string
	allowed allowList
	logger  zerolog.Logger
}

// NewFilesystemStore creates the directory if needed and returns a store rooted there.
func NewFilesystemStore(dir string, allowedExtensions []string, logger zerolog.Logger) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload directory: %w", err)
	}

	logger.Info().Str("dir", abs).Strs("allowed_extensions", allowedExtensions).Msg("filesystem store ready")

	return &FilesystemStore{
		dir:     abs,
		allowed: newAllowList(allowedExtensions),
		logger:  logger.With().Str("component", "filestore").Logger(),
	}, nil
}

// Allowed reports whether originalName has an accepted extension.
func (s *FilesystemStore) Allowed(originalName string) bool {
	return s.allowed.allowed(originalName)
}

// Put writes r under a free name derived from originalName.
// The final create is exclusive, so two concurrent uploads of the same name
// end up under different suffixes.
func (s *FilesystemStore) Put(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if !s.Allowed(originalName) {
		return "", domain.NewDomainError(domain.ErrRejectedFileType, "extension not allowed", originalName)
	}

	base, ext := SplitName(SanitizeFilename(originalName))

	for n := 0; n < maxCollisionAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		name := candidateName(base, ext, n)
		f, err := os.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return "", fmt.Errorf("failed to create file: %w", err)
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("failed to write file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(f.Name())
			return "", fmt.Errorf("failed to close file: %w", err)
		}

		s.logger.Debug().Str("original", originalName).Str("stored", name).Msg("blob stored")
		return name, nil
	}

	return "", fmt.Errorf("no free name for %q after %d attempts", originalName, maxCollisionAttempts)
}

// Open opens a stored blob for reading.
func (s *FilesystemStore) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	if !validStoredName(storedName) {
		return nil, domain.ErrBlobNotFound
	}

	f, err := os.Open(s.path(storedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, domain.ErrBlobNotFound
	}

	return f, nil
}

// Delete removes a stored blob.
func (s *FilesystemStore) Delete(ctx context.Context, storedName string) (bool, error) {
	if !validStoredName(storedName) {
		return false, nil
	}

	if err := os.Remove(s.path(storedName)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete file: %w", err)
	}

	return true, nil
}

// SizeOf returns the size of a stored blob, or nil if it is missing.
func (s *FilesystemStore) SizeOf(ctx context.Context, storedName string) (*int64, error) {
	if !validStoredName(storedName) {
		return nil, nil
	}

	info, err := os.Stat(s.path(storedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	size := info.Size()
	return &size, nil
}

// List returns every regular file in the store directory.
func (s *FilesystemStore) List(ctx context.Context) ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	blobs := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed since ReadDir.
			continue
		}
		blobs = append(blobs, BlobInfo{
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return blobs, nil
}

// Dir returns the absolute store directory.
func (s *FilesystemStore) Dir() string {
	return s.dir
}

func (s *FilesystemStore) path(storedName string) string {
	return filepath.Join(s.dir, storedName)
}

// Ensure FilesystemStore implements Store.
var _ Store = (*FilesystemStore)(nil)
