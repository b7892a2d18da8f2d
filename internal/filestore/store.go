// Package filestore keeps uploaded files under collision-free stored names.
// Implementations can include a local directory or an S3 bucket; both share
// the naming contract defined here.
package filestore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
)

// Store defines the interface for blob storage backends.
type Store interface {
	// Allowed reports whether the extension of originalName is in the allow-list.
	Allowed(originalName string) bool

	// Put sanitizes originalName, resolves collisions with a numeric suffix and
	// writes the content.
	//
	// Returns:
	//   - storedName: the name the blob is kept under, unique in the store
	//   - err: domain.ErrRejectedFileType for a disallowed extension, or a write error
	Put(ctx context.Context, originalName string, r io.Reader) (storedName string, err error)

	// Open returns the content of a stored blob. The caller must close it.
	// Returns domain.ErrBlobNotFound if the blob doesn't exist.
	Open(ctx context.Context, storedName string) (io.ReadCloser, error)

	// Delete removes a stored blob. Deleting a missing blob returns (false, nil).
	Delete(ctx context.Context, storedName string) (bool, error)

	// SizeOf returns the size of a stored blob, or nil when it is missing.
	SizeOf(ctx context.Context, storedName string) (*int64, error)

	// List returns every stored blob.
	List(ctx context.Context) ([]BlobInfo, error)
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// New builds the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Store, error) {
	switch cfg.Backend {
	case "filesystem", "":
		return NewFilesystemStore(cfg.DataDir, cfg.AllowedExtensions, logger)
	case "s3":
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.AllowedExtensions, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// maxCollisionAttempts bounds the suffix search for a free name.
const maxCollisionAttempts = 10000

// allowList holds lower-cased extensions, dot included.
type allowList map[string]struct{}

func newAllowList(extensions []string) allowList {
	list := make(allowList, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		list[ext] = struct{}{}
	}
	return list
}

func (l allowList) allowed(originalName string) bool {
	_, ext := SplitName(SanitizeFilename(originalName))
	if ext == "" {
		return false
	}
	_, ok := l[ext]
	return ok
}
