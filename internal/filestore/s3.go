package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

// S3API is the subset of the S3 client used by S3Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps blobs as objects in an S3 bucket, optionally under a key prefix.
type S3Store struct {
	client  S3API
	bucket  string
	prefix  string
	allowed allowList
	logger  zerolog.Logger
}

// NewS3Client builds an S3 client from configuration. Static credentials are
// used when both keys are set; otherwise the default AWS credential chain applies.
func NewS3Client(ctx context.Context, cfg config.S3StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Store returns a store over client.
func NewS3Store(client S3API, bucket, prefix string, allowedExtensions []string, logger zerolog.Logger) *S3Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	logger.Info().Str("bucket", bucket).Str("prefix", prefix).Strs("allowed_extensions", allowedExtensions).Msg("s3 store ready")

	return &S3Store{
		client:  client,
		bucket:  bucket,
		prefix:  prefix,
		allowed: newAllowList(allowedExtensions),
		logger:  logger.With().Str("component", "filestore").Logger(),
	}
}

// Allowed reports whether originalName has an accepted extension.
func (s *S3Store) Allowed(originalName string) bool {
	return s.allowed.allowed(originalName)
}

// Put uploads r under a free name derived from originalName.
// The body is spooled to a temporary file so it can be replayed when a
// conditional write loses a race for a name.
func (s *S3Store) Put(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if !s.Allowed(originalName) {
		return "", domain.NewDomainError(domain.ErrRejectedFileType, "extension not allowed", originalName)
	}

	spool, err := os.CreateTemp("", "basedoc-upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}
	defer func() {
		spool.Close()
		_ = os.Remove(spool.Name())
	}()

	size, err := io.Copy(spool, r)
	if err != nil {
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}

	base, ext := SplitName(SanitizeFilename(originalName))

	for n := 0; n < maxCollisionAttempts; n++ {
		name := candidateName(base, ext, n)

		exists, err := s.exists(ctx, name)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}

		if _, err := spool.Seek(0, io.SeekStart); err != nil {
			return "", fmt.Errorf("failed to rewind spool file: %w", err)
		}

		_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(s.key(name)),
			Body:          spool,
			ContentLength: aws.Int64(size),
			IfNoneMatch:   aws.String("*"),
		})
		if err != nil {
			if isConditionFailed(err) {
				continue
			}
			return "", fmt.Errorf("failed to upload object: %w", err)
		}

		s.logger.Debug().Str("original", originalName).Str("stored", name).Int64("size", size).Msg("blob stored")
		return name, nil
	}

	return "", fmt.Errorf("no free name for %q after %d attempts", originalName, maxCollisionAttempts)
}

// Open downloads a stored blob.
func (s *S3Store) Open(ctx context.Context, storedName string) (io.ReadCloser, error) {
	if !validStoredName(storedName) {
		return nil, domain.ErrBlobNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storedName)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to get object: %w", err)
	}

	return out.Body, nil
}

// Delete removes a stored blob. S3 deletes are idempotent, so existence is
// checked first to report whether anything was removed.
func (s *S3Store) Delete(ctx context.Context, storedName string) (bool, error) {
	if !validStoredName(storedName) {
		return false, nil
	}

	exists, err := s.exists(ctx, storedName)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storedName)),
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete object: %w", err)
	}

	return true, nil
}

// SizeOf returns the object size, or nil if it is missing.
func (s *S3Store) SizeOf(ctx context.Context, storedName string) (*int64, error) {
	if !validStoredName(storedName) {
		return nil, nil
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(storedName)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to head object: %w", err)
	}

	return out.ContentLength, nil
}

// List returns every object under the prefix.
func (s *S3Store) List(ctx context.Context) ([]BlobInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})

	var blobs []BlobInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if !validStoredName(name) {
				continue
			}
			blobs = append(blobs, BlobInfo{
				Name:    name,
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}

	return blobs, nil
}

func (s *S3Store) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object: %w", err)
	}
	return true, nil
}

func (s *S3Store) key(name string) string {
	return s.prefix + name
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// isConditionFailed reports a lost IfNoneMatch race.
func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

// Ensure S3Store implements Store.
var _ Store = (*S3Store)(nil)
