package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*S3Store)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate checks the S3 configuration.
func (c S3Config) Validate() error {
	if c.SSEKMSKeyID != "" && !c.SSEEnabled {
		return fmt.Errorf("s3 sse_kms_key_id requires sse_enabled")
	}
	return nil
}

// s3Uploader is the subset of manager.Uploader used by S3Store.
type s3Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Store implements storage.ObjectStore for AWS S3 and S3-compatible
// endpoints. Large objects are uploaded in parts by the transfer manager.
type S3Store struct {
	uploader    s3Uploader
	sseEnabled  bool
	sseKMSKeyID string
	logger      *slog.Logger
	metrics     MetricsCollector
	closed      atomic.Bool
}

// NewS3Store creates a new S3 object store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) (*S3Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, loadOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	logger.Info("S3 store created",
		"region", awsConfig.Region,
		"endpoint", cfg.Endpoint,
		"sse_enabled", cfg.SSEEnabled,
	)

	return newS3Store(uploader, cfg, logger, metrics), nil
}

// loadOptions pins the region only when one is configured so the default
// chain can resolve it otherwise.
func loadOptions(cfg S3Config) []func(*config.LoadOptions) error {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	return opts
}

func newS3Store(uploader s3Uploader, cfg S3Config, logger *slog.Logger, metrics MetricsCollector) *S3Store {
	return &S3Store{
		uploader:    uploader,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
		logger:      logger,
		metrics:     metrics,
	}
}

// PutObject uploads body to s3://bucket/key.
func (s *S3Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) (err error) {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	start := time.Now()
	defer func() {
		recordUpload(s.metrics, s.Name(), size, start, "upload", err)
	}()

	result, err := s.uploader.Upload(ctx, s.putInput(bucket, key, body, size))
	if err != nil {
		return &errors.StorageError{
			Backend:   s.Name(),
			Operation: "upload",
			Bucket:    bucket,
			Key:       key,
			Err:       err,
		}
	}

	s.logger.Debug("wrote object to S3",
		"bucket", bucket,
		"key", key,
		"size", size,
		"location", result.Location,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (s *S3Store) putInput(bucket, key string, body io.Reader, size int64) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(ContentType(key)),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if s.sseEnabled {
		if s.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(s.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	return input
}

// Name returns the backend name.
func (s *S3Store) Name() string {
	return "s3"
}

// Close closes the S3 store.
func (s *S3Store) Close() error {
	s.closed.Store(true)
	s.logger.Info("closing S3 store")
	return nil
}
