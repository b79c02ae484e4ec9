package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*GCSStore)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// Validate checks the GCS configuration.
func (c GCSConfig) Validate() error {
	if c.CredentialsFile != "" && c.CredentialsJSON != "" {
		return fmt.Errorf("gcs credentials_file and credentials_json are mutually exclusive")
	}
	return nil
}

// clientOptions returns the client options for the configured credentials.
func (c GCSConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}

	return opts
}

// objectWriterFunc opens a writer for a new object.
type objectWriterFunc func(ctx context.Context, bucket, key string) io.WriteCloser

// GCSStore implements storage.ObjectStore for Google Cloud Storage.
type GCSStore struct {
	client    *gcs.Client
	newWriter objectWriterFunc
	logger    *slog.Logger
	metrics   MetricsCollector
	closed    atomic.Bool
}

// NewGCSStore creates a new Google Cloud Storage object store.
func NewGCSStore(ctx context.Context, cfg GCSConfig, logger *slog.Logger, metrics MetricsCollector) (*GCSStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := gcs.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	logger.Info("GCS store created",
		"project_id", cfg.ProjectID,
		"endpoint", cfg.Endpoint,
	)

	store := newGCSStore(func(ctx context.Context, bucket, key string) io.WriteCloser {
		w := client.Bucket(bucket).Object(key).NewWriter(ctx)
		w.ContentType = ContentType(key)
		return w
	}, logger, metrics)
	store.client = client

	return store, nil
}

func newGCSStore(newWriter objectWriterFunc, logger *slog.Logger, metrics MetricsCollector) *GCSStore {
	return &GCSStore{
		newWriter: newWriter,
		logger:    logger,
		metrics:   metrics,
	}
}

// PutObject uploads body to gs://bucket/key.
func (s *GCSStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) (err error) {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	start := time.Now()
	operation := "upload"
	defer func() {
		recordUpload(s.metrics, s.Name(), size, start, operation, err)
	}()

	// Cancelling the writer context aborts the upload.
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.newWriter(writeCtx, bucket, key)

	written, err := io.Copy(w, body)
	if err != nil {
		cancel()
		w.Close()
		return s.storageError(operation, bucket, key, err)
	}

	if err := w.Close(); err != nil {
		operation = "close"
		return s.storageError(operation, bucket, key, err)
	}

	s.logger.Debug("wrote object to GCS",
		"bucket", bucket,
		"object", key,
		"bytes_written", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

func (s *GCSStore) storageError(operation, bucket, key string, err error) error {
	return &errors.StorageError{
		Backend:   s.Name(),
		Operation: operation,
		Bucket:    bucket,
		Key:       key,
		Err:       err,
	}
}

// Name returns the backend name.
func (s *GCSStore) Name() string {
	return "gcs"
}

// Close closes the GCS store.
func (s *GCSStore) Close() error {
	s.closed.Store(true)
	s.logger.Info("closing GCS store")
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
