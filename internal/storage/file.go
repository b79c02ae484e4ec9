package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*FileStore)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileStore implements storage.ObjectStore on the local filesystem.
// Buckets are directories under the base path and keys are relative paths
// inside them. Objects are written to a temporary file and renamed into
// place so readers never observe partial objects.
type FileStore struct {
	basePath string
	logger   *slog.Logger
	metrics  MetricsCollector
	closed   atomic.Bool
}

// NewFileStore creates a new filesystem object store.
func NewFileStore(config FileConfig, logger *slog.Logger, metrics MetricsCollector) (*FileStore, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("file base path is required")
	}

	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("filesystem store created", "base_path", config.BasePath)

	return &FileStore{
		basePath: config.BasePath,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// PutObject writes body to <base>/<bucket>/<key>.
func (s *FileStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) (err error) {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	start := time.Now()
	operation := "upload"
	defer func() {
		recordUpload(s.metrics, s.Name(), size, start, operation, err)
	}()

	if err := ctx.Err(); err != nil {
		return s.storageError(operation, bucket, key, err)
	}

	fullPath, err := s.objectPath(bucket, key)
	if err != nil {
		operation = "path"
		return s.storageError(operation, bucket, key, err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		operation = "mkdir"
		return s.storageError(operation, bucket, key, err)
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return s.storageError(operation, bucket, key, err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return s.storageError(operation, bucket, key, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		operation = "close"
		return s.storageError(operation, bucket, key, err)
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		os.Remove(tmpName)
		return s.storageError(operation, bucket, key, err)
	}

	s.logger.Debug("wrote object to filesystem",
		"path", fullPath,
		"size", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// objectPath resolves bucket and key below the base path.
func (s *FileStore) objectPath(bucket, key string) (string, error) {
	root := filepath.Join(s.basePath, bucket)
	full := filepath.Join(root, filepath.FromSlash(key))

	if full == root || !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes bucket %q", key, bucket)
	}
	return full, nil
}

func (s *FileStore) storageError(operation, bucket, key string, err error) error {
	return &errors.StorageError{
		Backend:   s.Name(),
		Operation: operation,
		Bucket:    bucket,
		Key:       key,
		Err:       err,
	}
}

// Name returns the backend name.
func (s *FileStore) Name() string {
	return "file"
}

// Close closes the store.
func (s *FileStore) Close() error {
	s.closed.Store(true)
	s.logger.Info("closing filesystem store")
	return nil
}
