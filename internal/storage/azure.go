package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.ObjectStore = (*AzureStore)(nil)

// AzureConfig contains Azure Blob Storage configuration.
// The bucket passed to PutObject is used as the container name.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Endpoint    string
}

// Validate checks the Azure configuration.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account_name is required")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("azure account_key is required")
	}
	return nil
}

// ConnectionString builds the storage account connection string.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// blobUploader is the subset of azblob.Client used by AzureStore.
type blobUploader interface {
	UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// AzureStore implements storage.ObjectStore for Azure Blob Storage.
type AzureStore struct {
	client  blobUploader
	logger  *slog.Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// NewAzureStore creates a new Azure Blob object store.
func NewAzureStore(cfg AzureConfig, logger *slog.Logger, metrics MetricsCollector) (*AzureStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	logger.Info("Azure store created",
		"account", cfg.AccountName,
		"endpoint", cfg.Endpoint,
	)

	return newAzureStore(client, logger, metrics), nil
}

func newAzureStore(client blobUploader, logger *slog.Logger, metrics MetricsCollector) *AzureStore {
	return &AzureStore{
		client:  client,
		logger:  logger,
		metrics: metrics,
	}
}

// PutObject uploads body as blob key in container bucket.
func (s *AzureStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) (err error) {
	if s.closed.Load() {
		return errors.ErrStoreClosed
	}

	start := time.Now()
	defer func() {
		recordUpload(s.metrics, s.Name(), size, start, "upload", err)
	}()

	contentType := ContentType(key)
	_, err = s.client.UploadStream(ctx, bucket, key, body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return &errors.StorageError{
			Backend:   s.Name(),
			Operation: "upload",
			Bucket:    bucket,
			Key:       key,
			Err:       err,
		}
	}

	s.logger.Debug("wrote object to Azure Blob",
		"container", bucket,
		"blob", key,
		"size", size,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// Name returns the backend name.
func (s *AzureStore) Name() string {
	return "azure"
}

// Close closes the Azure store.
func (s *AzureStore) Close() error {
	s.closed.Store(true)
	s.logger.Info("Azure store closed")
	return nil
}
