// Package storage defines interfaces for object storage and flush staging.
//
// This package provides abstractions for uploading encoded partition batches
// to object storage backends (S3, GCS, Azure Blob, local filesystem) and for
// staging them locally before upload.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/jittakal/targets3/pkg/message"
)

// ObjectStore uploads finished objects to a storage backend.
type ObjectStore interface {
	// PutObject uploads size bytes read from body under bucket/key.
	// An existing object with the same key is overwritten.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error

	// Name returns the backend name used in logs and metrics.
	Name() string

	// Close releases the store's resources.
	Close() error
}

// StagedObject is an encoded batch waiting for upload.
type StagedObject interface {
	io.Writer

	// Name returns the staging name of the object.
	Name() string

	// Close finishes writing. The object can be opened afterwards.
	Close() error

	// Open returns a reader over the staged bytes.
	Open() (io.ReadCloser, error)

	// Size returns the number of bytes written.
	Size() int64

	// Remove discards the staged bytes.
	Remove() error
}

// Stager holds the staged objects of one flush cycle.
type Stager interface {
	// Create starts a new staged object.
	Create(ctx context.Context, name string) (StagedObject, error)

	// Cleanup releases everything created by the stager.
	Cleanup() error
}

// StagerFactory returns a fresh stager for each flush cycle.
type StagerFactory func() (Stager, error)

// KeyBuilder determines object keys for partition batches.
type KeyBuilder interface {
	// Key returns the object key for batch flushed at flushTime.
	Key(batch message.Batch, ext string, flushTime time.Time) string
}
