// Package flush materializes drained partition batches to object storage.
package flush

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/encoder"
	"github.com/jittakal/targets3/pkg/message"
	"github.com/jittakal/targets3/pkg/storage"
)

// DefaultMaxConcurrentUploads bounds the upload fan-out when unset.
const DefaultMaxConcurrentUploads = 4

// MetricsCollector defines metrics operations for flush cycles.
type MetricsCollector interface {
	IncFlushes(outcome string)
	ObserveFlushDuration(duration float64)
}

// Config contains flush coordinator configuration.
type Config struct {
	Bucket               string
	MaxConcurrentUploads int
}

// UploadedObject describes one object written during a flush.
type UploadedObject struct {
	PartitionKey string
	Key          string
	Records      int
	SizeBytes    int64
}

// Result is the outcome of one flush cycle.
type Result struct {
	Uploaded []UploadedObject
	Failures []*errors.PartitionFailure
}

// Err joins all partition failures, or returns nil if there were none.
func (r *Result) Err() error {
	if r == nil || len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return stderrors.Join(errs...)
}

// Outcome classifies the result as "empty", "success", "partial" or "failure".
func (r *Result) Outcome() string {
	switch {
	case r == nil || (len(r.Uploaded) == 0 && len(r.Failures) == 0):
		return "empty"
	case len(r.Failures) == 0:
		return "success"
	case len(r.Uploaded) > 0:
		return "partial"
	default:
		return "failure"
	}
}

// Coordinator stages, uploads and releases the batches of a flush cycle.
// Partitions fail independently: a failed stage or upload never prevents
// sibling partitions from being written.
type Coordinator struct {
	config  Config
	store   storage.ObjectStore
	encoder encoder.Encoder
	keys    storage.KeyBuilder
	stagers storage.StagerFactory
	logger  *slog.Logger
	metrics MetricsCollector
	now     func() time.Time
}

// NewCoordinator creates a new flush coordinator.
func NewCoordinator(
	config Config,
	store storage.ObjectStore,
	enc encoder.Encoder,
	keys storage.KeyBuilder,
	stagers storage.StagerFactory,
	logger *slog.Logger,
	metrics MetricsCollector,
) *Coordinator {
	if config.MaxConcurrentUploads <= 0 {
		config.MaxConcurrentUploads = DefaultMaxConcurrentUploads
	}

	return &Coordinator{
		config:  config,
		store:   store,
		encoder: enc,
		keys:    keys,
		stagers: stagers,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// staged pairs a batch with its staged object and destination key.
type staged struct {
	batch  message.Batch
	object storage.StagedObject
	key    string
	size   int64
}

// Flush writes every batch to object storage.
// Once started, a flush runs to completion even if ctx is cancelled.
func (c *Coordinator) Flush(ctx context.Context, batches []message.Batch) *Result {
	result := &Result{}
	if len(batches) == 0 {
		return result
	}

	ctx = context.WithoutCancel(ctx)
	start := c.now()
	defer func() {
		if c.metrics != nil {
			c.metrics.IncFlushes(result.Outcome())
			c.metrics.ObserveFlushDuration(time.Since(start).Seconds())
		}
	}()

	stager, err := c.stagers()
	if err != nil {
		for _, batch := range batches {
			result.Failures = append(result.Failures, &errors.PartitionFailure{
				PartitionKey: batch.Partition.Key(),
				Err:          err,
			})
		}
		c.logger.Error("failed to start flush cycle", "error", err, "partitions", len(batches))
		return result
	}
	defer func() {
		if err := stager.Cleanup(); err != nil {
			c.logger.Warn("failed to clean up staging area", "error", err)
		}
	}()

	ready := make([]*staged, 0, len(batches))
	for i, batch := range batches {
		s, err := c.stage(ctx, stager, batch, i, start)
		if err != nil {
			result.Failures = append(result.Failures, &errors.PartitionFailure{
				PartitionKey: batch.Partition.Key(),
				Err:          err,
			})
			c.logger.Error("failed to stage partition",
				"partition", batch.Partition.Key(),
				"error", err,
			)
			continue
		}
		ready = append(ready, s)
	}

	uploaded, failures := c.upload(ctx, ready)
	result.Uploaded = append(result.Uploaded, uploaded...)
	result.Failures = append(result.Failures, failures...)

	c.logger.Info("flush completed",
		"partitions", len(batches),
		"uploaded", len(result.Uploaded),
		"failed", len(result.Failures),
		"outcome", result.Outcome(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result
}

// stage encodes batch into a new staged object.
func (c *Coordinator) stage(ctx context.Context, stager storage.Stager, batch message.Batch, index int, flushTime time.Time) (*staged, error) {
	name := fmt.Sprintf("%03d-%s%s", index, batch.Partition.Key(), c.encoder.FileExtension())

	obj, err := stager.Create(ctx, name)
	if err != nil {
		return nil, err
	}

	if _, err := c.encoder.Encode(obj, batch); err != nil {
		obj.Close()
		obj.Remove()
		return nil, &errors.StagingError{Operation: "encode", Name: name, Err: err}
	}

	if err := obj.Close(); err != nil {
		obj.Remove()
		return nil, err
	}

	return &staged{
		batch:  batch,
		object: obj,
		key:    c.keys.Key(batch, c.encoder.FileExtension(), flushTime),
		size:   obj.Size(),
	}, nil
}

// upload sends staged objects with bounded concurrency and collects every
// failure independently.
func (c *Coordinator) upload(ctx context.Context, ready []*staged) ([]UploadedObject, []*errors.PartitionFailure) {
	// Each goroutine owns one slot, so results need no locking.
	uploaded := make([]*UploadedObject, len(ready))
	failed := make([]*errors.PartitionFailure, len(ready))

	var g errgroup.Group
	g.SetLimit(c.config.MaxConcurrentUploads)

	for i, s := range ready {
		g.Go(func() error {
			err := c.put(ctx, s)
			if err != nil {
				failed[i] = &errors.PartitionFailure{
					PartitionKey: s.batch.Partition.Key(),
					Key:          s.key,
					Err:          err,
				}
				c.logger.Error("failed to upload partition",
					"partition", s.batch.Partition.Key(),
					"key", s.key,
					"retryable", errors.IsRetryable(err),
					"error", err,
				)
				return nil
			}

			uploaded[i] = &UploadedObject{
				PartitionKey: s.batch.Partition.Key(),
				Key:          s.key,
				Records:      len(s.batch.Lines),
				SizeBytes:    s.size,
			}
			c.logger.Info("uploaded partition",
				"partition", s.batch.Partition.Key(),
				"bucket", c.config.Bucket,
				"key", s.key,
				"records", len(s.batch.Lines),
				"size", s.size,
			)
			return nil
		})
	}
	g.Wait()

	var (
		okList   []UploadedObject
		failList []*errors.PartitionFailure
	)
	for i := range ready {
		if uploaded[i] != nil {
			okList = append(okList, *uploaded[i])
		}
		if failed[i] != nil {
			failList = append(failList, failed[i])
		}
	}
	return okList, failList
}

// put uploads one staged object and releases it.
func (c *Coordinator) put(ctx context.Context, s *staged) error {
	defer func() {
		if err := s.object.Remove(); err != nil {
			c.logger.Warn("failed to remove staged object", "name", s.object.Name(), "error", err)
		}
	}()

	body, err := s.object.Open()
	if err != nil {
		return err
	}
	defer body.Close()

	return c.store.PutObject(ctx, c.config.Bucket, s.key, body, s.size)
}
