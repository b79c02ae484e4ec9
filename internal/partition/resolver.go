// Package partition resolves the partition a record is buffered under.
package partition

import (
	"encoding/json"
	"time"

	"github.com/jittakal/targets3/pkg/message"
)

// Bookmarks exposes the per-stream replication details of the latest
// checkpoint.
type Bookmarks interface {
	ReplicationMethod(stream string) string
	InitialFullTableComplete(stream string) bool
}

// Config contains resolver configuration.
type Config struct {
	// PartitionOnTimeCreated enables date extraction from record fields.
	PartitionOnTimeCreated bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the wall clock used for the fallback date.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver computes partitions from envelopes. It reads, but never mutates,
// the checkpoint.
type Resolver struct {
	partitionOnTimeCreated bool
	now                    func() time.Time
}

// NewResolver creates a new partition resolver.
func NewResolver(cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		partitionOnTimeCreated: cfg.PartitionOnTimeCreated,
		now:                    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the partition for a RECORD envelope.
//
// The date comes from the first record field that yields a creation time
// when extraction applies to the stream, otherwise from the local wall clock.
func (r *Resolver) Resolve(env *message.Envelope, bookmarks Bookmarks) message.Partition {
	method := ""
	complete := false
	if bookmarks != nil {
		method = bookmarks.ReplicationMethod(env.Stream)
		complete = bookmarks.InitialFullTableComplete(env.Stream)
	}

	p := message.Partition{
		Stream:      env.Stream,
		Incremental: method == message.ReplicationLogBased,
	}

	if r.extractionApplies(method, complete) {
		if t, ok := recordTime(env.Record); ok {
			p.Date = message.DateOf(t)
			return p
		}
	}

	p.Date = message.DateOf(r.now())
	return p
}

func (r *Resolver) extractionApplies(method string, initialComplete bool) bool {
	if !r.partitionOnTimeCreated {
		return false
	}
	switch method {
	case message.ReplicationFullTable:
		return true
	case message.ReplicationLogBased:
		return !initialComplete
	default:
		return false
	}
}

// recordTime scans the record fields in order and returns the first
// creation time found.
func recordTime(record json.RawMessage) (time.Time, bool) {
	if len(record) == 0 {
		return time.Time{}, false
	}

	var found time.Time
	ok := false
	err := scanFields(record, func(key string, value json.RawMessage) bool {
		found, ok = ExtractTime(key, value)
		return ok
	})
	if err != nil {
		return time.Time{}, false
	}
	return found, ok
}
