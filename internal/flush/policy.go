package flush

import (
	"time"

	"github.com/jittakal/targets3/pkg/message"
)

// DefaultMaxBufferBytes is the buffer size above which a flush is triggered.
const DefaultMaxBufferBytes int64 = 10_000_000

// PolicyConfig configures when the buffer is flushed.
// Zero values disable the record and age limits.
type PolicyConfig struct {
	MaxBufferBytes int64
	MaxRecords     int
	MaxAgeSeconds  int
}

// Policy decides when buffered lines must be flushed based on multiple criteria.
type Policy struct {
	maxBytes   int64
	maxRecords int
	maxAge     time.Duration
	now        func() time.Time
}

// NewPolicy creates a new flush policy.
func NewPolicy(config PolicyConfig) *Policy {
	maxBytes := config.MaxBufferBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBufferBytes
	}

	return &Policy{
		maxBytes:   maxBytes,
		maxRecords: config.MaxRecords,
		maxAge:     time.Duration(config.MaxAgeSeconds) * time.Second,
		now:        time.Now,
	}
}

// ShouldFlush returns true if any flush condition is met.
func (p *Policy) ShouldFlush(stats message.BufferStats) bool {
	if stats.RecordCount == 0 {
		return false
	}

	// Size-based: strictly above the threshold
	if stats.SizeBytes > p.maxBytes {
		return true
	}

	// Count-based
	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	// Age-based
	if p.maxAge > 0 && !stats.FirstWriteTime.IsZero() {
		if p.now().Sub(stats.FirstWriteTime) >= p.maxAge {
			return true
		}
	}

	return false
}
