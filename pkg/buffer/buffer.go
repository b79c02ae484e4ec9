// Package buffer defines interfaces for partition buffering.
//
// Buffers hold raw input lines grouped by partition until the next flush,
// so each partition is written to storage as a single object.
package buffer

import (
	"github.com/jittakal/targets3/pkg/message"
)

// Buffer accumulates the lines of a single partition.
// All implementations must be thread-safe.
type Buffer interface {
	// Add appends a line to the buffer.
	Add(line string)

	// Drain removes and returns all lines in insertion order.
	Drain() []string

	// Stats returns current buffer statistics without modifying the buffer.
	Stats() message.BufferStats

	// IsEmpty returns true if the buffer contains no lines.
	IsEmpty() bool
}

// Manager groups lines by partition key.
type Manager interface {
	// Append adds line to the buffer of partition p, creating it if absent.
	Append(p message.Partition, line string)

	// Drain returns every partition batch and resets the manager.
	Drain() []message.Batch

	// SizeEstimate returns the summed byte length of all buffered lines.
	SizeEstimate() int64

	// Stats returns aggregated statistics over all partitions.
	Stats() message.BufferStats
}
