// Package encoder defines interfaces for encoding partition batches to object file formats.
package encoder

import (
	"io"

	"github.com/jittakal/targets3/pkg/message"
)

// Encoder encodes a batch to a specific file format.
type Encoder interface {
	// Encode writes the batch to w and returns statistics about the written object.
	Encode(w io.Writer, batch message.Batch) (*message.BufferStats, error)

	// Format returns the file format this encoder produces.
	Format() message.Format

	// FileExtension returns the file extension (e.g., ".json", ".parquet").
	FileExtension() string
}
