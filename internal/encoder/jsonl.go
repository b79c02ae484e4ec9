package encoder

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/encoder"
	"github.com/jittakal/targets3/pkg/message"
)

var _ encoder.Encoder = (*JSONLinesEncoder)(nil)

// JSONLinesEncoder writes the raw input lines of a batch, one per line, in
// the order they were read.
type JSONLinesEncoder struct{}

// NewJSONLinesEncoder creates a new JSON lines encoder.
func NewJSONLinesEncoder() *JSONLinesEncoder {
	return &JSONLinesEncoder{}
}

// Encode writes every line of the batch to w. Lines missing a trailing
// newline get one.
func (e *JSONLinesEncoder) Encode(w io.Writer, batch message.Batch) (*message.BufferStats, error) {
	if len(batch.Lines) == 0 {
		return nil, errors.ErrEmptyBatch
	}

	cw := &countingWriter{w: w}
	for i, line := range batch.Lines {
		if _, err := io.WriteString(cw, line); err != nil {
			return nil, fmt.Errorf("failed to write line %d: %w", i, err)
		}
		if !strings.HasSuffix(line, "\n") {
			if _, err := io.WriteString(cw, "\n"); err != nil {
				return nil, fmt.Errorf("failed to write line %d: %w", i, err)
			}
		}
	}

	now := time.Now()
	return &message.BufferStats{
		RecordCount:    len(batch.Lines),
		Partitions:     1,
		SizeBytes:      cw.n,
		FirstWriteTime: now,
		LastWriteTime:  now,
	}, nil
}

// Format returns the file format.
func (e *JSONLinesEncoder) Format() message.Format {
	return message.FormatJSON
}

// FileExtension returns the file extension.
func (e *JSONLinesEncoder) FileExtension() string {
	return ".json"
}
