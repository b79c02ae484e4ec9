package message

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind is the discriminator of an input message.
type Kind string

const (
	KindRecord Kind = "RECORD"
	KindState  Kind = "STATE"
	KindSchema Kind = "SCHEMA"
)

// Envelope is a single decoded input line.
type Envelope struct {
	Kind   Kind            `json:"type"`
	Stream string          `json:"stream,omitempty"`
	Record json.RawMessage `json:"record,omitempty"`
	Value  json.RawMessage `json:"value,omitempty"`

	// Raw is the original line text, retained until the partition is flushed.
	Raw string `json:"-"`
}

// IsRecord reports whether the envelope carries record data.
func (e *Envelope) IsRecord() bool {
	return e.Kind == KindRecord
}

// IsState reports whether the envelope carries a checkpoint.
func (e *Envelope) IsState() bool {
	return e.Kind == KindState
}

// Replication methods as reported in stream bookmarks.
const (
	ReplicationFullTable = "FULL_TABLE"
	ReplicationLogBased  = "LOG_BASED"
)

// Date is a calendar date without time or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String formats the date as Y-M-D without zero padding.
func (d Date) String() string {
	return fmt.Sprintf("%d-%d-%d", d.Year, int(d.Month), d.Day)
}

// KeySeparator joins the stream and date of a partition key.
// Stream names must not contain it.
const KeySeparator = "::"

// Partition identifies the buffer bucket a record belongs to.
type Partition struct {
	Stream string
	Date   Date

	// Incremental marks partitions fed by log-based replication. Their
	// object names carry a flush-time suffix so consecutive cycles never
	// overwrite each other.
	Incremental bool
}

// Key returns the partition key in the format "stream::Y-M-D".
func (p Partition) Key() string {
	return p.Stream + KeySeparator + p.Date.String()
}

// Batch is the drained content of one partition.
type Batch struct {
	Partition Partition
	Lines     []string
}

// SizeBytes returns the summed length of the batch lines.
func (b Batch) SizeBytes() int64 {
	var n int64
	for _, line := range b.Lines {
		n += int64(len(line))
	}
	return n
}

// BufferStats contains statistics about buffered lines.
type BufferStats struct {
	RecordCount    int
	Partitions     int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// Format represents the object file format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
	FormatAvro    Format = "avro"
)
