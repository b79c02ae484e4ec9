// Package storage implements object stores, staging and key layout.
package storage

import (
	"fmt"
	"path"
	"time"

	"github.com/jittakal/targets3/pkg/message"
	"github.com/jittakal/targets3/pkg/storage"
)

// Ensure implementation satisfies interface.
var _ storage.KeyBuilder = (*HiveKeyBuilder)(nil)

// HiveKeyBuilder lays out object keys in Hive-style partitions:
//
//	source=<source>/collection=<stream>/year=<Y>/month=<M>/day=<D>/<file><ext>
//
// Year, month and day are not zero padded.
type HiveKeyBuilder struct {
	source string
}

// NewKeyBuilder creates a key builder for the given source identifier.
func NewKeyBuilder(source string) *HiveKeyBuilder {
	return &HiveKeyBuilder{source: source}
}

// Key returns the object key for batch.
// Incremental partitions get a flush-time suffix so consecutive flush cycles
// for the same stream and day write distinct objects; all other partitions
// reuse the stream name and overwrite.
func (b *HiveKeyBuilder) Key(batch message.Batch, ext string, flushTime time.Time) string {
	p := batch.Partition

	return path.Join(
		"source="+b.source,
		"collection="+p.Stream,
		fmt.Sprintf("year=%d", p.Date.Year),
		fmt.Sprintf("month=%d", int(p.Date.Month)),
		fmt.Sprintf("day=%d", p.Date.Day),
		FileName(p, flushTime)+ext,
	)
}

// FileName returns the object file name without extension.
// The incremental suffix is hour, minute, second and microsecond of
// flushTime, zero padded to HHMMSSffffff.
func FileName(p message.Partition, flushTime time.Time) string {
	if !p.Incremental {
		return p.Stream
	}
	return fmt.Sprintf("%s_%02d%02d%02d%06d",
		p.Stream,
		flushTime.Hour(),
		flushTime.Minute(),
		flushTime.Second(),
		flushTime.Nanosecond()/int(time.Microsecond),
	)
}
