// Package buffer provides in-memory buffering of input lines by partition.
//
// # PartitionBuffer
//
// PartitionBuffer holds the lines of one partition in the order they were
// read:
//
//	buf := buffer.New(partition)
//	buf.Add(line)
//	lines := buf.Drain() // buffer is empty again
//
// # Manager
//
// Manager maps partition keys ("stream::Y-M-D") to buffers and keeps running
// totals that the ingestion loop compares against the flush threshold:
//
//	manager := buffer.NewManager()
//	manager.Append(partition, line)
//
//	if manager.SizeEstimate() > threshold {
//	    batches := manager.Drain()
//	    // hand batches to the flush coordinator
//	}
//
// Drain is the only way to read buffered lines. It returns one Batch per
// partition, ordered by first appearance, and resets the manager.
//
// # Size Accounting
//
// The size estimate is the summed byte length of the raw lines, including
// their trailing newlines.
//
// # Thread Safety
//
// The ingestion loop is the only writer. Read-write mutexes guard the
// statistics so health and metrics handlers can read them concurrently.
package buffer
