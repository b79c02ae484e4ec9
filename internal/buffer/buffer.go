package buffer

import (
	"sync"
	"time"

	"github.com/jittakal/targets3/pkg/buffer"
	"github.com/jittakal/targets3/pkg/message"
)

// Ensure implementations satisfy interfaces at compile time.
var (
	_ buffer.Buffer  = (*PartitionBuffer)(nil)
	_ buffer.Manager = (*Manager)(nil)
)

// PartitionBuffer buffers the lines of a single partition.
// Lines are kept in insertion order and the buffer never evicts; callers
// drain it before memory becomes a concern.
type PartitionBuffer struct {
	partition      message.Partition
	lines          []string
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// New creates a new partition buffer.
func New(partition message.Partition) *PartitionBuffer {
	return &PartitionBuffer{
		partition: partition,
	}
}

// Add appends a line to the buffer.
func (b *PartitionBuffer) Add(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(line)
}

func (b *PartitionBuffer) add(line string) {
	b.lines = append(b.lines, line)
	b.currentSize += int64(len(line))

	now := time.Now()
	if b.firstWriteTime.IsZero() {
		b.firstWriteTime = now
	}
	b.lastWriteTime = now
}

// Drain removes and returns all lines from the buffer.
// The returned slice is owned by the caller.
func (b *PartitionBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	lines := b.lines
	b.reset()
	return lines
}

// Stats returns current buffer statistics.
func (b *PartitionBuffer) Stats() message.BufferStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	partitions := 0
	if len(b.lines) > 0 {
		partitions = 1
	}

	return message.BufferStats{
		RecordCount:    len(b.lines),
		Partitions:     partitions,
		SizeBytes:      b.currentSize,
		FirstWriteTime: b.firstWriteTime,
		LastWriteTime:  b.lastWriteTime,
	}
}

// IsEmpty returns true if the buffer is empty.
func (b *PartitionBuffer) IsEmpty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines) == 0
}

// Partition returns the partition the buffer belongs to.
func (b *PartitionBuffer) Partition() message.Partition {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.partition
}

func (b *PartitionBuffer) reset() {
	b.lines = nil
	b.currentSize = 0
	b.firstWriteTime = time.Time{}
	b.lastWriteTime = time.Time{}
}

// Manager maps partition keys to buffers.
// It is written by the ingestion loop only; the mutex lets health and
// metrics handlers read statistics from other goroutines.
type Manager struct {
	buffers        map[string]*PartitionBuffer
	order          []string
	recordCount    int
	currentSize    int64
	firstWriteTime time.Time
	lastWriteTime  time.Time
	mu             sync.RWMutex
}

// NewManager creates a new buffer manager.
func NewManager() *Manager {
	return &Manager{
		buffers: make(map[string]*PartitionBuffer),
	}
}

// Append adds line to the buffer for p.
// A partition becomes incremental as soon as one of its lines is.
func (m *Manager) Append(p message.Partition, line string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := p.Key()
	buf, exists := m.buffers[key]
	if !exists {
		buf = New(p)
		m.buffers[key] = buf
		m.order = append(m.order, key)
	}

	buf.mu.Lock()
	if p.Incremental {
		buf.partition.Incremental = true
	}
	buf.add(line)
	buf.mu.Unlock()

	m.recordCount++
	m.currentSize += int64(len(line))

	now := time.Now()
	if m.firstWriteTime.IsZero() {
		m.firstWriteTime = now
	}
	m.lastWriteTime = now
}

// Drain returns all partition batches in order of first appearance and
// resets the manager. It is the only way to read buffered lines.
func (m *Manager) Drain() []message.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	batches := make([]message.Batch, 0, len(m.order))
	for _, key := range m.order {
		buf := m.buffers[key]
		partition := buf.Partition()
		batches = append(batches, message.Batch{
			Partition: partition,
			Lines:     buf.Drain(),
		})
	}

	m.buffers = make(map[string]*PartitionBuffer)
	m.order = nil
	m.recordCount = 0
	m.currentSize = 0
	m.firstWriteTime = time.Time{}
	m.lastWriteTime = time.Time{}

	return batches
}

// SizeEstimate returns the summed byte length of all buffered lines.
func (m *Manager) SizeEstimate() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentSize
}

// Stats returns aggregated statistics.
func (m *Manager) Stats() message.BufferStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return message.BufferStats{
		RecordCount:    m.recordCount,
		Partitions:     len(m.order),
		SizeBytes:      m.currentSize,
		FirstWriteTime: m.firstWriteTime,
		LastWriteTime:  m.lastWriteTime,
	}
}

// IsEmpty returns true if no lines are buffered.
func (m *Manager) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordCount == 0
}
