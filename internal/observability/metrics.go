package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jittakal/targets3/internal/checkpoint"
	"github.com/jittakal/targets3/internal/flush"
	"github.com/jittakal/targets3/internal/ingest"
	"github.com/jittakal/targets3/internal/kafka"
	"github.com/jittakal/targets3/internal/storage"
)

// Ensure Metrics satisfies every component collector at compile time.
var (
	_ ingest.MetricsCollector     = (*Metrics)(nil)
	_ flush.MetricsCollector      = (*Metrics)(nil)
	_ storage.MetricsCollector    = (*Metrics)(nil)
	_ checkpoint.MetricsCollector = (*Metrics)(nil)
	_ kafka.MetricsCollector      = (*Metrics)(nil)
)

const namespace = "targets3"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Ingestion metrics
	LinesRead     *prometheus.CounterVec
	BufferBytes   prometheus.Gauge
	BufferRecords prometheus.Gauge

	// Flush metrics
	Flushes       *prometheus.CounterVec
	FlushDuration prometheus.Histogram

	// Storage metrics
	ObjectsUploaded *prometheus.CounterVec
	UploadDuration  *prometheus.HistogramVec
	ObjectSize      *prometheus.HistogramVec
	StorageErrors   *prometheus.CounterVec

	// Checkpoint and dead-letter metrics
	CheckpointWrites *prometheus.CounterVec
	DLQPublishes     *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		LinesRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lines_read_total",
				Help:      "Total number of input lines read, by outcome",
			},
			[]string{"status"},
		),
		BufferBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffer_size_bytes",
				Help:      "Estimated size of buffered lines in bytes",
			},
		),
		BufferRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "buffer_records",
				Help:      "Number of buffered lines",
			},
		),
		Flushes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushes_total",
				Help:      "Total number of flush cycles, by outcome",
			},
			[]string{"outcome"},
		),
		FlushDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "flush_duration_seconds",
				Help:      "Duration of flush cycles",
				Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
		),
		ObjectsUploaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "objects_uploaded_total",
				Help:      "Total number of object uploads, by backend and status",
			},
			[]string{"backend", "status"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upload_duration_seconds",
				Help:      "Duration of successful object uploads",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
			[]string{"backend"},
		),
		ObjectSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "object_size_bytes",
				Help:      "Size of uploaded objects in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
			[]string{"backend"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage errors, by backend and operation",
			},
			[]string{"backend", "operation"},
		),
		CheckpointWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "checkpoint_writes_total",
				Help:      "Total number of checkpoint persist attempts, by status",
			},
			[]string{"status"},
		),
		DLQPublishes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dlq_publishes_total",
				Help:      "Total number of dead-letter publishes, by status",
			},
			[]string{"status"},
		),
	}
}

// IncLinesRead counts an input line by outcome.
func (m *Metrics) IncLinesRead(status string) {
	m.LinesRead.WithLabelValues(status).Inc()
}

// SetBufferStats records the current buffer totals.
func (m *Metrics) SetBufferStats(bytes int64, records int) {
	m.BufferBytes.Set(float64(bytes))
	m.BufferRecords.Set(float64(records))
}

// IncFlushes counts a flush cycle by outcome.
func (m *Metrics) IncFlushes(outcome string) {
	m.Flushes.WithLabelValues(outcome).Inc()
}

// ObserveFlushDuration records the duration of a flush cycle in seconds.
func (m *Metrics) ObserveFlushDuration(duration float64) {
	m.FlushDuration.Observe(duration)
}

// IncObjectsUploaded counts an upload attempt.
func (m *Metrics) IncObjectsUploaded(backend string, status string) {
	m.ObjectsUploaded.WithLabelValues(backend, status).Inc()
}

// ObserveObjectSize records the size of an uploaded object.
func (m *Metrics) ObserveObjectSize(backend string, size float64) {
	m.ObjectSize.WithLabelValues(backend).Observe(size)
}

// ObserveUploadDuration records the duration of an upload in seconds.
func (m *Metrics) ObserveUploadDuration(backend string, duration float64) {
	m.UploadDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors counts a storage error.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncCheckpointWrites counts a checkpoint persist attempt.
func (m *Metrics) IncCheckpointWrites(status string) {
	m.CheckpointWrites.WithLabelValues(status).Inc()
}

// IncDLQPublishes counts a dead-letter publish attempt.
func (m *Metrics) IncDLQPublishes(status string) {
	m.DLQPublishes.WithLabelValues(status).Inc()
}
