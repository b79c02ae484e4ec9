package storage

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockMetricsCollector implements MetricsCollector for testing.
type mockMetricsCollector struct {
	mu          sync.Mutex
	uploaded    map[string]int
	sizes       []float64
	durations   []float64
	errorCounts map[string]int
}

func newMockMetrics() *mockMetricsCollector {
	return &mockMetricsCollector{
		uploaded:    make(map[string]int),
		errorCounts: make(map[string]int),
	}
}

func (m *mockMetricsCollector) IncObjectsUploaded(backend string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded[backend+"/"+status]++
}

func (m *mockMetricsCollector) ObserveObjectSize(backend string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sizes = append(m.sizes, size)
}

func (m *mockMetricsCollector) ObserveUploadDuration(backend string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations = append(m.durations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCounts[backend+"/"+operation]++
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"source=a/collection=b/year=2024/month=1/day=2/b.json", "application/x-ndjson"},
		{"x/y.parquet", "application/vnd.apache.parquet"},
		{"x/y.avro", "application/avro"},
		{"x/y", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := ContentType(tt.key); got != tt.want {
				t.Errorf("ContentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecordUpload(t *testing.T) {
	metrics := newMockMetrics()

	recordUpload(metrics, "s3", 42, time.Now(), "upload", nil)
	recordUpload(metrics, "s3", 42, time.Now(), "upload", io.ErrUnexpectedEOF)

	if metrics.uploaded["s3/success"] != 1 {
		t.Errorf("success uploads = %d, want 1", metrics.uploaded["s3/success"])
	}
	if metrics.uploaded["s3/failure"] != 1 {
		t.Errorf("failed uploads = %d, want 1", metrics.uploaded["s3/failure"])
	}
	if metrics.errorCounts["s3/upload"] != 1 {
		t.Errorf("upload errors = %d, want 1", metrics.errorCounts["s3/upload"])
	}
	if len(metrics.sizes) != 1 || metrics.sizes[0] != 42 {
		t.Errorf("sizes = %v, want [42]", metrics.sizes)
	}

	// nil collector is allowed
	recordUpload(nil, "s3", 1, time.Now(), "upload", nil)
}
