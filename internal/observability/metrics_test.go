package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Registering twice on the same registry must fail.
	defer func() {
		if recover() == nil {
			t.Error("expected duplicate registration to panic")
		}
	}()
	NewMetrics(registry)
}

func TestMetrics_Counters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncLinesRead("record")
	metrics.IncLinesRead("record")
	metrics.IncLinesRead("skipped")
	metrics.IncFlushes("success")
	metrics.IncFlushes("partial")
	metrics.IncObjectsUploaded("s3", "success")
	metrics.IncStorageErrors("s3", "upload")
	metrics.IncCheckpointWrites("success")
	metrics.IncDLQPublishes("failure")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"lines record", testutil.ToFloat64(metrics.LinesRead.WithLabelValues("record")), 2},
		{"lines skipped", testutil.ToFloat64(metrics.LinesRead.WithLabelValues("skipped")), 1},
		{"flushes success", testutil.ToFloat64(metrics.Flushes.WithLabelValues("success")), 1},
		{"flushes partial", testutil.ToFloat64(metrics.Flushes.WithLabelValues("partial")), 1},
		{"objects uploaded", testutil.ToFloat64(metrics.ObjectsUploaded.WithLabelValues("s3", "success")), 1},
		{"storage errors", testutil.ToFloat64(metrics.StorageErrors.WithLabelValues("s3", "upload")), 1},
		{"checkpoint writes", testutil.ToFloat64(metrics.CheckpointWrites.WithLabelValues("success")), 1},
		{"dlq publishes", testutil.ToFloat64(metrics.DLQPublishes.WithLabelValues("failure")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestMetrics_SetBufferStats(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.SetBufferStats(2048, 12)

	if got := testutil.ToFloat64(metrics.BufferBytes); got != 2048 {
		t.Errorf("buffer bytes = %v, want 2048", got)
	}
	if got := testutil.ToFloat64(metrics.BufferRecords); got != 12 {
		t.Errorf("buffer records = %v, want 12", got)
	}

	metrics.SetBufferStats(0, 0)
	if got := testutil.ToFloat64(metrics.BufferBytes); got != 0 {
		t.Errorf("buffer bytes after reset = %v, want 0", got)
	}
}

func TestMetrics_Histograms(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveFlushDuration(0.2)
	metrics.ObserveObjectSize("file", 4096)
	metrics.ObserveUploadDuration("file", 0.01)

	count, err := testutil.GatherAndCount(registry,
		"targets3_flush_duration_seconds",
		"targets3_object_size_bytes",
		"targets3_upload_duration_seconds",
	)
	if err != nil {
		t.Fatalf("GatherAndCount() error = %v", err)
	}
	if count != 3 {
		t.Errorf("histogram series = %d, want 3", count)
	}
}
