package storage

import (
	"path"
	"time"
)

// MetricsCollector defines metrics operations for object stores.
type MetricsCollector interface {
	IncObjectsUploaded(backend string, status string)
	ObserveObjectSize(backend string, size float64)
	ObserveUploadDuration(backend string, duration float64)
	IncStorageErrors(backend string, operation string)
}

// recordUpload reports the outcome of a single upload.
func recordUpload(metrics MetricsCollector, backend string, size int64, start time.Time, operation string, err error) {
	if metrics == nil {
		return
	}
	if err != nil {
		metrics.IncStorageErrors(backend, operation)
		metrics.IncObjectsUploaded(backend, "failure")
		return
	}
	metrics.IncObjectsUploaded(backend, "success")
	metrics.ObserveObjectSize(backend, float64(size))
	metrics.ObserveUploadDuration(backend, time.Since(start).Seconds())
}

// ContentType returns the MIME type for an object key based on its extension.
func ContentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/x-ndjson"
	case ".parquet":
		return "application/vnd.apache.parquet"
	case ".avro":
		return "application/avro"
	default:
		return "application/octet-stream"
	}
}
