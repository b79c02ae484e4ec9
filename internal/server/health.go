package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jittakal/targets3/internal/ingest"
	"github.com/jittakal/targets3/pkg/message"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// LoopState exposes the lifecycle state of the ingestion loop.
type LoopState interface {
	State() ingest.State
}

// BufferStats exposes buffered line statistics.
type BufferStats interface {
	Stats() message.BufferStats
}

// LoopChecker derives health from the ingestion loop. The process is live
// while it runs and ready until the loop is done.
type LoopChecker struct {
	loop    LoopState
	buffers BufferStats
}

// NewLoopChecker creates a health checker for the ingestion loop.
// buffers may be nil.
func NewLoopChecker(loop LoopState, buffers BufferStats) *LoopChecker {
	return &LoopChecker{loop: loop, buffers: buffers}
}

// Liveness always reports true.
func (c *LoopChecker) Liveness() bool {
	return true
}

// Readiness reports whether the loop still accepts input.
func (c *LoopChecker) Readiness(ctx context.Context) bool {
	return c.loop.State() != ingest.StateDone
}

// Status returns the loop state and buffer totals.
func (c *LoopChecker) Status() map[string]string {
	status := map[string]string{
		"state": c.loop.State().String(),
	}
	if c.buffers != nil {
		stats := c.buffers.Stats()
		status["buffered_records"] = strconv.Itoa(stats.RecordCount)
		status["buffered_bytes"] = strconv.FormatInt(stats.SizeBytes, 10)
		status["partitions"] = strconv.Itoa(stats.Partitions)
	}
	return status
}

// LivenessHandler returns a handler for Kubernetes liveness probes.
func LivenessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "alive"
		statusCode := http.StatusOK

		if !checker.Liveness() {
			status = "not alive"
			statusCode = http.StatusServiceUnavailable
		}

		writeResponse(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, logger)
	}
}

// ReadinessHandler returns a handler for Kubernetes readiness probes.
func ReadinessHandler(checker HealthChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ready"
		statusCode := http.StatusOK

		if !checker.Readiness(r.Context()) {
			status = "not ready"
			statusCode = http.StatusServiceUnavailable
		}

		writeResponse(w, statusCode, HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Checks:    checker.Status(),
		}, logger)
	}
}

func writeResponse(w http.ResponseWriter, statusCode int, response HealthResponse, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.Error("failed to encode health response", "error", err)
	}
}
