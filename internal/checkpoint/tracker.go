// Package checkpoint tracks and persists the latest checkpoint value.
package checkpoint

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jittakal/targets3/internal/errors"
	"github.com/jittakal/targets3/pkg/message"
)

// MetricsCollector defines metrics operations for checkpoint persistence.
type MetricsCollector interface {
	IncCheckpointWrites(status string)
}

// Config contains checkpoint tracker configuration.
type Config struct {
	// Path is the state file location. Empty disables persistence.
	Path string
}

// Tracker holds the latest checkpoint value. It is owned by the ingestion
// loop; readers get immutable State snapshots.
type Tracker struct {
	path    string
	current *State
	logger  *slog.Logger
	metrics MetricsCollector
}

// NewTracker creates a new checkpoint tracker.
func NewTracker(cfg Config, logger *slog.Logger, metrics MetricsCollector) *Tracker {
	return &Tracker{
		path:    cfg.Path,
		current: NewState(nil),
		logger:  logger,
		metrics: metrics,
	}
}

// Observe replaces the held checkpoint with the envelope value and, when a
// path is configured, overwrites the state file with it. The in-memory value
// is replaced even if persisting fails.
func (t *Tracker) Observe(env *message.Envelope) error {
	t.current = NewState(env.Value)

	if t.path == "" {
		return nil
	}

	if err := t.persist(env.Value); err != nil {
		if t.metrics != nil {
			t.metrics.IncCheckpointWrites("failure")
		}
		return &errors.CheckpointPersistError{Path: t.path, Err: err}
	}

	if t.metrics != nil {
		t.metrics.IncCheckpointWrites("success")
	}
	t.logger.Debug("state file written", "path", t.path)
	return nil
}

// Current returns the latest observed checkpoint. It never returns nil.
func (t *Tracker) Current() *State {
	return t.current
}

// Value returns the compacted checkpoint value.
func (t *Tracker) Value() (json.RawMessage, error) {
	if t.current.IsEmpty() {
		return nil, errors.ErrNoCheckpoint
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, t.current.raw); err != nil {
		return nil, fmt.Errorf("failed to compact checkpoint: %w", err)
	}
	return buf.Bytes(), nil
}

// Emit writes the current checkpoint value to w as a single line.
// Nothing is written when no checkpoint has been observed.
func (t *Tracker) Emit(w io.Writer) error {
	if t.current.IsEmpty() {
		return nil
	}

	value, err := t.Value()
	if err != nil {
		return err
	}

	t.logger.Debug("emitting state", "state", string(value))
	if _, err := w.Write(append(value, '\n')); err != nil {
		return fmt.Errorf("failed to emit state: %w", err)
	}
	return nil
}

// Load reads a previously persisted checkpoint from the configured path.
// A missing file is not an error.
func (t *Tracker) Load() error {
	if t.path == "" {
		return nil
	}

	data, err := os.ReadFile(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			t.logger.Info("no state file to load", "path", t.path)
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("state file %s does not contain valid JSON", t.path)
	}

	t.current = NewState(data)
	t.logger.Info("loaded state file", "path", t.path)
	return nil
}

// persist overwrites the state file through a temporary file in the same
// directory so readers never observe a partial write.
func (t *Tracker) persist(value json.RawMessage) error {
	dir := filepath.Dir(t.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod state file: %w", err)
	}

	if err := os.Rename(tmpName, t.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
