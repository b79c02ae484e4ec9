// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrEmptyBatch      = errors.New("batch has no lines")
	ErrStoreClosed     = errors.New("object store is closed")
	ErrPublisherClosed = errors.New("dead letter publisher is closed")
	ErrNoCheckpoint    = errors.New("no checkpoint observed")
)

// ParseReason classifies why an input line was rejected.
type ParseReason string

const (
	MalformedSyntax ParseReason = "malformed_syntax"
	MissingField    ParseReason = "missing_field"
)

// ParseError reports an input line that could not be turned into an envelope.
type ParseError struct {
	Reason ParseReason
	Field  string
	Line   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Reason == MissingField {
		return fmt.Sprintf("parse error: missing required field %q", e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse error: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// CheckpointPersistError reports a checkpoint that could not be written to
// its configured location. It is fatal for the run.
type CheckpointPersistError struct {
	Path string
	Err  error
}

func (e *CheckpointPersistError) Error() string {
	return fmt.Sprintf("checkpoint persist error: path=%s: %v", e.Path, e.Err)
}

func (e *CheckpointPersistError) Unwrap() error {
	return e.Err
}

// StorageError represents an object storage operation failure.
type StorageError struct {
	Backend   string
	Operation string
	Bucket    string
	Key       string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: backend=%s operation=%s bucket=%s key=%s: %v",
		e.Backend, e.Operation, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// StagingError represents a failure to materialize or release a staged object.
type StagingError struct {
	Operation string
	Name      string
	Err       error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("staging error: operation=%s name=%s: %v", e.Operation, e.Name, e.Err)
}

func (e *StagingError) Unwrap() error {
	return e.Err
}

// PartitionFailure ties a flush failure to the partition it belongs to.
type PartitionFailure struct {
	PartitionKey string
	Key          string
	Err          error
}

func (e *PartitionFailure) Error() string {
	return fmt.Sprintf("partition %s: %v", e.PartitionKey, e.Err)
}

func (e *PartitionFailure) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error implements Retryable and reports itself
// as retryable.
func IsRetryable(err error) bool {
	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}
	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "upload" || e.Operation == "close"
}

// IsRetryable reports whether the underlying failure is retryable.
func (e *PartitionFailure) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Code returns a short machine-readable form of the failure, such as
// "malformed_syntax" or "missing_field:stream".
func (e *ParseError) Code() string {
	if e.Reason == MissingField && e.Field != "" {
		return string(e.Reason) + ":" + e.Field
	}
	return string(e.Reason)
}

// FailureReason returns the Code of the ParseError wrapped by err, or
// "unknown" when err carries none.
func FailureReason(err error) string {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code()
	}
	return "unknown"
}

// IsCheckpointPersistError reports whether err is, or wraps, a CheckpointPersistError.
func IsCheckpointPersistError(err error) bool {
	var ce *CheckpointPersistError
	return errors.As(err, &ce)
}
