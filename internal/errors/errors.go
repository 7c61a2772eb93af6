// Package errors provides centralized error definitions and error handling utilities
// for OpsPilot. It defines sentinel errors, domain-specific error types carrying
// run context, semantic error types, and classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures from a subsystem:
//   - StageError: an analysis stage (graph, detect, forecast, recommend) failed
//   - StorageError: persisting or loading a run snapshot failed
//   - IngestError: reading task records from a source failed
//
// Semantic errors represent common error conditions:
//   - NotFoundError: a run or task could not be found
//   - ValidationError: invalid input or configuration
//
// # Usage
//
//	err := errors.NewStageError("detector panicked", errors.ErrStageFailed).
//		WithStage("detect").WithRunID(runID)
//
//	if errors.Is(err, errors.ErrStageFailed) { ... }
//
//	var stageErr *errors.StageError
//	if errors.As(err, &stageErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions so callers need only this package.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Analysis sentinel errors
var (
	// ErrStageFailed indicates that an analysis stage failed and was degraded.
	ErrStageFailed = New("analysis stage failed")
	// ErrGeneratorUnavailable indicates that no text generator is configured.
	ErrGeneratorUnavailable = New("text generator unavailable")
)

// Storage sentinel errors
var (
	// ErrRunNotFound indicates that a saved run could not be found.
	ErrRunNotFound = New("run not found")
	// ErrStorageUnavailable indicates that the storage backend cannot be reached.
	ErrStorageUnavailable = New("storage unavailable")
	// ErrRunExists indicates an attempt to overwrite an existing run.
	ErrRunExists = New("run already exists")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// OpsError is implemented by every error type in this package.
type OpsError interface {
	error
	Unwrap() error
	Is(target error) bool
	IsRetryable() bool
	IsUserFacing() bool
}

type baseError struct {
	message    string
	cause      error
	retryable  bool
	userFacing bool
}

func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *baseError) Unwrap() error { return e.cause }

func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

func (e *baseError) IsRetryable() bool  { return e.retryable }
func (e *baseError) IsUserFacing() bool { return e.userFacing }

// format renders "<kind> [k=v, ...]: message: cause".
func (e *baseError) format(kind string, parts []string) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// StageError reports a failure inside one analysis stage.
//
//	err := errors.NewStageError("recovered panic", errors.ErrStageFailed).WithStage("forecast")
//	fmt.Println(err) // "stage error [stage=forecast]: recovered panic: analysis stage failed"
type StageError struct {
	baseError
	Stage string
	RunID string
}

// NewStageError creates a new StageError.
func NewStageError(message string, cause error) *StageError {
	return &StageError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithStage adds the stage name to the error context.
func (e *StageError) WithStage(stage string) *StageError {
	e.Stage = stage
	return e
}

// WithRunID adds the run ID to the error context.
func (e *StageError) WithRunID(id string) *StageError {
	e.RunID = id
	return e
}

// Error returns the formatted error message.
func (e *StageError) Error() string {
	var parts []string
	if e.Stage != "" {
		parts = append(parts, "stage="+e.Stage)
	}
	if e.RunID != "" {
		parts = append(parts, "run="+e.RunID)
	}
	return e.format("stage error", parts)
}

// Is checks if this error matches the target.
func (e *StageError) Is(target error) bool {
	if _, ok := target.(*StageError); ok {
		return true
	}
	if target == ErrStageFailed {
		return true
	}
	return e.baseError.Is(target)
}

// StorageError reports a failure in a run storage backend.
type StorageError struct {
	baseError
	Backend string
	RunID   string
}

// NewStorageError creates a new StorageError.
func NewStorageError(message string, cause error) *StorageError {
	return &StorageError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			userFacing: true,
		},
	}
}

// WithBackend adds the backend name to the error context.
func (e *StorageError) WithBackend(backend string) *StorageError {
	e.Backend = backend
	return e
}

// WithRunID adds the run ID to the error context.
func (e *StorageError) WithRunID(id string) *StorageError {
	e.RunID = id
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *StorageError) WithRetryable(r bool) *StorageError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *StorageError) Error() string {
	var parts []string
	if e.Backend != "" {
		parts = append(parts, "backend="+e.Backend)
	}
	if e.RunID != "" {
		parts = append(parts, "run="+e.RunID)
	}
	return e.format("storage error", parts)
}

// Is checks if this error matches the target.
func (e *StorageError) Is(target error) bool {
	if _, ok := target.(*StorageError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IngestError reports a failure reading task records.
type IngestError struct {
	baseError
	Source string
	Line   int
}

// NewIngestError creates a new IngestError.
func NewIngestError(message string, cause error) *IngestError {
	return &IngestError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			userFacing: true,
		},
		Line: -1,
	}
}

// WithSource adds the input source name to the error context.
func (e *IngestError) WithSource(source string) *IngestError {
	e.Source = source
	return e
}

// WithLine adds the offending line number to the error context.
func (e *IngestError) WithLine(line int) *IngestError {
	e.Line = line
	return e
}

// Error returns the formatted error message.
func (e *IngestError) Error() string {
	var parts []string
	if e.Source != "" {
		parts = append(parts, "source="+e.Source)
	}
	if e.Line >= 0 {
		parts = append(parts, fmt.Sprintf("line=%d", e.Line))
	}
	return e.format("ingest error", parts)
}

// Is checks if this error matches the target.
func (e *IngestError) Is(target error) bool {
	if _, ok := target.(*IngestError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
//	err := errors.NewNotFoundError("run", "run-20240101-abc")
//	fmt.Println(err) // "run 'run-20240101-abc' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrRunNotFound && e.ResourceType == "run" {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or configuration.
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var opsErr OpsError
	if As(err, &opsErr) {
		return opsErr.IsRetryable()
	}
	return Is(err, ErrTimeout)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var opsErr OpsError
	if As(err, &opsErr) {
		return opsErr.IsUserFacing()
	}
	return false
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
