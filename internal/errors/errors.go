// Package errors provides centralized error definitions and error handling utilities
// for roundtable. It defines the failure taxonomy of a run, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// Domain-specific errors represent failures inside a run:
//   - WorkspaceError: a path was rejected or a write to the project root failed
//   - InvocationError: an agent invocation failed or timed out
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid configuration or input
//   - TimeoutError: operation timed out
//
// # Propagation
//
// Per-file and per-agent failures are recorded in the run result and the run
// proceeds. Only fatal errors (see IsFatal) abort a run: invalid configuration
// and an unavailable project root.
//
// # Usage
//
//	err := errors.NewWorkspaceError("write", errors.ErrWriteFailed).WithPath("src/main.go")
//
//	if errors.Is(err, errors.ErrWriteFailed) { ... }
//
//	var invErr *errors.InvocationError
//	if errors.As(err, &invErr) { ... }
//
//	if errors.IsFatal(err) { return err }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that end a run.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Workspace sentinel errors
var (
	// ErrPathRejected indicates a candidate path failed sanitization.
	ErrPathRejected = New("path rejected")
	// ErrWriteFailed indicates the storage layer denied a write.
	ErrWriteFailed = New("write failed")
	// ErrRootUnavailable indicates the project root cannot be created or read.
	ErrRootUnavailable = New("project root unavailable")
)

// Invocation sentinel errors
var (
	// ErrInvocationFailed indicates an agent did not produce a response.
	ErrInvocationFailed = New("agent invocation failed")
	// ErrInvocationTimeout indicates an agent did not respond before its deadline.
	ErrInvocationTimeout = New("agent invocation timed out")
)

// Run sentinel errors
var (
	// ErrInvalidConfig indicates the run configuration is unusable.
	ErrInvalidConfig = New("invalid configuration")
	// ErrRunNotFound indicates a persisted run could not be found.
	ErrRunNotFound = New("run not found")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RoundtableError is the base interface for all roundtable errors.
type RoundtableError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// formatWithContext renders "prefix [k=v, ...]: message: cause".
func formatWithContext(prefix string, parts []string, message string, cause error) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// WorkspaceError represents a rejected path or failed write under the project root.
//
// Example:
//
//	err := errors.NewWorkspaceError("write", errors.ErrWriteFailed).WithPath("docs/README.md")
//	fmt.Println(err) // "workspace error [op=write, path=docs/README.md]: write failed"
type WorkspaceError struct {
	baseError
	Op   string
	Path string
}

// NewWorkspaceError creates a new WorkspaceError for the given operation.
func NewWorkspaceError(op string, cause error) *WorkspaceError {
	return &WorkspaceError{
		baseError: baseError{
			message:   op + " failed",
			cause:     cause,
			severity:  SeverityError,
			retryable: false,
		},
		Op: op,
	}
}

// WithPath adds the offending path to the error context.
func (e *WorkspaceError) WithPath(path string) *WorkspaceError {
	e.Path = path
	return e
}

// WithMessage replaces the default message.
func (e *WorkspaceError) WithMessage(message string) *WorkspaceError {
	e.message = message
	return e
}

// WithSeverity sets the error severity.
func (e *WorkspaceError) WithSeverity(s Severity) *WorkspaceError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *WorkspaceError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}
	return formatWithContext("workspace error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *WorkspaceError) Is(target error) bool {
	if _, ok := target.(*WorkspaceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InvocationError represents an agent invocation that produced no response.
//
// Example:
//
//	err := errors.NewInvocationError("backend exited with status 1", errors.ErrInvocationFailed)
//	err = err.WithRole("qa").WithIteration(3).WithAttempt(2)
type InvocationError struct {
	baseError
	Role      string
	Iteration int
	Attempt   int
}

// NewInvocationError creates a new InvocationError.
func NewInvocationError(message string, cause error) *InvocationError {
	return &InvocationError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  SeverityError,
			retryable: true,
		},
	}
}

// WithRole adds the agent role to the error context.
func (e *InvocationError) WithRole(role string) *InvocationError {
	e.Role = role
	return e
}

// WithIteration adds the iteration index to the error context.
func (e *InvocationError) WithIteration(n int) *InvocationError {
	e.Iteration = n
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *InvocationError) WithAttempt(n int) *InvocationError {
	e.Attempt = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *InvocationError) WithRetryable(r bool) *InvocationError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *InvocationError) Error() string {
	var parts []string
	if e.Role != "" {
		parts = append(parts, fmt.Sprintf("role=%s", e.Role))
	}
	if e.Iteration > 0 {
		parts = append(parts, fmt.Sprintf("iteration=%d", e.Iteration))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}
	return formatWithContext("invocation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *InvocationError) Is(target error) bool {
	if _, ok := target.(*InvocationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// IsTimeout reports whether the invocation failed because its deadline passed.
func (e *InvocationError) IsTimeout() bool {
	return e.baseError.Is(ErrInvocationTimeout) || e.baseError.Is(ErrTimeout)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("run", "abc123")
//	fmt.Println(err) // "run 'abc123' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:   fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:  SeverityWarning,
			retryable: false,
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
	return e.baseError.Is(target)
}

// ValidationError represents invalid configuration or input.
//
// Example:
//
//	err := errors.NewValidationError("must not exceed run.max_iterations")
//	err = err.WithField("run.min_iterations").WithValue(7)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			severity:  SeverityCritical,
			retryable: false,
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

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return formatWithContext("validation error", parts, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) || errors.Is(target, ErrInvalidConfig) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("invoking agent qa", 10*time.Minute)
//	fmt.Println(err) // "timeout error: invoking agent qa (timeout: 10m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			severity:  SeverityWarning,
			retryable: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) || errors.Is(target, ErrInvocationTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rtErr RoundtableError
	if As(err, &rtErr) {
		return rtErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// IsFatal returns true if the error must end a run instead of being recorded
// alongside the other outcomes: invalid configuration or an unusable project root.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrInvalidConfig) || Is(err, ErrRootUnavailable) {
		return true
	}
	var validation *ValidationError
	return As(err, &validation)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement RoundtableError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var rtErr RoundtableError
	if As(err, &rtErr) {
		return rtErr.Severity()
	}

	return SeverityError
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

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
