package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// -----------------------------------------------------------------------------
// Severity Tests
// -----------------------------------------------------------------------------

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityDebug, "debug"},
		{SeverityInfo, "info"},
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// -----------------------------------------------------------------------------
// WorkspaceError Tests
// -----------------------------------------------------------------------------

func TestWorkspaceError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *WorkspaceError
		want string
	}{
		{
			name: "op only",
			err:  NewWorkspaceError("write", nil),
			want: "workspace error [op=write]: write failed",
		},
		{
			name: "with path and cause",
			err:  NewWorkspaceError("write", ErrWriteFailed).WithPath("src/a.go"),
			want: "workspace error [op=write, path=src/a.go]: write failed: write failed",
		},
		{
			name: "custom message",
			err:  NewWorkspaceError("sanitize", ErrPathRejected).WithPath("../x").WithMessage("escapes project root"),
			want: "workspace error [op=sanitize, path=../x]: escapes project root: path rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkspaceError_Is(t *testing.T) {
	err := NewWorkspaceError("sanitize", ErrPathRejected).WithPath("`x`")

	if !errors.Is(err, ErrPathRejected) {
		t.Error("errors.Is(err, ErrPathRejected) = false, want true")
	}
	if errors.Is(err, ErrWriteFailed) {
		t.Error("errors.Is(err, ErrWriteFailed) = true, want false")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	var wsErr *WorkspaceError
	if !errors.As(wrapped, &wsErr) {
		t.Fatal("errors.As failed for wrapped WorkspaceError")
	}
	if wsErr.Path != "`x`" {
		t.Errorf("Path = %q, want %q", wsErr.Path, "`x`")
	}
}

// -----------------------------------------------------------------------------
// InvocationError Tests
// -----------------------------------------------------------------------------

func TestNewInvocationError(t *testing.T) {
	err := NewInvocationError("backend exited", ErrInvocationFailed).
		WithRole("qa").
		WithIteration(3).
		WithAttempt(2)

	want := "invocation error [role=qa, iteration=3, attempt=2]: backend exited: agent invocation failed"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !err.IsRetryable() {
		t.Error("IsRetryable() = false, want true")
	}
	if err.IsTimeout() {
		t.Error("IsTimeout() = true, want false")
	}
	if !errors.Is(err, ErrInvocationFailed) {
		t.Error("errors.Is(err, ErrInvocationFailed) = false, want true")
	}
}

func TestInvocationError_IsTimeout(t *testing.T) {
	err := NewInvocationError("no response", NewTimeoutError("invoking agent", time.Second))
	if !err.IsTimeout() {
		t.Error("IsTimeout() = false, want true for TimeoutError cause")
	}
	if !errors.Is(err, ErrInvocationTimeout) {
		t.Error("errors.Is(err, ErrInvocationTimeout) = false, want true")
	}

	direct := NewInvocationError("deadline", ErrInvocationTimeout)
	if !direct.IsTimeout() {
		t.Error("IsTimeout() = false, want true for ErrInvocationTimeout cause")
	}
}

// -----------------------------------------------------------------------------
// Semantic Error Tests
// -----------------------------------------------------------------------------

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("run", "abc123")
	if got, want := err.Error(), "run 'abc123' not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	withCause := NewNotFoundError("run", "abc123").WithCause(ErrRunNotFound)
	if !errors.Is(withCause, ErrRunNotFound) {
		t.Error("errors.Is(err, ErrRunNotFound) = false, want true")
	}
	if GetSeverity(withCause) != SeverityWarning {
		t.Errorf("GetSeverity() = %v, want %v", GetSeverity(withCause), SeverityWarning)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("must not exceed run.max_iterations").
		WithField("run.min_iterations").
		WithValue(7)

	want := "validation error [field=run.min_iterations, value=7]: must not exceed run.max_iterations"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("errors.Is(err, ErrInvalidConfig) = false, want true")
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("errors.Is(err, ErrInvalidInput) = false, want true")
	}
}

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("invoking agent qa", 10*time.Minute)

	want := "timeout error: invoking agent qa (timeout: 10m0s)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Error("errors.Is(err, ErrTimeout) = false, want true")
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false, want true")
	}
}

// -----------------------------------------------------------------------------
// Classification Tests
// -----------------------------------------------------------------------------

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", NewValidationError("bad"), true},
		{"invalid config sentinel", Wrap(ErrInvalidConfig, "load"), true},
		{"root unavailable", NewWorkspaceError("open", ErrRootUnavailable), true},
		{"write failure", NewWorkspaceError("write", ErrWriteFailed), false},
		{"path rejected", NewWorkspaceError("sanitize", ErrPathRejected), false},
		{"invocation", NewInvocationError("x", ErrInvocationFailed), false},
		{"plain", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"invocation", NewInvocationError("x", nil), true},
		{"invocation not retryable", NewInvocationError("x", nil).WithRetryable(false), false},
		{"workspace", NewWorkspaceError("write", nil), false},
		{"wrapped timeout sentinel", Wrap(ErrTimeout, "waiting"), true},
		{"plain", New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSeverity(t *testing.T) {
	if got := GetSeverity(nil); got != SeverityDebug {
		t.Errorf("GetSeverity(nil) = %v, want %v", got, SeverityDebug)
	}
	if got := GetSeverity(New("plain")); got != SeverityError {
		t.Errorf("GetSeverity(plain) = %v, want %v", got, SeverityError)
	}
	ws := NewWorkspaceError("write", nil).WithSeverity(SeverityWarning)
	if got := GetSeverity(ws); got != SeverityWarning {
		t.Errorf("GetSeverity(ws) = %v, want %v", got, SeverityWarning)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("Wrap(nil) should return nil")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("Wrapf(nil) should return nil")
	}

	err := Wrapf(ErrWriteFailed, "writing %s", "a.txt")
	if got, want := err.Error(), "writing a.txt: write failed"; got != want {
		t.Errorf("Wrapf() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrWriteFailed) {
		t.Error("errors.Is(Wrapf(...), ErrWriteFailed) = false, want true")
	}
}
