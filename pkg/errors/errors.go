package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents a unique error code for categorizing errors
type ErrorCode string

const (
	// Source errors (1xxx, 2xxx)
	ErrCodeCorruptSource ErrorCode = "DWB1001"
	ErrCodeMissingSource ErrorCode = "DWB2001"

	// Matching and parsing issues (3xxx), always recovered locally
	ErrCodeUnparsableDate      ErrorCode = "DWB3001"
	ErrCodeUnresolvedReference ErrorCode = "DWB3002"

	// Result errors (4xxx)
	ErrCodeEmptyFactSet ErrorCode = "DWB4001"

	// Output errors (5xxx)
	ErrCodePublishFailed ErrorCode = "DWB5001"

	// Configuration errors (6xxx)
	ErrCodeConfigNotFound ErrorCode = "DWB6001"
	ErrCodeConfigInvalid  ErrorCode = "DWB6002"

	// SQL warehouse errors (7xxx)
	ErrCodeConnectionFailed ErrorCode = "DWB7001"
	ErrCodeWarehouseLoad    ErrorCode = "DWB7002"
	ErrCodeSQLTransaction   ErrorCode = "DWB7003"
	ErrCodeCredentials      ErrorCode = "DWB7004"

	// System errors (9xxx)
	ErrCodeInternal          ErrorCode = "DWB9001"
	ErrCodeResourceExhausted ErrorCode = "DWB9003"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "CRITICAL" // Run aborted, nothing published
	SeverityError    ErrorSeverity = "ERROR"    // Operation failed
	SeverityWarning  ErrorSeverity = "WARNING"  // Degraded but the run continues
	SeverityInfo     ErrorSeverity = "INFO"
)

// AppError represents a structured application error with context
type AppError struct {
	Code        ErrorCode
	Message     string
	Severity    ErrorSeverity
	Context     map[string]interface{}
	Cause       error
	Stack       string
	Timestamp   time.Time
	Recoverable bool
	Suggestions []string
}

// Error implements the error interface
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s: %s", e.Code, e.Severity, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\nCaused by: %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\nSuggestions:")
		for i, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  %d. %s", i+1, suggestion))
		}
	}

	return b.String()
}

// Unwrap returns the cause of the error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Context:   make(map[string]interface{}),
		Stack:     captureStack(),
		Timestamp: time.Now(),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	appErr := New(code, message)
	appErr.Cause = err

	var ae *AppError
	if errors.As(err, &ae) {
		for k, v := range ae.Context {
			appErr.Context[k] = v
		}
	}

	return appErr
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity sets the error severity
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithSuggestions adds recovery suggestions
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// AsRecoverable marks the error as recoverable
func (e *AppError) AsRecoverable() *AppError {
	e.Recoverable = true
	return e
}

func captureStack() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])

	var b strings.Builder
	frames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			b.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return b.String()
}

// Common error constructors

// MissingSourceError reports an absent raw extract. The build continues with an
// empty table for that source.
func MissingSourceError(source, entity, path string) *AppError {
	return New(ErrCodeMissingSource, fmt.Sprintf("No %s extract found for %s", source, entity)).
		WithContext("source", source).
		WithContext("entity", entity).
		WithContext("path", path).
		WithSeverity(SeverityWarning).
		AsRecoverable()
}

// CorruptSourceError reports an extract that exists but cannot be read as a table.
func CorruptSourceError(path string, cause error) *AppError {
	return Wrap(cause, ErrCodeCorruptSource, fmt.Sprintf("Extract %s is unreadable", path)).
		WithContext("path", path).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Re-run the extraction step for this source",
			"Check that the file is a comma-separated export with a header row",
		)
}

// PublishError reports a failure while writing warehouse tables.
func PublishError(table string, cause error) *AppError {
	return Wrap(cause, ErrCodePublishFailed, fmt.Sprintf("Failed to publish table %s", table)).
		WithContext("table", table).
		WithSeverity(SeverityCritical).
		WithSuggestions(
			"Check free disk space in the output directory",
			"Verify write permissions on the output directory",
		)
}

// ConfigError creates a configuration-related error
func ConfigError(message string, field string) *AppError {
	return New(ErrCodeConfigInvalid, message).
		WithContext("field", field).
		WithSuggestions(
			fmt.Sprintf("Check the '%s' configuration value", field),
			"Run 'dwbuild init' to write a default configuration",
		)
}

// ConnectionError creates a warehouse connection error
func ConnectionError(message string, cause error) *AppError {
	return Wrap(cause, ErrCodeConnectionFailed, message).
		WithSuggestions(
			"Check your network connection",
			"Verify the warehouse DSN and credentials",
		)
}

// EmptyFactSetError is returned to consumers that need at least one fact row.
func EmptyFactSetError() *AppError {
	return New(ErrCodeEmptyFactSet, "Fact table has no rows").
		WithSuggestions("Run 'dwbuild build' against non-empty order extracts first")
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Recoverable
	}
	return false
}

// GetErrorCode extracts the error code from an error
func GetErrorCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	return errors.Is(err, &AppError{Code: code})
}
