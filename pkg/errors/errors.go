// Package errors provides structured error handling for reposcan with categorization,
// severity levels, and contextual information that the tool boundary can surface
// as machine-readable error names.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrorTypeUnknown represents an unknown error type
	ErrorTypeUnknown ErrorType = iota

	// ErrorTypeNotFound represents a path or resource that does not exist
	ErrorTypeNotFound

	// ErrorTypeInvalidInput represents malformed URLs, empty tokens and similar
	ErrorTypeInvalidInput

	// ErrorTypeRemoteOperation represents clone, fetch or hosting API failures
	ErrorTypeRemoteOperation

	// ErrorTypeTimeout represents an external process exceeding its budget
	ErrorTypeTimeout

	// ErrorTypeDecryption represents vault ciphertext that could not be opened
	ErrorTypeDecryption

	// ErrorTypeFileSystem represents file system errors
	ErrorTypeFileSystem

	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration
)

// String returns the name reported in the error field of tool results
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeNotFound:
		return "NotFound"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	case ErrorTypeRemoteOperation:
		return "RemoteOperationFailed"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeDecryption:
		return "DecryptionFailed"
	case ErrorTypeFileSystem:
		return "FileSystem"
	case ErrorTypeConfiguration:
		return "Configuration"
	default:
		return "Unknown"
	}
}

// Severity represents the severity level of an error
type Severity int

const (
	// SeverityLow represents low severity errors (warnings)
	SeverityLow Severity = iota

	// SeverityMedium represents medium severity errors (recoverable)
	SeverityMedium

	// SeverityHigh represents high severity errors (critical)
	SeverityHigh
)

// String returns a string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// scanError represents a structured error with additional context
type scanError struct {
	errorType   ErrorType
	severity    Severity
	message     string
	cause       error
	context     map[string]interface{}
	recoverable bool
	suggestions []string
}

// Error implements the error interface
func (e *scanError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s:%s]", e.errorType.String(), e.severity.String()))
	parts = append(parts, e.message)

	if e.cause != nil {
		parts = append(parts, fmt.Sprintf("caused by: %s", e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

// Message returns the human-readable message without type or cause decoration
func (e *scanError) Message() string {
	return e.message
}

// Type returns the error type
func (e *scanError) Type() ErrorType {
	return e.errorType
}

// Severity returns the error severity
func (e *scanError) Severity() Severity {
	return e.severity
}

// Cause returns the underlying cause of the error
func (e *scanError) Cause() error {
	return e.cause
}

// Context returns the error context
func (e *scanError) Context() map[string]interface{} {
	return e.context
}

// IsRecoverable returns whether the error is recoverable
func (e *scanError) IsRecoverable() bool {
	return e.recoverable
}

// Suggestions returns suggested actions to resolve the error
func (e *scanError) Suggestions() []string {
	return e.suggestions
}

// Unwrap returns the underlying error for compatibility with errors.Unwrap
func (e *scanError) Unwrap() error {
	return e.cause
}

// ErrorBuilder helps construct structured errors
type ErrorBuilder struct {
	errorType   ErrorType
	severity    Severity
	message     string
	cause       error
	context     map[string]interface{}
	recoverable bool
	suggestions []string
}

// NewError creates a new error builder
func NewError(errorType ErrorType) *ErrorBuilder {
	return &ErrorBuilder{
		errorType:   errorType,
		severity:    SeverityMedium,
		context:     make(map[string]interface{}),
		recoverable: false,
		suggestions: []string{},
	}
}

// WithMessage sets the error message
func (eb *ErrorBuilder) WithMessage(message string) *ErrorBuilder {
	eb.message = message
	return eb
}

// WithMessagef sets the error message with formatting
func (eb *ErrorBuilder) WithMessagef(format string, args ...interface{}) *ErrorBuilder {
	eb.message = fmt.Sprintf(format, args...)
	return eb
}

// WithCause sets the underlying cause of the error
func (eb *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	eb.cause = cause
	return eb
}

// WithSeverity sets the error severity
func (eb *ErrorBuilder) WithSeverity(severity Severity) *ErrorBuilder {
	eb.severity = severity
	return eb
}

// WithContext adds context information
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRecoverable marks the error as recoverable
func (eb *ErrorBuilder) WithRecoverable(recoverable bool) *ErrorBuilder {
	eb.recoverable = recoverable
	return eb
}

// WithSuggestion adds a suggested action
func (eb *ErrorBuilder) WithSuggestion(suggestion string) *ErrorBuilder {
	eb.suggestions = append(eb.suggestions, suggestion)
	return eb
}

// WithSuggestions adds multiple suggested actions
func (eb *ErrorBuilder) WithSuggestions(suggestions ...string) *ErrorBuilder {
	eb.suggestions = append(eb.suggestions, suggestions...)
	return eb
}

// Build creates the final error
func (eb *ErrorBuilder) Build() error {
	return &scanError{
		errorType:   eb.errorType,
		severity:    eb.severity,
		message:     eb.message,
		cause:       eb.cause,
		context:     eb.context,
		recoverable: eb.recoverable,
		suggestions: eb.suggestions,
	}
}

// Convenience functions for common error types

// NotFoundError creates an error for a missing path or resource
func NotFoundError(what, path string) error {
	return NewError(ErrorTypeNotFound).
		WithMessagef("%s not found: %s", what, path).
		WithSeverity(SeverityLow).
		WithContext("path", path).
		Build()
}

// InvalidInputError creates an error for malformed caller input
func InvalidInputError(message string) error {
	return NewError(ErrorTypeInvalidInput).
		WithMessage(message).
		WithSeverity(SeverityLow).
		WithRecoverable(true).
		Build()
}

// RemoteOperationError creates an error for a failed clone, fetch or API call
func RemoteOperationError(operation string, cause error) error {
	return NewError(ErrorTypeRemoteOperation).
		WithMessagef("%s failed", operation).
		WithCause(cause).
		WithSeverity(SeverityMedium).
		WithRecoverable(true).
		WithContext("operation", operation).
		WithSuggestion("Check network connectivity and repository permissions").
		WithSuggestion("Supply a personal access token for private repositories").
		Build()
}

// TimeoutError creates an error for an external process that ran too long
func TimeoutError(command string, limit time.Duration) error {
	return NewError(ErrorTypeTimeout).
		WithMessagef("%s timed out after %s", command, limit.String()).
		WithSeverity(SeverityMedium).
		WithRecoverable(true).
		WithContext("command", command).
		Build()
}

// DecryptionError creates an error for vault ciphertext that failed to open
func DecryptionError(cause error) error {
	return NewError(ErrorTypeDecryption).
		WithMessage("failed to decrypt stored token").
		WithCause(cause).
		WithSeverity(SeverityHigh).
		Build()
}

// FileSystemError creates an error for a failed file system operation
func FileSystemError(operation, path string, cause error) error {
	return NewError(ErrorTypeFileSystem).
		WithMessagef("failed to %s %s", operation, path).
		WithCause(cause).
		WithSeverity(SeverityMedium).
		WithContext("path", path).
		Build()
}

// ConfigurationError creates a configuration error
func ConfigurationError(message string) error {
	return NewError(ErrorTypeConfiguration).
		WithMessage(message).
		WithSeverity(SeverityHigh).
		WithRecoverable(true).
		WithSuggestion("Check your configuration file").
		WithSuggestion("Run 'reposcan config validate' to verify settings").
		Build()
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Type checking functions

func asScanError(err error) (*scanError, bool) {
	var se *scanError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsType checks if an error, or any error it wraps, is of a specific type
func IsType(err error, errorType ErrorType) bool {
	if se, ok := asScanError(err); ok {
		return se.Type() == errorType
	}
	return false
}

// TypeOf returns the type of the outermost structured error in the chain
func TypeOf(err error) ErrorType {
	if se, ok := asScanError(err); ok {
		return se.Type()
	}
	return ErrorTypeUnknown
}

// MessageOf returns the undecorated message of a structured error, or err.Error()
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := asScanError(err); ok && se.Message() != "" {
		return se.Message()
	}
	return err.Error()
}

// IsSeverity checks if an error has a specific severity
func IsSeverity(err error, severity Severity) bool {
	if se, ok := asScanError(err); ok {
		return se.Severity() == severity
	}
	return false
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	if se, ok := asScanError(err); ok {
		return se.IsRecoverable()
	}
	return false
}

// GetSuggestions extracts suggestions from an error
func GetSuggestions(err error) []string {
	if se, ok := asScanError(err); ok {
		return se.Suggestions()
	}
	return []string{}
}

// GetContext extracts context from an error
func GetContext(err error) map[string]interface{} {
	if se, ok := asScanError(err); ok {
		return se.Context()
	}
	return nil
}
