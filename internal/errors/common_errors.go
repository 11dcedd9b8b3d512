package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeFileNotFound ErrorType = "FILE_NOT_FOUND"
	ErrTypeFileFormat   ErrorType = "FILE_FORMAT"
	ErrTypeDataQuality  ErrorType = "DATA_QUALITY"
	ErrTypeSchema       ErrorType = "SCHEMA"
	ErrTypeArtifact     ErrorType = "ARTIFACT"
	ErrTypeConfig       ErrorType = "CONFIG"
	ErrTypeValidation   ErrorType = "VALIDATION"
	ErrTypeNotFound     ErrorType = "NOT_FOUND"
)

// Pipeline stages used in error context
const (
	StageLoad      = "load"
	StageClean     = "clean"
	StageAggregate = "aggregate"
	StageReport    = "report"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Stage   string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Type)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s] %s", e.Type, e.Stage)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by type, so sentinel values such as
// ErrDataQuality work with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Type == e.Type
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, stage, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Stage:   stage,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// Sentinels for errors.Is checks by type
var (
	ErrFileNotFound = &AppError{Type: ErrTypeFileNotFound}
	ErrFileFormat   = &AppError{Type: ErrTypeFileFormat}
	ErrDataQuality  = &AppError{Type: ErrTypeDataQuality}
	ErrSchema       = &AppError{Type: ErrTypeSchema}
	ErrArtifact     = &AppError{Type: ErrTypeArtifact}
	ErrConfig       = &AppError{Type: ErrTypeConfig}
	ErrNotFound     = &AppError{Type: ErrTypeNotFound}
)

// NewFileNotFoundError reports a missing input file
func NewFileNotFoundError(path string, cause error) *AppError {
	return NewAppError(ErrTypeFileNotFound, StageLoad, fmt.Sprintf("input file %q not found", path), cause).
		WithContext("file", path)
}

// NewFileFormatError reports an unreadable or unsupported input file
func NewFileFormatError(path, message string, cause error) *AppError {
	return NewAppError(ErrTypeFileFormat, StageLoad, fmt.Sprintf("%s: %s", path, message), cause).
		WithContext("file", path)
}

// NewDataQualityError reports a dataset that is empty after cleaning
func NewDataQualityError(source, message string) *AppError {
	return NewAppError(ErrTypeDataQuality, StageClean, fmt.Sprintf("%s: %s", source, message), nil).
		WithContext("file", source)
}

// NewSchemaError reports a required column that is missing or mistyped
func NewSchemaError(stage, column, message string) *AppError {
	return NewAppError(ErrTypeSchema, stage, fmt.Sprintf("column %q: %s", column, message), nil).
		WithContext("column", column)
}

// NewArtifactError reports a single report artifact that could not be produced
func NewArtifactError(artifact, message string, cause error) *AppError {
	return NewAppError(ErrTypeArtifact, StageReport, fmt.Sprintf("%s: %s", artifact, message), cause).
		WithContext("artifact", artifact)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, "", message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, "", message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, "", fmt.Sprintf("%s not found", resource), nil)
}

// TypeOf returns the ErrorType of the first AppError in the chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether any AppError in the chain has the given type
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &AppError{Type: errType})
}
