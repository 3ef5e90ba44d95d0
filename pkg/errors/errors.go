package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Precondition errors
	ErrNotTrained         = errors.New("attack must first be trained")
	ErrLengthMismatch     = errors.New("length mismatch")
	ErrSampleTooLarge     = errors.New("sample size exceeds dataset size")
	ErrNotSingleRow       = errors.New("dataset must contain exactly one record")
	ErrUnsupportedProbe   = errors.New("unsupported containment probe")
	ErrInvalidLabel       = errors.New("invalid membership label")
	ErrMissingThreatModel = errors.New("threat model is required when no training data is given")
	ErrEmptyInput         = errors.New("empty input")
	ErrInvalidTransition  = errors.New("invalid job status transition")

	// Lookup errors
	ErrIndexOutOfRange = errors.New("record index out of range")
	ErrRecordNotFound  = errors.New("record not found in dataset")
	ErrDuplicateIndex  = errors.New("duplicate record index")
	ErrJobNotFound     = errors.New("job not found")

	// Ambiguity errors
	ErrAmbiguousRecord = errors.New("more than one copy of the record is present in the dataset")

	// Incompatibility errors
	ErrSchemaMismatch = errors.New("datasets must have the same data description")

	// Schema / validation errors
	ErrInvalidSchema         = errors.New("invalid data description")
	ErrInvalidRepresentation = errors.New("unsupported column representation")
	ErrInvalidValue          = errors.New("value does not match column representation")

	// Storage errors
	ErrStorageNotFound    = errors.New("storage backend not found")
	ErrStorageReadFailed  = errors.New("storage read failed")
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrDataNotFound       = errors.New("data not found")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypePrecondition    ErrorType = "precondition"
	ErrorTypeLookup          ErrorType = "lookup"
	ErrorTypeAmbiguity       ErrorType = "ambiguity"
	ErrorTypeIncompatibility ErrorType = "incompatibility"
	ErrorTypeValidation      ErrorType = "validation"
	ErrorTypeAttack          ErrorType = "attack"
	ErrorTypeStorage         ErrorType = "storage"
	ErrorTypeConfiguration   ErrorType = "configuration"
	ErrorTypeInternal        ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType              `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(format string, args ...interface{}) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		Cause:      err,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewPreconditionError reports a caller bug: the operation was invoked in a
// state or with arguments it does not accept. cause is one of the sentinels.
func NewPreconditionError(cause error, format string, args ...interface{}) *AppError {
	return WrapError(cause, ErrorTypePrecondition, CodePrecondition, fmt.Sprintf(format, args...))
}

// NewLookupError creates a lookup error
func NewLookupError(cause error, format string, args ...interface{}) *AppError {
	return WrapError(cause, ErrorTypeLookup, CodeLookup, fmt.Sprintf(format, args...))
}

// NewAmbiguityError creates an ambiguity error
func NewAmbiguityError(format string, args ...interface{}) *AppError {
	return WrapError(ErrAmbiguousRecord, ErrorTypeAmbiguity, CodeAmbiguous, fmt.Sprintf(format, args...))
}

// NewIncompatibilityError creates a schema incompatibility error
func NewIncompatibilityError(format string, args ...interface{}) *AppError {
	return WrapError(ErrSchemaMismatch, ErrorTypeIncompatibility, CodeSchemaMismatch, fmt.Sprintf(format, args...))
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(message string) *AppError {
	return WrapError(ErrInvalidConfiguration, ErrorTypeConfiguration, CodeInvalidConfig, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// TypeOf returns the ErrorType of the first AppError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypePrecondition, ErrorTypeValidation, ErrorTypeIncompatibility:
		return 400
	case ErrorTypeLookup:
		return 404
	case ErrorTypeAmbiguity:
		return 409
	case ErrorTypeAttack:
		return 422
	case ErrorTypeConfiguration:
		return 503
	default:
		return 500
	}
}

// ErrorResponse represents an error response for APIs
type ErrorResponse struct {
	Error     *AppError `json:"error"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp string    `json:"timestamp"`
	Path      string    `json:"path,omitempty"`
}

// Error codes for different error scenarios
const (
	CodePrecondition     = "PRECONDITION_FAILED"
	CodeLookup           = "LOOKUP_FAILED"
	CodeAmbiguous        = "AMBIGUOUS_RECORD"
	CodeSchemaMismatch   = "SCHEMA_MISMATCH"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidSchema    = "INVALID_SCHEMA"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeClassifierFailed = "CLASSIFIER_FAILED"
	CodeSamplingFailed   = "SAMPLING_FAILED"
	CodeGenerationFailed = "GENERATION_FAILED"
	CodeStorageError     = "STORAGE_ERROR"
	CodeReadFailed       = "READ_FAILED"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeDataNotFound     = "DATA_NOT_FOUND"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeInternalError    = "INTERNAL_ERROR"
)
