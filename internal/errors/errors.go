package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Transport
	ErrCodeConnectFailed ErrorCode = "CONNECT_FAILED"
	ErrCodeSendFailed    ErrorCode = "SEND_FAILED"
	ErrCodeNotConnected  ErrorCode = "NOT_CONNECTED"
	ErrCodeLoggedOut     ErrorCode = "LOGGED_OUT"

	// Media
	ErrCodeMediaFetch ErrorCode = "MEDIA_FETCH_FAILED"

	// Generation
	ErrCodeGeneration ErrorCode = "GENERATION_FAILED"

	// Protocol
	ErrCodeMalformedEvent ErrorCode = "MALFORMED_EVENT"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func ConnectFailed(cause error) *AppError {
	return Wrap(ErrCodeConnectFailed, "Failed to connect to messaging network", cause)
}

func SendFailed(conversationID string, cause error) *AppError {
	return Wrap(ErrCodeSendFailed, "Failed to send message", cause).
		WithDetails(map[string]string{"chatId": conversationID})
}

func NotConnected() *AppError {
	return New(ErrCodeNotConnected, "No active connection to messaging network")
}

func LoggedOut() *AppError {
	return New(ErrCodeLoggedOut, "Session logged out; re-pairing required")
}

func MediaFetch(cause error) *AppError {
	return Wrap(ErrCodeMediaFetch, "Failed to fetch media", cause)
}

func Generation(cause error) *AppError {
	return Wrap(ErrCodeGeneration, "Text generation failed", cause)
}

func MalformedEvent(reason string) *AppError {
	return New(ErrCodeMalformedEvent, fmt.Sprintf("Malformed transport event: %s", reason))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
