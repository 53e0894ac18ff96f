// Package errors provides structured error handling for Dirigo
package errors

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dirigo-idm/dirigo/pkg/types"
)

// ErrorCode represents specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrCodeMissingField  ErrorCode = "MISSING_FIELD"
	ErrCodeHostsRequired ErrorCode = "HOSTS_REQUIRED"

	// ID allocation errors
	ErrCodeIDOutOfRange ErrorCode = "ID_OUT_OF_RANGE"
	ErrCodeIDConflict   ErrorCode = "ID_CONFLICT"

	// Group resolution errors
	ErrCodeGroupNotFound    ErrorCode = "GROUP_NOT_FOUND"
	ErrCodeInvalidGroupMode ErrorCode = "INVALID_GROUP_MODE"

	// Lifecycle errors
	ErrCodeImmutableField ErrorCode = "IMMUTABLE_FIELD"
	ErrCodeNotActive      ErrorCode = "NOT_ACTIVE"
	ErrCodeAlreadyActive  ErrorCode = "ALREADY_ACTIVE"

	// Authentication/Authorization errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Resource errors
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrCodeConflict      ErrorCode = "CONFLICT"

	// System errors
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"

	// Directory collaborator errors
	ErrCodeDirectoryError    ErrorCode = "DIRECTORY_ERROR"
	ErrCodeConnectionFailed  ErrorCode = "CONNECTION_FAILED"
	ErrCodeQueryFailed       ErrorCode = "QUERY_FAILED"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"

	// Configuration errors
	ErrCodeConfigError    ErrorCode = "CONFIG_ERROR"
	ErrCodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
)

// DirigoError represents a structured error in Dirigo
type DirigoError struct {
	Type       types.ErrorType        `json:"type"`
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"stack_trace,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *DirigoError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (caused by: %v)", e.Code, e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *DirigoError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *DirigoError) WithDetail(key string, value interface{}) *DirigoError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID adds a request ID to the error
func (e *DirigoError) WithRequestID(requestID string) *DirigoError {
	e.RequestID = requestID
	return e
}

// WithStackTrace adds a stack trace to the error
func (e *DirigoError) WithStackTrace() *DirigoError {
	e.StackTrace = getStackTrace()
	return e
}

// ToTypes converts to types.DirigoError
func (e *DirigoError) ToTypes() *types.DirigoError {
	return &types.DirigoError{
		Type:    e.Type,
		Message: e.Message,
		Code:    string(e.Code),
		Details: e.Details,
	}
}

// NewDirigoError creates a new Dirigo error
func NewDirigoError(errType types.ErrorType, code ErrorCode, message string) *DirigoError {
	return &DirigoError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
}

// NewDirigoErrorWithCause creates a new Dirigo error with a cause
func NewDirigoErrorWithCause(errType types.ErrorType, code ErrorCode, message string, cause error) *DirigoError {
	return &DirigoError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Validation error constructors
func NewValidationError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeValidation, message)
}

func NewInvalidInputError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeInvalidInput, message)
}

func NewMissingFieldError(field string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeMissingField,
		fmt.Sprintf("missing required field: %s", field)).WithDetail("field", field)
}

// NewHostsRequiredError is returned when a byhost trust scope carries no hosts
func NewHostsRequiredError() *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeHostsRequired,
		"trust mode 'byhost' requires at least one host")
}

// ID allocation error constructors

// NewIDOutOfRangeError is returned for explicit IDs outside 1000..65534
func NewIDOutOfRangeError(id int) *DirigoError {
	return NewDirigoError(types.ErrorTypeAllocation, ErrCodeIDOutOfRange,
		fmt.Sprintf("id %d is outside the allowed range", id)).WithDetail("id", id)
}

// NewIDConflictError is returned when a requested ID is already in use
func NewIDConflictError(id int) *DirigoError {
	return NewDirigoError(types.ErrorTypeAllocation, ErrCodeIDConflict,
		fmt.Sprintf("id %d is already in use", id)).WithDetail("id", id)
}

// Group resolution error constructors

func NewGroupNotFoundError(gidNumber int) *DirigoError {
	return NewDirigoError(types.ErrorTypeResolution, ErrCodeGroupNotFound,
		fmt.Sprintf("no group with gidNumber %d", gidNumber)).WithDetail("gid_number", gidNumber)
}

func NewInvalidGroupModeError(mode string) *DirigoError {
	return NewDirigoError(types.ErrorTypeResolution, ErrCodeInvalidGroupMode,
		fmt.Sprintf("invalid primary group mode: %s", mode)).WithDetail("mode", mode)
}

// Lifecycle error constructors

func NewImmutableFieldError(field string) *DirigoError {
	return NewDirigoError(types.ErrorTypeLifecycle, ErrCodeImmutableField,
		fmt.Sprintf("field %s is immutable after creation", field)).WithDetail("field", field)
}

func NewNotActiveError(uid string) *DirigoError {
	return NewDirigoError(types.ErrorTypeLifecycle, ErrCodeNotActive,
		fmt.Sprintf("account %s has no POSIX attributes", uid)).WithDetail("uid", uid)
}

func NewAlreadyActiveError(uid string) *DirigoError {
	return NewDirigoError(types.ErrorTypeLifecycle, ErrCodeAlreadyActive,
		fmt.Sprintf("account %s already has POSIX attributes", uid)).WithDetail("uid", uid)
}

// Authentication/Authorization error constructors
func NewUnauthorizedError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeUnauthorized, ErrCodeUnauthorized, message)
}

func NewForbiddenError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeUnauthorized, ErrCodeForbidden, message)
}

func NewTokenExpiredError() *DirigoError {
	return NewDirigoError(types.ErrorTypeUnauthorized, ErrCodeTokenExpired, "token has expired")
}

func NewInvalidTokenError() *DirigoError {
	return NewDirigoError(types.ErrorTypeUnauthorized, ErrCodeInvalidToken, "invalid token")
}

// Resource error constructors
func NewNotFoundError(resource string) *DirigoError {
	return NewDirigoError(types.ErrorTypeNotFound, ErrCodeNotFound,
		fmt.Sprintf("%s not found", resource)).WithDetail("resource", resource)
}

func NewAlreadyExistsError(resource string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeAlreadyExists,
		fmt.Sprintf("%s already exists", resource)).WithDetail("resource", resource)
}

func NewConflictError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeConflict, message)
}

// System error constructors
func NewInternalError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeInternal, ErrCodeInternal, message)
}

func NewInternalErrorWithCause(message string, cause error) *DirigoError {
	return NewDirigoErrorWithCause(types.ErrorTypeInternal, ErrCodeInternal, message, cause)
}

func NewServiceUnavailableError(service string) *DirigoError {
	return NewDirigoError(types.ErrorTypeInternal, ErrCodeServiceUnavailable,
		fmt.Sprintf("%s service is unavailable", service)).WithDetail("service", service)
}

func NewTimeoutError(operation string) *DirigoError {
	return NewDirigoError(types.ErrorTypeInternal, ErrCodeTimeout,
		fmt.Sprintf("%s operation timed out", operation)).WithDetail("operation", operation)
}

// Directory collaborator error constructors

// NewDirectoryError wraps a directory backend failure. Collaborator errors
// are passed through the lifecycle operations unchanged.
func NewDirectoryError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeExternal, ErrCodeDirectoryError, message)
}

func NewDirectoryErrorWithCause(message string, cause error) *DirigoError {
	return NewDirigoErrorWithCause(types.ErrorTypeExternal, ErrCodeDirectoryError, message, cause)
}

func NewConnectionFailedError(target string) *DirigoError {
	return NewDirigoError(types.ErrorTypeExternal, ErrCodeConnectionFailed,
		fmt.Sprintf("failed to connect to %s", target)).WithDetail("target", target)
}

func NewQueryFailedError(query string, cause error) *DirigoError {
	return NewDirigoErrorWithCause(types.ErrorTypeExternal, ErrCodeQueryFailed,
		"query execution failed", cause).WithDetail("query", query)
}

func NewTransactionFailedError(cause error) *DirigoError {
	return NewDirigoErrorWithCause(types.ErrorTypeExternal, ErrCodeTransactionFailed,
		"transaction failed", cause)
}

// Configuration error constructors
func NewConfigError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeConfigError, message)
}

func NewConfigNotFoundError(configPath string) *DirigoError {
	return NewDirigoError(types.ErrorTypeNotFound, ErrCodeConfigNotFound,
		fmt.Sprintf("configuration file not found: %s", configPath)).WithDetail("config_path", configPath)
}

func NewConfigInvalidError(message string) *DirigoError {
	return NewDirigoError(types.ErrorTypeValidation, ErrCodeConfigInvalid, message)
}

// Helper functions
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var trace strings.Builder
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		trace.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
	}

	return trace.String()
}

// IsDirigoError checks if an error is a DirigoError
func IsDirigoError(err error) bool {
	_, ok := err.(*DirigoError)
	return ok
}

// GetDirigoError extracts a DirigoError from an error
func GetDirigoError(err error) *DirigoError {
	if dirigoErr, ok := err.(*DirigoError); ok {
		return dirigoErr
	}
	return nil
}

// HasCode reports whether err is a DirigoError carrying the given code
func HasCode(err error, code ErrorCode) bool {
	if dirigoErr, ok := err.(*DirigoError); ok {
		return dirigoErr.Code == code
	}
	return false
}

// WrapError wraps an error as a DirigoError
func WrapError(err error, errType types.ErrorType, code ErrorCode, message string) *DirigoError {
	return NewDirigoErrorWithCause(errType, code, message, err)
}

// ErrorList represents a list of errors
type ErrorList struct {
	Errors []*DirigoError `json:"errors"`
}

// Error implements the error interface
func (el *ErrorList) Error() string {
	var messages []string
	for _, err := range el.Errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Add adds an error to the list
func (el *ErrorList) Add(err *DirigoError) {
	el.Errors = append(el.Errors, err)
}

// HasErrors returns true if there are errors
func (el *ErrorList) HasErrors() bool {
	return len(el.Errors) > 0
}

// ToError returns the ErrorList as an error if it has errors, otherwise nil
func (el *ErrorList) ToError() error {
	if el.HasErrors() {
		return el
	}
	return nil
}

// NewErrorList creates a new error list
func NewErrorList() *ErrorList {
	return &ErrorList{
		Errors: make([]*DirigoError, 0),
	}
}

// Collect collects multiple errors into an ErrorList
func Collect(errors ...*DirigoError) *ErrorList {
	el := NewErrorList()
	for _, err := range errors {
		if err != nil {
			el.Add(err)
		}
	}
	return el
}
