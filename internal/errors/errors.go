package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error

	// Inform is the raw routine status code for domain failures.
	Inform    int32
	hasInform bool
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any *AppError carrying the same code, so sentinels like
// ErrContractViolation work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:      appErr.Code,
			Message:   message,
			Cause:     err,
			Inform:    appErr.Inform,
			hasInform: appErr.hasInform,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:      code,
			Message:   appErr.Message,
			Cause:     appErr.Cause,
			Inform:    appErr.Inform,
			hasInform: appErr.hasInform,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// StatusCode returns the raw routine status code carried by err, if any.
func StatusCode(err error) (int32, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.hasInform {
		return appErr.Inform, true
	}
	return 0, false
}

// Predefined error codes
const (
	CodeConfigInvalid     = "CONFIG_INVALID"
	CodeInternalError     = "INTERNAL_ERROR"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeInvalidDimension  = "INVALID_DIMENSION"
	CodeNotPSD            = "NOT_POSITIVE_SEMIDEFINITE"
	CodeInvalidBounds     = "INVALID_BOUNDS"
	CodeUnrecognized      = "UNRECOGNIZED_STATUS"
	CodeRoutineAborted    = "ROUTINE_ABORTED"
)

// Sentinels for errors.Is; only the code is compared.
var (
	ErrConfigInvalid     = New(CodeConfigInvalid, "configuration invalid")
	ErrContractViolation = New(CodeContractViolation, "contract violation")
	ErrInvalidDimension  = New(CodeInvalidDimension, "invalid dimensionality selection")
	ErrNotPSD            = New(CodeNotPSD, "covariance matrix not positive semidefinite")
	ErrInvalidBounds     = New(CodeInvalidBounds, "invalid bounds supplied")
	ErrUnrecognized      = New(CodeUnrecognized, "unrecognized status code")
	ErrRoutineAborted    = New(CodeRoutineAborted, "routine aborted")
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// ContractViolation reports caller-side shape problems detected before a routine call.
func ContractViolation(format string, args ...interface{}) *AppError {
	return New(CodeContractViolation, fmt.Sprintf(format, args...))
}

// RoutineFailure builds a domain failure reported by the routine's status code.
func RoutineFailure(code, message string, inform int32) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Inform:    inform,
		hasInform: true,
	}
}

// UnrecognizedStatus reports a status code outside the documented set.
func UnrecognizedStatus(inform int32) *AppError {
	return RoutineFailure(CodeUnrecognized, fmt.Sprintf("unrecognized status code %d", inform), inform)
}

// RoutineAborted wraps a panic value recovered from a guarded routine call.
func RoutineAborted(recovered interface{}) *AppError {
	var cause error
	switch v := recovered.(type) {
	case error:
		cause = v
	default:
		cause = fmt.Errorf("%v", v)
	}
	return &AppError{
		Code:    CodeRoutineAborted,
		Message: "routine aborted while holding the invocation gate",
		Cause:   cause,
	}
}
