package common

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Application error codes.
const (
	CodeAdmission       = "ADMISSION_REJECTED"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeConfig          = "CONFIG_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	// Field is the offending input field, when there is exactly one.
	Field string
	Cause error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewAdmissionError reports a batch rejected before any job record exists.
func NewAdmissionError(field, message string) *AppError {
	return &AppError{Code: CodeAdmission, Message: message, Field: field, Cause: ErrValidation}
}

// NotFoundf returns a NOT_FOUND AppError wrapping ErrNotFound.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Cause: ErrNotFound}
}

// CodeOf returns the AppError code carried by err, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsAdmission reports whether err is a synchronous admission rejection.
func IsAdmission(err error) bool {
	c := CodeOf(err)
	return c == CodeAdmission || c == CodeRateLimited
}

// IsNotFound reports whether err denotes a missing (or inaccessible) resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || CodeOf(err) == CodeNotFound
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

// GRPCStatus converts an application error into a gRPC status error.
// Unknown errors become Internal without leaking their text.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		if errors.Is(err, ErrNotFound) {
			return NotFoundError("not found")
		}
		return InternalError("internal error")
	}
	switch appErr.Code {
	case CodeAdmission, CodeInvalidArgument:
		return status.Error(codes.InvalidArgument, appErr.Message)
	case CodeRateLimited:
		return status.Error(codes.ResourceExhausted, appErr.Message)
	case CodeNotFound:
		return status.Error(codes.NotFound, appErr.Message)
	case CodeConflict:
		return status.Error(codes.AlreadyExists, appErr.Message)
	case CodeUnavailable:
		return status.Error(codes.Unavailable, appErr.Message)
	}
	return InternalError(appErr.Message)
}

// HTTPStatus maps err to an HTTP status code.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case CodeAdmission, CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
