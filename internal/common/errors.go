package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
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
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInternal          = errors.New("internal error")
	ErrDatabase          = errors.New("database error")
	ErrMalformedRequest  = errors.New("malformed request")
	ErrInvalidPolicy     = errors.New("invalid reconciliation policy")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error codes carried by AppError.
const (
	CodeMalformedRequest = "MALFORMED_REQUEST"
	CodeInvalidPolicy    = "INVALID_POLICY"
	CodeConfig           = "CONFIG_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeDatabase         = "DATABASE_ERROR"
	CodeTransition       = "INVALID_TRANSITION"
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// MalformedRequest wraps a structural request failure.
func MalformedRequest(format string, args ...any) *AppError {
	return NewAppError(CodeMalformedRequest, fmt.Sprintf(format, args...), ErrMalformedRequest)
}

// gRPC error helpers
func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

// GRPCCode maps an application error onto a gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case err == nil:
		return codes.OK
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrInvalidInput):
		return codes.InvalidArgument
	case errors.Is(err, ErrNotFound):
		return codes.NotFound
	case errors.Is(err, ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	default:
		return codes.Internal
	}
}

// ToStatus converts err to a gRPC status error, keeping the message of
// client-facing failures and hiding internal ones.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := GRPCCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
