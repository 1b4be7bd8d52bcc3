package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCCode(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{nil, codes.OK},
		{MalformedRequest("bad %s", "body"), codes.InvalidArgument},
		{NewAppError(CodeInvalidPolicy, "weights", ErrInvalidPolicy), codes.Internal},
		{fmt.Errorf("get: %w", ErrNotFound), codes.NotFound},
		{NewAppError(CodeTransition, "submitted", ErrInvalidTransition), codes.FailedPrecondition},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{NewAppError(CodeDatabase, "query", ErrDatabase), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GRPCCode(tt.err), fmt.Sprint(tt.err))
	}
}

func TestToStatusHidesInternalErrors(t *testing.T) {
	st := status.Convert(ToStatus(NewAppError(CodeDatabase, "password=secret", ErrDatabase)))
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())

	st = status.Convert(ToStatus(MalformedRequest("lineItems must be an array")))
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Contains(t, st.Message(), "lineItems must be an array")

	already := status.Error(codes.Unavailable, "down")
	assert.Equal(t, already, ToStatus(already))
	assert.NoError(t, ToStatus(nil))
}

func TestAppErrorUnwrap(t *testing.T) {
	err := NewAppError(CodeNotFound, "invoice", ErrNotFound)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "NOT_FOUND: invoice: resource not found", err.Error())
}
