package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	err := NewInvalidArgument("foo://bar", "unsupported uri scheme")
	assert.Equal(t, "unsupported uri scheme (foo://bar)", err.Error())

	wrapped := Wrap(ErrInternal, stderrors.New("disk gone"), "write failed")
	assert.Equal(t, "write failed: disk gone", wrapped.Error())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"plain error is internal", stderrors.New("x"), ErrInternal},
		{"direct", New(ErrDataLoss, "x"), ErrDataLoss},
		{"wrapped with fmt", fmt.Errorf("ctx: %w", NewNotFound("nexus", "n1")), ErrNotFound},
		{"outermost category wins", Wrap(ErrInternal, NewReservationConflict("ns"), "io"), ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestIsReservationConflictLooksThroughCauses(t *testing.T) {
	err := Wrap(ErrInternal, NewReservationConflict("nqn:x"), "child write")
	assert.True(t, IsReservationConflict(err))
	assert.False(t, IsReservationConflict(New(ErrInternal, "io")))
}

func TestErrorsIsByCode(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NewNotFound("pool", "tpool"))
	assert.True(t, stderrors.Is(err, &Error{Code: ErrNotFound}))
	assert.False(t, stderrors.Is(err, &Error{Code: ErrAlreadyExists}))
}

func TestErrorCodeString(t *testing.T) {
	assert.Equal(t, "ReservationConflict", ErrReservationConflict.String())
	assert.Equal(t, "Unknown(42)", ErrorCode(42).String())
}
