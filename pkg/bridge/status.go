package bridge

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	nerrors "github.com/marmos91/nexusd/pkg/errors"
	"github.com/marmos91/nexusd/pkg/reactor"
)

// ToStatus converts an operation error into a status error. Categorized
// errors map by category; reactor scheduling failures map to
// ResourceExhausted (queue full) or Unavailable (reactor stopped); anything
// else is Internal. Errors that already carry a status pass through.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return err
	}

	switch {
	case errors.Is(err, reactor.ErrQueueFull):
		return status.Error(codes.ResourceExhausted, "ENOMEM")
	case errors.Is(err, reactor.ErrShutdown):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}

	return status.Error(Code(nerrors.CodeOf(err)), err.Error())
}

// Code maps an error category onto a status code.
func Code(c nerrors.ErrorCode) codes.Code {
	switch c {
	case nerrors.ErrInvalidArgument:
		return codes.InvalidArgument
	case nerrors.ErrResourceExhausted:
		return codes.ResourceExhausted
	case nerrors.ErrDataLoss:
		return codes.DataLoss
	case nerrors.ErrReservationConflict:
		return codes.Aborted
	case nerrors.ErrNotFound:
		return codes.NotFound
	case nerrors.ErrAlreadyExists:
		return codes.AlreadyExists
	case nerrors.ErrFailedPrecondition:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
