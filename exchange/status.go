package exchange

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/hugr-lab/substrait-go/errdefs"
)

// toStatus maps plan errors to gRPC status codes. Errors that already
// carry a status pass through unchanged.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, errdefs.ErrDecodeIntegrity), errors.Is(err, errdefs.ErrConstruction):
		code = codes.InvalidArgument
	case errors.Is(err, errdefs.ErrResolution):
		code = codes.NotFound
	case errors.Is(err, errdefs.ErrUnsupported), errors.Is(err, errdefs.ErrUnhandledEnhancement):
		code = codes.Unimplemented
	}
	return status.Error(code, err.Error())
}
