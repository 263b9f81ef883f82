// Package recovery converts panics in caller-supplied code into errors.
// Used around extension decoders and exchange service handlers so a faulty
// payload decoder cannot crash the process.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrPanic is wrapped by errors produced from a recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns the zero value and an error wrapping ErrPanic.
//
// Example:
//
//	payload, err := recovery.RecoverToValue(logger, "DecodeEnhancement", func() (relation.Payload, error) {
//	    return dec.DecodeEnhancement(a)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

// RecoverToStatus wraps a gRPC handler body. If it panics, the panic is
// logged and converted to a codes.Internal status.
func RecoverToStatus[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()

			logger.Error("Panic recovered",
				"operation", operation,
				"panic", r,
				"stack", string(stack),
			)

			var zero T
			result = zero
			err = status.Errorf(codes.Internal, "%s panicked: %v", operation, r)
		}
	}()

	return fn()
}
