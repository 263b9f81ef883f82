// Package errdefs defines the error kinds shared by the IR, the extension
// registry and the wire codec. Callers use errors.Is against the sentinels.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrConstruction is returned when an IR node is built with invalid parameters
	// (bad remap index, mismatched set arity, non-boolean condition, ...).
	ErrConstruction = errors.New("invalid construction")

	// ErrResolution is returned when a named call cannot be resolved to exactly
	// one function variant, or when a signature is missing from the library.
	ErrResolution = errors.New("function resolution failed")

	// ErrUnsupported is returned for node kinds or payloads the codec cannot handle.
	ErrUnsupported = errors.New("unsupported")

	// ErrDecodeIntegrity is returned when a wire message is internally inconsistent
	// (dangling anchor, wrong type, missing oneof, out-of-range value).
	ErrDecodeIntegrity = errors.New("decode integrity violation")

	// ErrUnhandledEnhancement is returned when a decoded relation or plan carries an
	// enhancement payload that the configured extension decoder does not understand.
	ErrUnhandledEnhancement = errors.New("unhandled enhancement")
)

// AnchorError reports a reference to a function or URI anchor that is not
// declared in the plan's extension table.
type AnchorError struct {
	Kind   string
	Anchor uint32
}

func (e AnchorError) Error() string {
	return fmt.Sprintf("unknown %s anchor %d", e.Kind, e.Anchor)
}

// Is reports AnchorError as an integrity violation.
func (e AnchorError) Is(target error) bool {
	return target == ErrDecodeIntegrity
}

// Constructionf wraps ErrConstruction with a formatted message.
func Constructionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConstruction, fmt.Sprintf(format, args...))
}

// Integrityf wraps ErrDecodeIntegrity with a formatted message.
func Integrityf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecodeIntegrity, fmt.Sprintf(format, args...))
}

// Unsupportedf wraps ErrUnsupported with a formatted message.
func Unsupportedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnsupported, fmt.Sprintf(format, args...))
}

// Resolutionf wraps ErrResolution with a formatted message.
func Resolutionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrResolution, fmt.Sprintf(format, args...))
}

// UnhandledEnhancementf wraps ErrUnhandledEnhancement with a formatted message.
func UnhandledEnhancementf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnhandledEnhancement, fmt.Sprintf(format, args...))
}
