package certificate

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is the base fault for illegal state transitions.
	// Wrapped messages carry the specific violation.
	ErrInvalidOperation = errors.New("certificate: invalid operation")
	// ErrConcurrencyConflict is returned by stores when the expected stream
	// version does not match the recorded version. The append has no effect.
	ErrConcurrencyConflict = errors.New("certificate: concurrency conflict")
	// ErrNotFound is returned when no events exist for an aggregate id.
	ErrNotFound = errors.New("certificate: aggregate not found")
	// ErrUnsupportedPointType signals schema drift on an inbound registry
	// message. It is surfaced, never retried.
	ErrUnsupportedPointType = errors.New("certificate: unsupported point type")
	// ErrUnknownEvent is returned when a stored event cannot be decoded.
	ErrUnknownEvent = errors.New("certificate: unknown event type")
	// ErrVersionBeyondStream is returned when loading at a version past the
	// stream head; this is a caller fault, not a missing aggregate.
	ErrVersionBeyondStream = errors.New("certificate: version beyond stream head")
	// ErrCorruptStream is returned when a replayed stream violates the state
	// machine, e.g. does not begin with a created event.
	ErrCorruptStream = errors.New("certificate: corrupt event stream")
)

func invalidOperation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}
