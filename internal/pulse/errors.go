package pulse

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned for a missing channel, an unknown color
	// order or timing that cannot be represented at the channel resolution.
	ErrInvalidConfig = errors.New("pulse: invalid configuration")
	// ErrTransmitTimeout is returned when the channel did not finish clocking
	// out a frame within the encoder timeout.
	ErrTransmitTimeout = errors.New("pulse: transmission timed out")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("pulse: encoder closed")
	// ErrMalformed is returned by Decode for a pulse train that does not
	// match the timing.
	ErrMalformed = errors.New("pulse: malformed pulse train")
)

// EncodeError wraps a channel failure with the step that failed.
type EncodeError struct {
	Op  string
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("pulse %s: %v", e.Op, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}
