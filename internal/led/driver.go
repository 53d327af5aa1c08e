package led

import (
	"context"
	"errors"

	"github.com/smazurov/statuslight/internal/color"
)

var (
	// ErrIndexOutOfRange is returned by Surface.Set for an index past the
	// last pixel.
	ErrIndexOutOfRange = errors.New("led: index out of range")
	// ErrInvalidPixelCount is returned when a surface or driver is created
	// with fewer pixels than it needs.
	ErrInvalidPixelCount = errors.New("led: invalid pixel count")
	// ErrUnknownDriver is returned by New for an unrecognized driver name.
	ErrUnknownDriver = errors.New("led: unknown driver")
)

// Driver pushes a full frame of pixels to hardware.
// Implementations handle board-specific wiring and wire formats.
type Driver interface {
	// Transmit sends pixels and returns once they are latched or the
	// transmission failed.
	Transmit(ctx context.Context, pixels []color.Color) error

	// Info describes the driver for diagnostics.
	Info() Info

	// Close releases the hardware. The LED is left dark when possible.
	Close() error
}

// Info describes a driver.
type Info struct {
	Driver string `json:"driver" doc:"Driver name"`
	Target string `json:"target,omitempty" doc:"Device, port or LED name the driver writes to"`
	Order  string `json:"order,omitempty" doc:"Wire byte order"`
	Pixels int    `json:"pixels" doc:"Number of pixels the driver accepts"`
}
