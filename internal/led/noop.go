package led

import (
	"context"

	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/logging"
)

// noop implements Driver for systems without a status LED
type noop struct {
	logger logging.Logger
	pixels int
}

// newNoop creates a driver that only logs frames
func newNoop(logger logging.Logger, pixels int) *noop {
	return &noop{
		logger: logger,
		pixels: pixels,
	}
}

// Transmit logs the first pixel but performs no actual LED control
func (n *noop) Transmit(_ context.Context, pixels []color.Color) error {
	if n.logger != nil && len(pixels) > 0 {
		n.logger.Debug("LED output not available (no-op)", "color", pixels[0].Hex(), "pixels", len(pixels))
	}
	return nil
}

func (n *noop) Info() Info {
	return Info{Driver: DriverNoop, Pixels: n.pixels}
}

func (n *noop) Close() error {
	return nil
}
