package led

import (
	"context"

	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/pulse"
)

// pulseDriver drives WS2812-class LEDs through a pulse encoder.
type pulseDriver struct {
	name   string
	target string
	enc    *pulse.Encoder
	pixels int
}

func newPulseDriver(name, target string, ch pulse.Channel, cfg pulse.Config, pixels int) (*pulseDriver, error) {
	enc, err := pulse.NewEncoder(ch, cfg)
	if err != nil {
		ch.Close()
		return nil, err
	}
	return &pulseDriver{name: name, target: target, enc: enc, pixels: pixels}, nil
}

func (d *pulseDriver) Transmit(ctx context.Context, pixels []color.Color) error {
	return d.enc.Transmit(ctx, pixels)
}

func (d *pulseDriver) Info() Info {
	return Info{
		Driver: d.name,
		Target: d.target,
		Order:  d.enc.Order().String(),
		Pixels: d.pixels,
	}
}

// Close latches an all-black frame before releasing the channel.
func (d *pulseDriver) Close() error {
	_ = d.enc.Transmit(context.Background(), make([]color.Color, d.pixels))
	return d.enc.Close()
}
