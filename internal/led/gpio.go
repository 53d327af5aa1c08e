package led

import (
	"context"
	"fmt"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/smazurov/statuslight/internal/color"
)

// gpioThreshold is the channel value at which a discrete LED pin turns on.
const gpioThreshold = 128

// gpioRGB drives a discrete RGB LED wired to three GPIO pins. There is no
// PWM, so each channel is either on or off.
type gpioRGB struct {
	pins      [3]gpio.PinIO
	names     [3]string
	activeLow bool
}

func newGPIO(red, green, blue string, activeLow bool) (*gpioRGB, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize host drivers: %w", err)
	}

	d := &gpioRGB{names: [3]string{red, green, blue}, activeLow: activeLow}
	for i, name := range d.names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio pin %q not found", name)
		}
		d.pins[i] = pin
	}

	if err := d.write(color.Black); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *gpioRGB) level(on bool) gpio.Level {
	// common-anode LEDs light when the pin is pulled low
	if d.activeLow {
		return gpio.Level(!on)
	}
	return gpio.Level(on)
}

func (d *gpioRGB) write(c color.Color) error {
	values := [3]uint8{c.R, c.G, c.B}
	for i, pin := range d.pins {
		if err := pin.Out(d.level(values[i] >= gpioThreshold)); err != nil {
			return fmt.Errorf("set gpio %s: %w", d.names[i], err)
		}
	}
	return nil
}

func (d *gpioRGB) Transmit(_ context.Context, pixels []color.Color) error {
	if len(pixels) == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPixelCount)
	}
	return d.write(pixels[0])
}

func (d *gpioRGB) Info() Info {
	return Info{
		Driver: DriverGPIO,
		Target: fmt.Sprintf("%s,%s,%s", d.names[0], d.names[1], d.names[2]),
		Pixels: 1,
	}
}

func (d *gpioRGB) Close() error {
	return d.write(color.Black)
}
