// Package color provides the 24-bit RGB color type shared by the LED layers.
package color

import (
	"encoding"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Color is a 24-bit RGB color. There is no alpha channel.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Named colors used by the status table.
var (
	Black  = Color{0, 0, 0}
	Red    = Color{255, 0, 0}
	Yellow = Color{255, 255, 0}
	Green  = Color{0, 255, 0}
	Blue   = Color{0, 0, 255}
	Purple = Color{128, 0, 128}
	Cyan   = Color{0, 255, 255}
	White  = Color{255, 255, 255}
)

var (
	_ encoding.TextMarshaler   = Color{}
	_ encoding.TextUnmarshaler = (*Color)(nil)
)

// RGB returns a color from its three channels.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b}
}

// Scale scales each channel by brightness/255, rounding toward zero.
// Scale(0) is black and Scale(255) is c.
func (c Color) Scale(brightness uint8) Color {
	return Color{
		R: scaleChannel(c.R, brightness),
		G: scaleChannel(c.G, brightness),
		B: scaleChannel(c.B, brightness),
	}
}

func scaleChannel(v, brightness uint8) uint8 {
	// The product fits in uint32, so the quotient is always <= v.
	return uint8(uint32(v) * uint32(brightness) / 255)
}

// ScaleBrightness multiplies two brightness values on the 0-255 scale.
func ScaleBrightness(a, b uint8) uint8 {
	return uint8(uint32(a) * uint32(b) / 255)
}

// IsBlack reports whether all channels are zero.
func (c Color) IsBlack() bool {
	return c == Black
}

// Hex returns the color in #rrggbb form.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func (c Color) String() string {
	return c.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseHex(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: want 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// FromHSV converts hue (degrees), saturation and value (both 0-1) to RGB
// using the 60 degree sector formula. Channels are truncated, not rounded.
func FromHSV(hue, saturation, value float64) Color {
	hue = math.Mod(hue, 360)
	if hue < 0 {
		hue += 360
	}
	saturation = clamp01(saturation)
	value = clamp01(value)

	c := value * saturation
	x := c * (1 - math.Abs(math.Mod(hue/60, 2)-1))
	m := value - c

	var r, g, b float64
	switch {
	case hue < 60:
		r, g, b = c, x, 0
	case hue < 120:
		r, g, b = x, c, 0
	case hue < 180:
		r, g, b = 0, c, x
	case hue < 240:
		r, g, b = 0, x, c
	case hue < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return Color{
		R: toChannel(r + m),
		G: toChannel(g + m),
		B: toChannel(b + m),
	}
}

func toChannel(f float64) uint8 {
	return uint8(clamp01(f) * 255)
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
