package pulse

import (
	"fmt"
	"strings"

	"github.com/smazurov/statuslight/internal/color"
)

// Order is the byte order of one pixel on the wire.
type Order uint8

const (
	// OrderGRB is the WS2812B datasheet order.
	OrderGRB Order = iota
	// OrderRGB is used by some WS2812 clones and integrated RGB LEDs.
	OrderRGB
)

func (o Order) String() string {
	switch o {
	case OrderGRB:
		return "grb"
	case OrderRGB:
		return "rgb"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// ParseOrder parses "grb" or "rgb" (case-insensitive).
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "grb", "":
		return OrderGRB, nil
	case "rgb":
		return OrderRGB, nil
	default:
		return 0, fmt.Errorf("%w: unknown color order %q", ErrInvalidConfig, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	parsed, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o Order) valid() bool {
	return o == OrderGRB || o == OrderRGB
}

// Serialize writes 3 bytes per pixel in wire order.
func (o Order) Serialize(pixels []color.Color) []byte {
	return o.AppendPixels(make([]byte, 0, 3*len(pixels)), pixels)
}

// AppendPixels appends the wire bytes of pixels to dst.
func (o Order) AppendPixels(dst []byte, pixels []color.Color) []byte {
	for _, c := range pixels {
		if o == OrderRGB {
			dst = append(dst, c.R, c.G, c.B)
		} else {
			dst = append(dst, c.G, c.R, c.B)
		}
	}
	return dst
}

// Deserialize is the inverse of Serialize. Trailing bytes that do not form a
// full pixel are ignored.
func (o Order) Deserialize(data []byte) []color.Color {
	pixels := make([]color.Color, 0, len(data)/3)
	for i := 0; i+2 < len(data); i += 3 {
		if o == OrderRGB {
			pixels = append(pixels, color.RGB(data[i], data[i+1], data[i+2]))
		} else {
			pixels = append(pixels, color.RGB(data[i+1], data[i], data[i+2]))
		}
	}
	return pixels
}
