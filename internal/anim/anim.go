// Package anim holds the frame-indexed animation curves. Every function is
// pure: the same frame always yields the same value.
package anim

import (
	"fmt"
	"math"
	"strings"

	"github.com/smazurov/statuslight/internal/color"
)

// Kind selects an animation curve.
type Kind int

const (
	None Kind = iota
	Breathing
	Blinking
	Fade
	Rainbow
	FadeInOut
)

// Cycle lengths in frames.
const (
	BreathingPeriod = 60
	BlinkHalfPeriod = 15
	FadePeriod      = 180
	FadeInOutPeriod = 240
	RainbowPeriod   = 360

	fadeInOutRamp = 60
)

var kindNames = [...]string{
	None:      "none",
	Breathing: "breathing",
	Blinking:  "blinking",
	Fade:      "fade",
	Rainbow:   "rainbow",
	FadeInOut: "fade_in_out",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known animation.
func (k Kind) Valid() bool {
	return k >= None && k <= FadeInOut
}

// Kinds lists every animation in declaration order.
func Kinds() []Kind {
	return []Kind{None, Breathing, Blinking, Fade, Rainbow, FadeInOut}
}

// Parse accepts the names returned by String. Hyphens and underscores are
// interchangeable.
func Parse(s string) (Kind, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return None, fmt.Errorf("unknown animation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid animation %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Brightness returns the animation brightness for frame. None, Rainbow and
// unknown kinds are full brightness.
func Brightness(k Kind, frame uint32) uint8 {
	switch k {
	case Breathing:
		return BreathingBrightness(frame)
	case Blinking:
		return BlinkingBrightness(frame)
	case Fade:
		return FadeBrightness(frame)
	case FadeInOut:
		return FadeInOutBrightness(frame)
	default:
		return 255
	}
}

// BreathingBrightness follows one sine cycle every BreathingPeriod frames,
// starting at half brightness.
func BreathingBrightness(frame uint32) uint8 {
	phase := 2 * math.Pi * float64(frame%BreathingPeriod) / BreathingPeriod
	return uint8((math.Sin(phase) + 1) / 2 * 255)
}

// BlinkingBrightness alternates off and on every BlinkHalfPeriod frames,
// starting off.
func BlinkingBrightness(frame uint32) uint8 {
	if (frame/BlinkHalfPeriod)%2 == 1 {
		return 255
	}
	return 0
}

// FadeBrightness is a triangle wave: up for half of FadePeriod, then down.
func FadeBrightness(frame uint32) uint8 {
	const half = FadePeriod / 2
	f := frame % FadePeriod
	if f < half {
		return uint8(f * 255 / half)
	}
	return uint8((FadePeriod - f) * 255 / half)
}

// FadeInOutBrightness ramps up, holds at full, then ramps down.
func FadeInOutBrightness(frame uint32) uint8 {
	f := frame % FadeInOutPeriod
	switch {
	case f < fadeInOutRamp:
		return uint8(f * 255 / fadeInOutRamp)
	case f < FadeInOutPeriod-fadeInOutRamp:
		return 255
	default:
		return uint8((FadeInOutPeriod - f) * 255 / fadeInOutRamp)
	}
}

// RainbowColor walks the hue circle one degree per frame at full saturation
// and value.
func RainbowColor(frame uint32) color.Color {
	return color.FromHSV(float64(frame%RainbowPeriod), 1, 1)
}

// Frame is the output of one animation step.
type Frame struct {
	Color      color.Color
	Brightness uint8
}

// Render computes the color and brightness of base under k at frame. Rainbow
// replaces the base color.
func Render(k Kind, base color.Color, frame uint32) Frame {
	if k == Rainbow {
		return Frame{Color: RainbowColor(frame), Brightness: 255}
	}
	return Frame{Color: base, Brightness: Brightness(k, frame)}
}
