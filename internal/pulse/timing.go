// Package pulse encodes colors into the single-wire pulse train understood by
// WS2812-class addressable LEDs.
//
// Every data bit becomes one Symbol: a high pulse followed by a low pulse whose
// durations distinguish a zero from a one. A frame ends with a long low reset
// symbol that latches the data into the LEDs. Symbols are handed to a Channel,
// which is the hardware (or simulated) pulse generator.
package pulse

import (
	"fmt"
	"time"
)

// MaxSymbolTicks is the largest duration one half of a Symbol can hold.
const MaxSymbolTicks = 0x7fff

// Tolerance is the conventional timing tolerance for this protocol family.
const Tolerance = 150 * time.Nanosecond

// Timing holds the protocol constants and the channel resolution they are
// quantized to.
type Timing struct {
	// Resolution is the channel clock in ticks per second.
	Resolution uint32
	T0H        time.Duration
	T0L        time.Duration
	T1H        time.Duration
	T1L        time.Duration
	Reset      time.Duration
}

// DefaultTiming is the WS2812B datasheet timing at a 10 MHz channel clock
// (1 tick = 100ns).
var DefaultTiming = Timing{
	Resolution: 10_000_000,
	T0H:        300 * time.Nanosecond,
	T0L:        900 * time.Nanosecond,
	T1H:        900 * time.Nanosecond,
	T1L:        300 * time.Nanosecond,
	Reset:      50 * time.Microsecond,
}

// Ticks converts d to channel ticks, rounding to the nearest tick.
func (t Timing) Ticks(d time.Duration) uint32 {
	return uint32((int64(d)*int64(t.Resolution) + int64(time.Second)/2) / int64(time.Second))
}

// Duration converts channel ticks back to wall time.
func (t Timing) Duration(ticks uint32) time.Duration {
	if t.Resolution == 0 {
		return 0
	}
	return time.Duration(int64(ticks) * int64(time.Second) / int64(t.Resolution))
}

// Validate checks that every pulse is representable on the channel.
func (t Timing) Validate() error {
	if t.Resolution == 0 {
		return fmt.Errorf("%w: zero channel resolution", ErrInvalidConfig)
	}

	pulses := []struct {
		name string
		d    time.Duration
	}{
		{"t0h", t.T0H},
		{"t0l", t.T0L},
		{"t1h", t.T1H},
		{"t1l", t.T1L},
	}
	for _, p := range pulses {
		ticks := t.Ticks(p.d)
		if ticks == 0 || ticks > MaxSymbolTicks {
			return fmt.Errorf("%w: %s of %s is %d ticks at %d Hz", ErrInvalidConfig, p.name, p.d, ticks, t.Resolution)
		}
	}

	if t.T0H >= t.T1H {
		return fmt.Errorf("%w: t0h (%s) must be shorter than t1h (%s)", ErrInvalidConfig, t.T0H, t.T1H)
	}

	reset := t.Ticks(t.Reset)
	if reset < 2 || reset > 2*MaxSymbolTicks {
		return fmt.Errorf("%w: reset of %s is %d ticks at %d Hz", ErrInvalidConfig, t.Reset, reset, t.Resolution)
	}

	return nil
}

func (t Timing) bit0() Symbol {
	return Symbol{Level0: High, Duration0: uint16(t.Ticks(t.T0H)), Level1: Low, Duration1: uint16(t.Ticks(t.T0L))}
}

func (t Timing) bit1() Symbol {
	return Symbol{Level0: High, Duration0: uint16(t.Ticks(t.T1H)), Level1: Low, Duration1: uint16(t.Ticks(t.T1L))}
}

// reset splits the reset time across both halves of one low symbol.
func (t Timing) reset() Symbol {
	ticks := t.Ticks(t.Reset)
	first := (ticks + 1) / 2
	return Symbol{Level0: Low, Duration0: uint16(first), Level1: Low, Duration1: uint16(ticks - first)}
}

// within reports whether ticks is within Tolerance of want.
func (t Timing) within(ticks uint16, want time.Duration) bool {
	d := t.Duration(uint32(ticks)) - want
	if d < 0 {
		d = -d
	}
	return d <= Tolerance
}
