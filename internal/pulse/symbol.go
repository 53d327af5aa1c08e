package pulse

import "fmt"

// Level is the logic level of the data line.
type Level uint8

const (
	Low Level = iota
	High
)

func (l Level) String() string {
	if l == High {
		return "high"
	}
	return "low"
}

// Symbol is one pulse pair: Level0 for Duration0 ticks, then Level1 for
// Duration1 ticks.
type Symbol struct {
	Level0    Level
	Duration0 uint16
	Level1    Level
	Duration1 uint16
}

// Word packs the symbol into the 32-bit layout used by pulse generator
// peripherals: 15-bit duration and 1-bit level per half, first half in the
// low 16 bits.
func (s Symbol) Word() uint32 {
	lo := uint32(s.Duration0&MaxSymbolTicks) | uint32(s.Level0&1)<<15
	hi := uint32(s.Duration1&MaxSymbolTicks) | uint32(s.Level1&1)<<15
	return lo | hi<<16
}

// SymbolFromWord unpacks a Word.
func SymbolFromWord(w uint32) Symbol {
	return Symbol{
		Level0:    Level(w >> 15 & 1),
		Duration0: uint16(w & MaxSymbolTicks),
		Level1:    Level(w >> 31 & 1),
		Duration1: uint16(w >> 16 & MaxSymbolTicks),
	}
}

// Ticks is the total length of the symbol.
func (s Symbol) Ticks() uint32 {
	return uint32(s.Duration0) + uint32(s.Duration1)
}

// IsReset reports whether the symbol holds the line low for its whole length.
func (s Symbol) IsReset() bool {
	return s.Level0 == Low && s.Level1 == Low
}

func (s Symbol) String() string {
	return fmt.Sprintf("%s:%d/%s:%d", s.Level0, s.Duration0, s.Level1, s.Duration1)
}
