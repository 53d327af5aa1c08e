package pulse

import "fmt"

// Decode reads a pulse train back into bytes. It stops at the first reset
// symbol. Every data symbol must match either bit within Tolerance.
func Decode(symbols []Symbol, timing Timing) ([]byte, error) {
	var (
		out  []byte
		cur  byte
		bits int
	)

	for i, s := range symbols {
		if s.IsReset() {
			break
		}
		if s.Level0 != High || s.Level1 != Low {
			return nil, fmt.Errorf("%w: symbol %d (%s) is not high-then-low", ErrMalformed, i, s)
		}

		var bit byte
		switch {
		case timing.within(s.Duration0, timing.T1H) && timing.within(s.Duration1, timing.T1L):
			bit = 1
		case timing.within(s.Duration0, timing.T0H) && timing.within(s.Duration1, timing.T0L):
			bit = 0
		default:
			return nil, fmt.Errorf("%w: symbol %d (%s) matches neither bit", ErrMalformed, i, s)
		}

		cur = cur<<1 | bit
		bits++
		if bits == 8 {
			out = append(out, cur)
			cur, bits = 0, 0
		}
	}

	if bits != 0 {
		return nil, fmt.Errorf("%w: %d trailing bits", ErrMalformed, bits)
	}
	return out, nil
}
