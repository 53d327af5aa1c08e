package pulse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/statuslight/internal/color"
)

// DefaultTimeout bounds how long Transmit waits for a frame to go out.
const DefaultTimeout = 100 * time.Millisecond

// Config configures an Encoder.
type Config struct {
	// Timing defaults to DefaultTiming at the channel resolution.
	Timing  Timing
	Order   Order
	Timeout time.Duration
}

// Encoder turns pixels into symbols and streams them to a Channel.
// At most one transmission is in flight at a time.
type Encoder struct {
	mu      sync.Mutex
	ch      Channel
	timing  Timing
	order   Order
	timeout time.Duration

	zero, one, reset Symbol

	// reused between frames
	data    []byte
	symbols []Symbol
	closed  bool
}

// NewEncoder validates cfg against the channel and precomputes the bit
// symbols.
func NewEncoder(ch Channel, cfg Config) (*Encoder, error) {
	if ch == nil {
		return nil, fmt.Errorf("%w: nil channel", ErrInvalidConfig)
	}

	timing := cfg.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming
		timing.Resolution = ch.Resolution()
	}
	if timing.Resolution == 0 {
		timing.Resolution = ch.Resolution()
	}
	if timing.Resolution != ch.Resolution() {
		return nil, fmt.Errorf("%w: timing resolution %d Hz does not match channel %d Hz",
			ErrInvalidConfig, timing.Resolution, ch.Resolution())
	}
	if err := timing.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Order.valid() {
		return nil, fmt.Errorf("%w: unknown color order %d", ErrInvalidConfig, cfg.Order)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Encoder{
		ch:      ch,
		timing:  timing,
		order:   cfg.Order,
		timeout: timeout,
		zero:    timing.bit0(),
		one:     timing.bit1(),
		reset:   timing.reset(),
	}, nil
}

// Timing returns the quantized timing in use.
func (e *Encoder) Timing() Timing {
	return e.timing
}

// Order returns the wire byte order.
func (e *Encoder) Order() Order {
	return e.order
}

// Encode appends the symbols for data, most significant bit first, followed
// by one reset symbol.
func (e *Encoder) Encode(dst []Symbol, data []byte) []Symbol {
	for _, b := range data {
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<bit) != 0 {
				dst = append(dst, e.one)
			} else {
				dst = append(dst, e.zero)
			}
		}
	}
	return append(dst, e.reset)
}

// Transmit sends one frame and waits for it to finish. If the channel memory
// is smaller than the frame, the encoder waits for it to drain and continues
// from where it stopped. On any failure the channel is halted so the line is
// left low.
func (e *Encoder) Transmit(ctx context.Context, pixels []color.Color) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.data = e.order.AppendPixels(e.data[:0], pixels)
	e.symbols = e.Encode(e.symbols[:0], e.data)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.stream(ctx, e.symbols); err != nil {
		if haltErr := e.ch.Halt(); haltErr != nil {
			return errors.Join(err, &EncodeError{Op: "halt", Err: haltErr})
		}
		return err
	}
	return nil
}

func (e *Encoder) stream(ctx context.Context, symbols []Symbol) error {
	for off := 0; off < len(symbols); {
		if err := ctx.Err(); err != nil {
			return e.waitErr(err)
		}

		n, err := e.ch.Write(symbols[off:])
		if err != nil {
			return &EncodeError{Op: "write", Err: err}
		}
		off += n

		if off < len(symbols) {
			if err := e.flush(ctx); err != nil {
				return err
			}
		}
	}
	return e.flush(ctx)
}

func (e *Encoder) flush(ctx context.Context) error {
	if err := e.ch.Flush(ctx); err != nil {
		return e.waitErr(err)
	}
	return nil
}

func (e *Encoder) waitErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrTransmitTimeout, e.timeout)
	}
	return &EncodeError{Op: "flush", Err: err}
}

// Close halts and releases the channel. Further transmissions fail with
// ErrClosed.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	return errors.Join(e.ch.Halt(), e.ch.Close())
}
