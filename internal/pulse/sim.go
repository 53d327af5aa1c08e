package pulse

import (
	"context"
	"sync"
)

// DefaultMemBlock is the symbol memory of a typical pulse peripheral channel.
const DefaultMemBlock = 64

// SimChannel is an in-memory Channel. It records every frame put on the wire
// and can be told to stall so timeouts can be exercised.
type SimChannel struct {
	mu         sync.Mutex
	resolution uint32
	memBlock   int

	pending []Symbol
	wire    []Symbol
	frames  [][]Symbol
	level   Level
	stalled bool
	closed  bool

	writes  int
	flushes int
	halts   int
}

// SimOption configures a SimChannel.
type SimOption func(*SimChannel)

// WithMemBlock sets how many symbols the channel holds before it must flush.
func WithMemBlock(n int) SimOption {
	return func(s *SimChannel) {
		if n > 0 {
			s.memBlock = n
		}
	}
}

// WithResolution sets the simulated channel clock.
func WithResolution(hz uint32) SimOption {
	return func(s *SimChannel) {
		s.resolution = hz
	}
}

// NewSimChannel returns a simulated channel at DefaultTiming resolution.
func NewSimChannel(opts ...SimOption) *SimChannel {
	s := &SimChannel{
		resolution: DefaultTiming.Resolution,
		memBlock:   DefaultMemBlock,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SimChannel) Resolution() uint32 {
	return s.resolution
}

func (s *SimChannel) Write(symbols []Symbol) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	s.writes++

	n := min(s.memBlock-len(s.pending), len(symbols))
	s.pending = append(s.pending, symbols[:n]...)
	return n, nil
}

func (s *SimChannel) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.stalled {
		s.mu.Unlock()
		<-ctx.Done()
		return ctx.Err()
	}
	defer s.mu.Unlock()

	s.flushes++
	for _, sym := range s.pending {
		s.wire = append(s.wire, sym)
		s.level = sym.Level1
		if sym.IsReset() {
			s.frames = append(s.frames, s.wire)
			s.wire = nil
		}
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *SimChannel) Halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.halts++
	s.pending = s.pending[:0]
	s.wire = nil
	s.level = Low
	return nil
}

func (s *SimChannel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Stall makes Flush block until its context is done.
func (s *SimChannel) Stall(stalled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled = stalled
}

// Frames returns every completed frame, each ending with its reset symbol.
func (s *SimChannel) Frames() [][]Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]Symbol, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]Symbol(nil), f...)
	}
	return out
}

// LastFrame returns the most recent completed frame or nil.
func (s *SimChannel) LastFrame() []Symbol {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return nil
	}
	return append([]Symbol(nil), s.frames[len(s.frames)-1]...)
}

// Level is the current line level.
func (s *SimChannel) Level() Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Flushes counts calls to Flush that completed.
func (s *SimChannel) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *SimChannel) Halts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halts
}
