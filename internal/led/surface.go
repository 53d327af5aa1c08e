package led

import (
	"context"
	"fmt"
	"sync"

	"github.com/smazurov/statuslight/internal/color"
)

// Surface is the pixel buffer in front of a Driver. Writes only touch the
// buffer; Refresh pushes it to hardware.
type Surface struct {
	mu     sync.Mutex
	pixels []color.Color
	driver Driver
}

// NewSurface creates a surface of count black pixels.
func NewSurface(driver Driver, count int) (*Surface, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPixelCount, count)
	}
	if driver == nil {
		return nil, fmt.Errorf("led: nil driver")
	}
	return &Surface{
		pixels: make([]color.Color, count),
		driver: driver,
	}, nil
}

// Len returns the number of pixels.
func (s *Surface) Len() int {
	return len(s.pixels)
}

// Set writes one pixel.
func (s *Surface) Set(i int, c color.Color) error {
	if i < 0 || i >= len(s.pixels) {
		return fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, i, len(s.pixels))
	}

	s.mu.Lock()
	s.pixels[i] = c
	s.mu.Unlock()
	return nil
}

// SetAll writes every pixel.
func (s *Surface) SetAll(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.pixels {
		s.pixels[i] = c
	}
}

// Clear sets every pixel to black. It does not refresh.
func (s *Surface) Clear() {
	s.SetAll(color.Black)
}

// Pixels returns a copy of the buffer.
func (s *Surface) Pixels() []color.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]color.Color(nil), s.pixels...)
}

// Refresh transmits the buffer. The buffer is copied first so writers are
// not held up by the transmission.
func (s *Surface) Refresh(ctx context.Context) error {
	frame := s.Pixels()
	if err := s.driver.Transmit(ctx, frame); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Info returns the driver description.
func (s *Surface) Info() Info {
	return s.driver.Info()
}
