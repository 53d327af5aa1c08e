package led

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smazurov/statuslight/internal/color"
)

// Mock driver for testing
type mockDriver struct {
	mu     sync.Mutex
	frames [][]color.Color
	err    error
	closed bool
}

func (m *mockDriver) Transmit(_ context.Context, pixels []color.Color) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.frames = append(m.frames, pixels)
	return nil
}

func (m *mockDriver) Info() Info {
	return Info{Driver: "mock", Pixels: 3}
}

func (m *mockDriver) Close() error {
	m.closed = true
	return nil
}

func TestNewSurface_InvalidCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		if _, err := NewSurface(&mockDriver{}, n); !errors.Is(err, ErrInvalidPixelCount) {
			t.Errorf("NewSurface(%d) error = %v, want ErrInvalidPixelCount", n, err)
		}
	}
}

func TestSurface_SetAndReadBack(t *testing.T) {
	s, err := NewSurface(&mockDriver{}, 3)
	if err != nil {
		t.Fatalf("NewSurface failed: %v", err)
	}

	if err := s.Set(1, color.Cyan); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got := s.Pixels()
	want := []color.Color{color.Black, color.Cyan, color.Black}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pixel %d = %v, want %v", i, got[i], want[i])
		}
	}

	// Pixels returns a copy
	got[0] = color.Red
	if s.Pixels()[0] != color.Black {
		t.Error("mutating Pixels() result changed the surface")
	}
}

func TestSurface_SetOutOfRange(t *testing.T) {
	s, _ := NewSurface(&mockDriver{}, 1)

	for _, i := range []int{1, 5, -1} {
		if err := s.Set(i, color.Red); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Set(%d) error = %v, want ErrIndexOutOfRange", i, err)
		}
	}
	if s.Pixels()[0] != color.Black {
		t.Error("failed Set modified the buffer")
	}
}

func TestSurface_ClearAndSetAll(t *testing.T) {
	s, _ := NewSurface(&mockDriver{}, 4)

	s.SetAll(color.Purple)
	for i, c := range s.Pixels() {
		if c != color.Purple {
			t.Errorf("after SetAll pixel %d = %v", i, c)
		}
	}

	s.Clear()
	for i, c := range s.Pixels() {
		if c != color.Black {
			t.Errorf("after Clear pixel %d = %v", i, c)
		}
	}
}

func TestSurface_Refresh(t *testing.T) {
	drv := &mockDriver{}
	s, _ := NewSurface(drv, 2)
	s.SetAll(color.Green)

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if len(drv.frames) != 1 {
		t.Fatalf("driver got %d frames, want 1", len(drv.frames))
	}
	if drv.frames[0][0] != color.Green || drv.frames[0][1] != color.Green {
		t.Errorf("driver frame = %v", drv.frames[0])
	}

	// Clear without refresh leaves the hardware untouched
	s.Clear()
	if len(drv.frames) != 1 {
		t.Error("Clear transmitted a frame")
	}
}

func TestSurface_RefreshPropagatesError(t *testing.T) {
	sentinel := errors.New("bus fault")
	s, _ := NewSurface(&mockDriver{err: sentinel}, 1)

	if err := s.Refresh(context.Background()); !errors.Is(err, sentinel) {
		t.Errorf("Refresh error = %v, want %v", err, sentinel)
	}
}
