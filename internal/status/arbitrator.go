// Package status decides what the status LED shows.
//
// The Arbitrator holds exactly one current Setting. Requests carry a
// priority; a request replaces the current setting only when its priority is
// at least as high. A frame clock advances the animation of the current
// setting and renders it through the LED surface.
//
// A setting with a duration tries to return to Normal when its time is up.
// That return is an ordinary request at PriorityNormal, so it is rejected
// whenever the expiring setting has a higher priority: the LED then holds the
// last rendered frame until something else is set.
package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/color"
	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/metrics"
)

// Defaults.
const (
	DefaultTickPeriod       = 33 * time.Millisecond
	DefaultGlobalBrightness = 128
	closeTimeout            = time.Second
)

var (
	ErrInvalidArgument = errors.New("status: invalid argument")
	ErrClosed          = errors.New("status: arbitrator closed")
)

// Surface is the pixel buffer the arbitrator renders into.
type Surface interface {
	SetAll(c color.Color)
	Clear()
	Refresh(ctx context.Context) error
}

// Option configures an Arbitrator.
type Option func(*Arbitrator)

// WithTickPeriod sets the frame clock period.
func WithTickPeriod(d time.Duration) Option {
	return func(a *Arbitrator) {
		if d > 0 {
			a.period = d
		}
	}
}

// WithGlobalBrightness sets the initial global brightness.
func WithGlobalBrightness(b uint8) Option {
	return func(a *Arbitrator) {
		a.global = b
	}
}

// WithEventBus publishes status notifications on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(a *Arbitrator) {
		a.bus = bus
	}
}

// WithLogger replaces the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Arbitrator) {
		a.logger = logger
	}
}

// Arbitrator owns the current status setting, the frame counter and the
// surface.
type Arbitrator struct {
	period time.Duration
	bus    *events.Bus
	logger *slog.Logger

	mu        sync.Mutex
	setting   Setting
	frame     uint32
	animating bool
	expired   bool
	global    uint8
	closed    bool

	current atomic.Int32

	// renderMu serializes pushes to the surface.
	renderMu  sync.Mutex
	surface   Surface
	lastColor color.Color
	failing   bool

	redraw    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates an arbitrator showing Off and blacks out the surface.
func New(surface Surface, opts ...Option) (*Arbitrator, error) {
	if surface == nil {
		return nil, fmt.Errorf("%w: nil surface", ErrInvalidArgument)
	}

	a := &Arbitrator{
		period:  DefaultTickPeriod,
		global:  DefaultGlobalBrightness,
		surface: surface,
		setting: Setting{
			Status:     Off,
			Animation:  anim.None,
			Priority:   PriorityNormal,
			Brightness: 255,
		},
		redraw: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logging.GetLogger("status")
	}
	a.current.Store(int32(Off))

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	surface.Clear()
	if err := surface.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial blackout: %w", err)
	}

	metrics.RecordStatusChange("", Off.String())
	metrics.SetGlobalBrightness(a.global)
	return a, nil
}

// Set requests a new status. A request with lower priority than the current
// setting is ignored and Set returns nil.
func (a *Arbitrator) Set(status Kind, animation anim.Kind, priority Priority, duration time.Duration) error {
	_, err := a.TrySet(status, animation, priority, duration)
	return err
}

// TrySet is Set that also reports whether the request was accepted.
func (a *Arbitrator) TrySet(status Kind, animation anim.Kind, priority Priority, duration time.Duration) (bool, error) {
	return a.set(status, animation, priority, duration, true)
}

func (a *Arbitrator) set(status Kind, animation anim.Kind, priority Priority, duration time.Duration, notifyReject bool) (bool, error) {
	if !status.Valid() || !animation.Valid() || !priority.Valid() || duration < 0 {
		return false, fmt.Errorf("%w: status=%v animation=%v priority=%v duration=%s",
			ErrInvalidArgument, status, animation, priority, duration)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return false, ErrClosed
	}

	prev := a.setting
	if priority < prev.Priority {
		a.mu.Unlock()
		a.logger.Debug("Status priority too low, ignored",
			"status", status, "priority", priority,
			"current", prev.Status, "current_priority", prev.Priority)
		if notifyReject {
			metrics.RecordStatusRejection(status.String())
			a.bus.Publish(events.StatusRejectedEvent{
				Status:          status.String(),
				Priority:        priority.String(),
				CurrentStatus:   prev.Status.String(),
				CurrentPriority: prev.Priority.String(),
				Timestamp:       now(),
			})
		}
		return false, nil
	}

	a.setting = Setting{
		Status:         status,
		Animation:      animation,
		Priority:       priority,
		Brightness:     255,
		Duration:       duration,
		AutoBrightness: prev.AutoBrightness,
	}
	a.frame = 0
	a.expired = false
	a.animating = animation != anim.None
	a.current.Store(int32(status))
	a.mu.Unlock()

	a.requestRedraw()

	a.logger.Debug("Status set",
		"status", status, "animation", animation, "priority", priority, "duration", duration)
	metrics.RecordStatusChange(prev.Status.String(), status.String())
	a.bus.Publish(events.StatusChangedEvent{
		Status:     status.String(),
		Animation:  animation.String(),
		Priority:   priority.String(),
		DurationMs: duration.Milliseconds(),
		Color:      status.Color().Hex(),
		Timestamp:  now(),
	})
	return true, nil
}

// SetBrightness sets the global brightness applied on top of every status.
func (a *Arbitrator) SetBrightness(b uint8) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.global = b
	auto := a.setting.AutoBrightness
	a.mu.Unlock()

	a.requestRedraw()
	metrics.SetGlobalBrightness(b)
	a.bus.Publish(events.BrightnessChangedEvent{Brightness: b, AutoBrightness: auto, Timestamp: now()})
	return nil
}

// SetAutoBrightness stores the auto-brightness flag. Nothing reads an
// ambient light sensor yet, so the displayed brightness does not change.
func (a *Arbitrator) SetAutoBrightness(enable bool) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.setting.AutoBrightness = enable
	global := a.global
	a.mu.Unlock()

	a.logger.Debug("Auto brightness changed", "enabled", enable)
	a.bus.Publish(events.BrightnessChangedEvent{Brightness: global, AutoBrightness: enable, Timestamp: now()})
	return nil
}

// Current returns the displayed status.
func (a *Arbitrator) Current() Kind {
	return Kind(a.current.Load())
}

// Snapshot returns a copy of the full state.
func (a *Arbitrator) Snapshot() State {
	a.mu.Lock()
	st := State{
		Setting:          a.setting,
		GlobalBrightness: a.global,
		Frame:            a.frame,
		Animating:        a.animating,
		Expired:          a.expired,
	}
	a.mu.Unlock()

	a.renderMu.Lock()
	st.Color = a.lastColor
	a.renderMu.Unlock()
	return st
}

// Clear requests Off at normal priority. Like any request it loses to a
// higher-priority status.
func (a *Arbitrator) Clear() error {
	return a.Set(Off, anim.None, PriorityNormal, 0)
}

// Refresh renders the current frame now and returns the transmit error.
func (a *Arbitrator) Refresh(ctx context.Context) error {
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return a.render(ctx)
}

// Run drives the frame clock until ctx is done or the arbitrator is closed.
func (a *Arbitrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	a.logger.Info("Frame clock started", "period", a.period)
	defer a.logger.Info("Frame clock stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.done:
			return nil
		case <-ticker.C:
			a.tick(ctx)
		case <-a.redraw:
			_ = a.render(ctx)
		}
	}
}

// Close stops the frame clock and blacks out the surface.
func (a *Arbitrator) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.animating = false
		a.mu.Unlock()
		close(a.done)

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		a.renderMu.Lock()
		defer a.renderMu.Unlock()
		a.surface.Clear()
		a.lastColor = color.Black
		if rerr := a.surface.Refresh(ctx); rerr != nil {
			err = fmt.Errorf("blackout: %w", rerr)
		}
	})
	return err
}

// tick advances the frame clock by one frame.
func (a *Arbitrator) tick(ctx context.Context) {
	a.mu.Lock()
	if !a.animating || a.closed {
		a.mu.Unlock()
		return
	}

	a.frame++
	if a.setting.Duration > 0 && time.Duration(a.frame)*a.period >= a.setting.Duration {
		status, frame, first := a.setting.Status, a.frame, !a.expired
		a.expired = true
		a.mu.Unlock()

		// The return to normal goes through the priority gate. When it is
		// rejected the clock keeps ticking and retries, without rendering.
		reverted, _ := a.set(Normal, anim.None, PriorityNormal, 0, false)
		if first {
			if !reverted {
				a.logger.Warn("Timed status expired but return to normal was rejected by priority",
					"status", status, "frame", frame)
			}
			a.bus.Publish(events.StatusExpiredEvent{
				Status:    status.String(),
				Frame:     frame,
				Reverted:  reverted,
				Timestamp: now(),
			})
		}
		return
	}
	a.mu.Unlock()

	_ = a.render(ctx)
}

// render computes the current color and pushes it to the surface.
func (a *Arbitrator) render(ctx context.Context) error {
	a.mu.Lock()
	setting, frame, global := a.setting, a.frame, a.global
	a.mu.Unlock()

	c := Compose(setting, frame, global)

	a.renderMu.Lock()
	defer a.renderMu.Unlock()

	// Close blacks out under renderMu after setting closed, so a frame
	// composed before Close must not reach the surface.
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrClosed
	}

	a.surface.SetAll(c)
	a.lastColor = c

	start := time.Now()
	err := a.surface.Refresh(ctx)
	if err != nil {
		metrics.RecordRenderError()
		if !a.failing {
			a.failing = true
			a.logger.Warn("Failed to refresh LED", "error", err)
			a.bus.Publish(events.RenderErrorEvent{Error: err.Error(), Timestamp: now()})
		}
		return err
	}

	if a.failing {
		a.failing = false
		a.logger.Info("LED refresh recovered")
	}
	metrics.RecordFrame(time.Since(start))
	return nil
}

func (a *Arbitrator) requestRedraw() {
	select {
	case a.redraw <- struct{}{}:
	default:
	}
}

// Compose returns the color shown for setting at frame under the global
// brightness: anim * status / 255 * global / 255, applied to the base color
// or to the rainbow color.
func Compose(setting Setting, frame uint32, global uint8) color.Color {
	f := anim.Render(setting.Animation, setting.Status.Color(), frame)
	b := color.ScaleBrightness(setting.Brightness, f.Brightness)
	b = color.ScaleBrightness(b, global)
	return f.Color.Scale(b)
}

func now() string {
	return time.Now().Format(time.RFC3339Nano)
}
