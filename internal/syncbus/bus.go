// Package syncbus turns system events into status LED changes.
//
// Producers call SendEvent (or one of the Handle* helpers) from any
// goroutine. Events go through a bounded FIFO queue to a single consumer,
// Run, which looks up the handler registered for the event type and calls it.
// The default handlers request statuses from a Setter, normally the status
// arbitrator.
package syncbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/events"
	"github.com/smazurov/statuslight/internal/logging"
	"github.com/smazurov/statuslight/internal/metrics"
	"github.com/smazurov/statuslight/internal/status"
)

// Defaults.
const (
	DefaultQueueSize          = 20
	DefaultSendTimeout        = 100 * time.Millisecond
	DefaultFeedbackBrightness = 255
	DefaultFeedbackDuration   = 300 * time.Millisecond
)

var (
	ErrQueueFull    = errors.New("syncbus: event queue full")
	ErrInvalidEvent = errors.New("syncbus: invalid event")
	ErrClosed       = errors.New("syncbus: closed")
)

// Outcomes reported through metrics and events.SyncEvent.
const (
	outcomeQueued     = "queued"
	outcomeRejected   = "rejected"
	outcomeDispatched = "dispatched"
	outcomeDropped    = "dropped"
	outcomeUnhandled  = "unhandled"
	outcomeDiscarded  = "discarded"
)

// Setter requests a status. *status.Arbitrator implements it.
type Setter interface {
	Set(s status.Kind, a anim.Kind, p status.Priority, d time.Duration) error
}

// Option configures a Bus.
type Option func(*Bus)

// WithQueueSize sets the queue capacity.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithSendTimeout sets how long SendEvent waits for room in a full queue.
func WithSendTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d >= 0 {
			b.sendTimeout = d
		}
	}
}

// WithFeedback sets the button feedback parameters.
func WithFeedback(brightness uint8, duration time.Duration) Option {
	return func(b *Bus) {
		b.setFeedback(brightness, duration)
	}
}

// WithEventBus publishes a SyncEvent for every consumed event.
func WithEventBus(bus *events.Bus) Option {
	return func(b *Bus) {
		b.events = bus
	}
}

// WithLogger replaces the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// Bus is the event synchronization bus.
type Bus struct {
	setter      Setter
	events      *events.Bus
	logger      *slog.Logger
	queueSize   int
	sendTimeout time.Duration

	queue chan Event

	mu       sync.RWMutex
	handlers map[EventType]Handler

	autoSync           atomic.Bool
	feedbackBrightness atomic.Uint32
	feedbackDuration   atomic.Int64

	// Producers hold sendMu for reading while they enqueue. Close takes it
	// for writing before it drains the queue.
	sendMu    sync.RWMutex
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a bus with the default handlers bound to setter. Auto-sync
// starts enabled.
func New(setter Setter, opts ...Option) (*Bus, error) {
	if setter == nil {
		return nil, fmt.Errorf("%w: nil setter", ErrInvalidEvent)
	}

	b := &Bus{
		setter:      setter,
		queueSize:   DefaultQueueSize,
		sendTimeout: DefaultSendTimeout,
		handlers:    make(map[EventType]Handler, eventTypeCount),
		done:        make(chan struct{}),
	}
	b.setFeedback(DefaultFeedbackBrightness, DefaultFeedbackDuration)
	b.autoSync.Store(true)

	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = logging.GetLogger("sync")
	}
	b.queue = make(chan Event, b.queueSize)
	b.registerDefaults()

	return b, nil
}

// SendEvent queues an event. The payload is copied. When the queue is full
// SendEvent waits up to the send timeout and then returns ErrQueueFull.
func (b *Bus) SendEvent(t EventType, payload []byte) error {
	if !t.Valid() {
		return fmt.Errorf("%w: event type %d", ErrInvalidEvent, int(t))
	}

	b.sendMu.RLock()
	defer b.sendMu.RUnlock()
	if b.closed.Load() {
		return ErrClosed
	}

	ev := Event{
		ID:        uuid.New(),
		Type:      t,
		Timestamp: time.Now(),
	}
	if len(payload) > 0 {
		ev.Payload = append([]byte(nil), payload...)
	}

	select {
	case b.queue <- ev:
		b.queued(ev)
		return nil
	default:
	}

	timer := time.NewTimer(b.sendTimeout)
	defer timer.Stop()

	select {
	case b.queue <- ev:
		b.queued(ev)
		return nil
	case <-b.done:
		return ErrClosed
	case <-timer.C:
		b.logger.Warn("Sync queue full, event rejected", "type", t, "capacity", b.queueSize)
		metrics.RecordSyncEvent(t.String(), outcomeRejected)
		return fmt.Errorf("%w: %s", ErrQueueFull, t)
	}
}

func (b *Bus) queued(ev Event) {
	metrics.RecordSyncEvent(ev.Type.String(), outcomeQueued)
	metrics.SetSyncQueueDepth(len(b.queue))
}

// Run consumes events in FIFO order until ctx is done or the bus is closed.
// It must be called from exactly one goroutine.
func (b *Bus) Run(ctx context.Context) error {
	b.logger.Info("Sync consumer started", "capacity", b.queueSize)
	defer b.logger.Info("Sync consumer stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.done:
			return nil
		case ev := <-b.queue:
			metrics.SetSyncQueueDepth(len(b.queue))
			b.dispatch(ev)
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	outcome := outcomeDispatched

	switch handler := b.handler(ev.Type); {
	case !b.autoSync.Load():
		outcome = outcomeDropped
		b.logger.Debug("Auto sync disabled, event dropped", "type", ev.Type, "id", ev.ID)
	case handler == nil:
		outcome = outcomeUnhandled
	default:
		if err := handler(ev); err != nil {
			b.logger.Warn("Sync handler failed", "type", ev.Type, "id", ev.ID, "error", err)
		}
	}

	metrics.RecordSyncEvent(ev.Type.String(), outcome)
	b.events.Publish(events.SyncEvent{
		ID:        ev.ID.String(),
		EventType: ev.Type.String(),
		Action:    outcome,
		Timestamp: ev.Timestamp.Format(time.RFC3339Nano),
	})
}

func (b *Bus) handler(t EventType) Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.handlers[t]
}

// RegisterEventHandler replaces the handler for t. A nil handler removes it.
func (b *Bus) RegisterEventHandler(t EventType, h Handler) error {
	if !t.Valid() {
		return fmt.Errorf("%w: event type %d", ErrInvalidEvent, int(t))
	}
	if b.closed.Load() {
		return ErrClosed
	}

	b.mu.Lock()
	if h == nil {
		delete(b.handlers, t)
	} else {
		b.handlers[t] = h
	}
	b.mu.Unlock()

	b.logger.Debug("Event handler registered", "type", t)
	return nil
}

// SetAutoSync enables or disables dispatch. Events consumed while disabled
// are dropped, not deferred.
func (b *Bus) SetAutoSync(enable bool) error {
	if b.closed.Load() {
		return ErrClosed
	}
	if b.autoSync.Swap(enable) != enable {
		b.logger.Info("Auto sync changed", "enabled", enable)
	}
	return nil
}

// IsAutoSyncEnabled reports whether events are dispatched. A closed bus
// reports false.
func (b *Bus) IsAutoSyncEnabled() bool {
	return !b.closed.Load() && b.autoSync.Load()
}

// SetFeedback sets the button feedback brightness and duration.
func (b *Bus) SetFeedback(brightness uint8, duration time.Duration) error {
	if duration < 0 {
		return fmt.Errorf("%w: negative feedback duration", ErrInvalidEvent)
	}
	if b.closed.Load() {
		return ErrClosed
	}
	b.setFeedback(brightness, duration)
	b.logger.Debug("Feedback params set", "brightness", brightness, "duration", duration)
	return nil
}

// Feedback returns the button feedback brightness and duration.
func (b *Bus) Feedback() (uint8, time.Duration) {
	return uint8(b.feedbackBrightness.Load()), time.Duration(b.feedbackDuration.Load())
}

func (b *Bus) setFeedback(brightness uint8, duration time.Duration) {
	b.feedbackBrightness.Store(uint32(brightness))
	b.feedbackDuration.Store(int64(duration))
}

// QueueLen returns the number of events waiting.
func (b *Bus) QueueLen() int {
	return len(b.queue)
}

// QueueCap returns the queue capacity.
func (b *Bus) QueueCap() int {
	return cap(b.queue)
}

// Close stops the consumer and discards queued events.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		// Closing done first releases producers waiting on a full queue.
		close(b.done)
		b.sendMu.Lock()
		b.closed.Store(true)
		b.sendMu.Unlock()

		discarded := 0
	drain:
		for {
			select {
			case ev := <-b.queue:
				metrics.RecordSyncEvent(ev.Type.String(), outcomeDiscarded)
				discarded++
			default:
				break drain
			}
		}
		metrics.SetSyncQueueDepth(0)
		if discarded > 0 {
			b.logger.Debug("Discarded queued events on close", "count", discarded)
		}
	})
	return nil
}
