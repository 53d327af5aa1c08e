package syncbus

import (
	"time"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/status"
)

// Action is the status a default handler requests.
type Action struct {
	Status    status.Kind
	Animation anim.Kind
	Priority  status.Priority
	Duration  time.Duration
}

// DefaultActions is the default event to status mapping. ButtonPressed uses
// the feedback duration instead of its table duration, and ButtonReleased
// has no entry.
var DefaultActions = map[EventType]Action{
	WifiConnecting:        {status.Config, anim.Breathing, status.PriorityFunction, 0},
	WifiConnected:         {status.Normal, anim.FadeInOut, status.PriorityFunction, 2000 * time.Millisecond},
	WifiDisconnected:      {status.Warning, anim.Blinking, status.PriorityWarning, 0},
	AudioPlaying:          {status.Playing, anim.Fade, status.PriorityFunction, 0},
	AudioRecording:        {status.Recording, anim.Breathing, status.PriorityFunction, 0},
	AudioStopped:          {status.Normal, anim.None, status.PriorityNormal, 0},
	ButtonPressed:         {status.Startup, anim.None, status.PriorityFunction, DefaultFeedbackDuration},
	WebsocketConnected:    {status.Config, anim.FadeInOut, status.PriorityFunction, 1000 * time.Millisecond},
	WebsocketDisconnected: {status.Warning, anim.Blinking, status.PriorityWarning, 3000 * time.Millisecond},
	WebsocketMessage:      {status.Playing, anim.None, status.PriorityFunction, 200 * time.Millisecond},
	BatteryLow:            {status.Warning, anim.Blinking, status.PriorityWarning, 0},
	BatteryCharging:       {status.Config, anim.Breathing, status.PriorityFunction, 0},
	SystemError:           {status.Error, anim.Blinking, status.PriorityError, 0},
	SystemWarning:         {status.Warning, anim.Breathing, status.PriorityWarning, 0},
	SystemStartup:         {status.Startup, anim.Rainbow, status.PriorityFunction, 3000 * time.Millisecond},
	SystemShutdown:        {status.Off, anim.FadeInOut, status.PriorityFunction, 2000 * time.Millisecond},
}

// SetHandler returns a handler that requests act.
func (b *Bus) SetHandler(act Action) Handler {
	return func(Event) error {
		return b.setter.Set(act.Status, act.Animation, act.Priority, act.Duration)
	}
}

func (b *Bus) registerDefaults() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, act := range DefaultActions {
		b.handlers[t] = b.SetHandler(act)
	}
	b.handlers[ButtonPressed] = b.buttonFeedback
	b.handlers[ButtonReleased] = func(ev Event) error {
		b.logger.Debug("Button released", "button", ButtonID(ev))
		return nil
	}
}

func (b *Bus) buttonFeedback(ev Event) error {
	act := DefaultActions[ButtonPressed]
	_, act.Duration = b.Feedback()
	b.logger.Debug("Button pressed, showing feedback", "button", ButtonID(ev), "duration", act.Duration)
	return b.setter.Set(act.Status, act.Animation, act.Priority, act.Duration)
}
