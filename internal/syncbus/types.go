package syncbus

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is a system occurrence that may change the status LED.
type EventType int

const (
	WifiConnecting EventType = iota
	WifiConnected
	WifiDisconnected
	AudioPlaying
	AudioStopped
	AudioRecording
	ButtonPressed
	ButtonReleased
	WebsocketConnected
	WebsocketDisconnected
	WebsocketMessage
	BatteryLow
	BatteryCharging
	SystemError
	SystemWarning
	SystemStartup
	SystemShutdown

	eventTypeCount
)

var eventTypeNames = [eventTypeCount]string{
	WifiConnecting:        "wifi-connecting",
	WifiConnected:         "wifi-connected",
	WifiDisconnected:      "wifi-disconnected",
	AudioPlaying:          "audio-playing",
	AudioStopped:          "audio-stopped",
	AudioRecording:        "audio-recording",
	ButtonPressed:         "button-pressed",
	ButtonReleased:        "button-released",
	WebsocketConnected:    "websocket-connected",
	WebsocketDisconnected: "websocket-disconnected",
	WebsocketMessage:      "websocket-message",
	BatteryLow:            "battery-low",
	BatteryCharging:       "battery-charging",
	SystemError:           "system-error",
	SystemWarning:         "system-warning",
	SystemStartup:         "system-startup",
	SystemShutdown:        "system-shutdown",
}

func (t EventType) String() string {
	if t.Valid() {
		return eventTypeNames[t]
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	return t >= 0 && t < eventTypeCount
}

// EventTypes lists every event type in declaration order.
func EventTypes() []EventType {
	types := make([]EventType, eventTypeCount)
	for i := range types {
		types[i] = EventType(i)
	}
	return types
}

// ParseEventType parses an event type name. Underscores are accepted in
// place of hyphens.
func ParseEventType(s string) (EventType, error) {
	s = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	for i, name := range eventTypeNames {
		if name == s {
			return EventType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown event type %q", ErrInvalidEvent, s)
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: event type %d", ErrInvalidEvent, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	parsed, err := ParseEventType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Event is one queued occurrence. Payload is owned by the bus once sent.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Payload   []byte
	Timestamp time.Time
}

// Handler reacts to a dispatched event.
type Handler func(Event) error
