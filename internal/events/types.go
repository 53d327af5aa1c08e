package events

// Event type constants for kelindar/event.
const (
	TypeStatusChanged uint32 = iota + 1
	TypeStatusRejected
	TypeStatusExpired
	TypeBrightnessChanged
	TypeSyncEvent
	TypeRenderError
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// StatusChangedEvent is published when the arbitrator accepts a new status.
type StatusChangedEvent struct {
	Status     string `json:"status" example:"warning" doc:"New status"`
	Animation  string `json:"animation" example:"blinking" doc:"Animation"`
	Priority   string `json:"priority" example:"warning" doc:"Priority the status was set with"`
	DurationMs int64  `json:"duration_ms" example:"3000" doc:"Time until the status reverts, 0 for indefinite"`
	Color      string `json:"color" example:"#ffff00" doc:"Base color of the status"`
	Timestamp  string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusChangedEvent.
func (e StatusChangedEvent) Type() uint32 { return TypeStatusChanged }

// StatusRejectedEvent is published when a request loses to the priority of
// the current status.
type StatusRejectedEvent struct {
	Status          string `json:"status" example:"playing" doc:"Requested status"`
	Priority        string `json:"priority" example:"function" doc:"Requested priority"`
	CurrentStatus   string `json:"current_status" example:"error" doc:"Status that stays displayed"`
	CurrentPriority string `json:"current_priority" example:"error" doc:"Priority of the displayed status"`
	Timestamp       string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusRejectedEvent.
func (e StatusRejectedEvent) Type() uint32 { return TypeStatusRejected }

// StatusExpiredEvent is published when a timed status runs out and the
// arbitrator attempts to return to normal. Reverted is false when the revert
// lost to the expired status's own priority.
type StatusExpiredEvent struct {
	Status    string `json:"status" example:"startup" doc:"Status whose duration elapsed"`
	Frame     uint32 `json:"frame" example:"61" doc:"Frame at which the duration elapsed"`
	Reverted  bool   `json:"reverted" doc:"Whether the status returned to normal"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StatusExpiredEvent.
func (e StatusExpiredEvent) Type() uint32 { return TypeStatusExpired }

// BrightnessChangedEvent is published when the global brightness or the
// auto-brightness flag changes.
type BrightnessChangedEvent struct {
	Brightness     uint8  `json:"brightness" example:"128" doc:"Global brightness 0-255"`
	AutoBrightness bool   `json:"auto_brightness" doc:"Auto-brightness flag"`
	Timestamp      string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BrightnessChangedEvent.
func (e BrightnessChangedEvent) Type() uint32 { return TypeBrightnessChanged }

// SyncEvent reports what the sync bus did with one queued event.
type SyncEvent struct {
	ID        string `json:"id" example:"5b0d3a0e-3c1b-4f7e-9d0a-4a3c2b1d0e9f" doc:"Event identifier"`
	EventType string `json:"event_type" example:"wifi-connected" doc:"Sync event type"`
	Action    string `json:"action" example:"dispatched" doc:"dispatched, dropped or unhandled"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Time the event was produced"`
}

// Type returns the event type identifier for SyncEvent.
func (e SyncEvent) Type() uint32 { return TypeSyncEvent }

// RenderErrorEvent is published when a frame could not be pushed to the LED.
type RenderErrorEvent struct {
	Error     string `json:"error" example:"pulse: transmission timed out after 100ms" doc:"Error description"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RenderErrorEvent.
func (e RenderErrorEvent) Type() uint32 { return TypeRenderError }

// LogEntryEvent carries one log line to SSE clients.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2026-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"status" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
