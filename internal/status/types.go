package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/statuslight/internal/anim"
	"github.com/smazurov/statuslight/internal/color"
)

// Kind is the meaning being displayed. Each kind has one base color.
type Kind int

const (
	Error Kind = iota
	Warning
	Normal
	Config
	Recording
	Playing
	Startup
	Off
)

var kindInfo = [...]struct {
	name  string
	color color.Color
}{
	Error:     {"error", color.Red},
	Warning:   {"warning", color.Yellow},
	Normal:    {"normal", color.Green},
	Config:    {"config", color.Blue},
	Recording: {"recording", color.Purple},
	Playing:   {"playing", color.Cyan},
	Startup:   {"startup", color.White},
	Off:       {"off", color.Black},
}

func (k Kind) String() string {
	if k.Valid() {
		return kindInfo[k].name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is a known status.
func (k Kind) Valid() bool {
	return k >= Error && k <= Off
}

// Color returns the base color of k, black for unknown kinds.
func (k Kind) Color() color.Color {
	if !k.Valid() {
		return color.Black
	}
	return kindInfo[k].color
}

// Kinds lists every status in declaration order.
func Kinds() []Kind {
	return []Kind{Error, Warning, Normal, Config, Recording, Playing, Startup, Off}
}

// ParseKind parses a status name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kindInfo {
		if info.name == s {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidArgument, int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Priority orders status requests. A request replaces the current status
// only if its priority is at least the current one.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityFunction
	PriorityWarning
	PriorityError
)

var priorityNames = [...]string{
	PriorityNormal:   "normal",
	PriorityFunction: "function",
	PriorityWarning:  "warning",
	PriorityError:    "error",
}

func (p Priority) String() string {
	if p.Valid() {
		return priorityNames[p]
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p >= PriorityNormal && p <= PriorityError
}

// ParsePriority parses a priority name.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == s {
			return Priority(p), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrInvalidArgument, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: priority %d", ErrInvalidArgument, int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Setting is the current status configuration.
type Setting struct {
	Status         Kind
	Animation      anim.Kind
	Priority       Priority
	Brightness     uint8
	Duration       time.Duration
	AutoBrightness bool
}

// State is a point-in-time copy of the arbitrator.
type State struct {
	Setting
	GlobalBrightness uint8
	Frame            uint32
	Animating        bool
	// Expired is set once a timed status has run out, whether or not the
	// return to normal was accepted.
	Expired bool
	// Color is the last color pushed to the LED.
	Color color.Color
}
