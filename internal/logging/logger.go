package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

const defaultBufferSize = 500

// Logger is satisfied by *slog.Logger. Packages that only emit logs accept
// this instead of the concrete type.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config is the [logging] section.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type moduleLogger struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var (
	mu          sync.RWMutex
	current     = Config{Level: "info", Format: "text"}
	initialized bool
	modules     = make(map[string]*moduleLogger)
	rootLevel   = &slog.LevelVar{}
	buffer      = NewRingBuffer(defaultBufferSize)
	onEntry     EntryCallback
)

// Initialize applies cfg to the default logger and to every module logger,
// including ones created before this call.
func Initialize(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	current = cfg
	initialized = true
	rootLevel.Set(parseLevelOr(cfg.Level, slog.LevelInfo))

	for name, m := range modules {
		m.level.Set(moduleLevel(name))
		m.logger = slog.New(newHandler(cfg.Format, m.level)).With("module", name)
	}

	slog.SetDefault(slog.New(newHandler(cfg.Format, rootLevel)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	m, ok := modules[module]
	mu.RUnlock()
	if ok {
		return m.logger
	}

	mu.Lock()
	defer mu.Unlock()

	if m, ok := modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(moduleLevel(module))

	format := current.Format
	if !initialized {
		format = "text"
	}

	m = &moduleLogger{
		logger: slog.New(newHandler(format, level)).With("module", module),
		level:  level,
	}
	modules[module] = m
	return m.logger
}

// SetLevel changes the level of one module, or of the default logger and
// every module without an override when module is empty.
func SetLevel(module, level string) error {
	lvl, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	mu.Lock()
	defer mu.Unlock()

	if module == "" {
		current.Level = level
		rootLevel.Set(lvl)
		for name, m := range modules {
			if _, override := current.Modules[name]; !override {
				m.level.Set(lvl)
			}
		}
		return nil
	}

	if current.Modules == nil {
		current.Modules = make(map[string]string)
	}
	current.Modules[module] = level
	if m, ok := modules[module]; ok {
		m.level.Set(lvl)
	}
	return nil
}

// Levels reports the effective level of every known module.
func Levels() map[string]string {
	mu.RLock()
	defer mu.RUnlock()

	out := make(map[string]string, len(modules)+1)
	out["default"] = levelName(rootLevel.Level())
	names := make([]string, 0, len(modules))
	for name := range modules {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out[name] = levelName(modules[name].level.Level())
	}
	return out
}

// Buffer returns the ring buffer of recent entries.
func Buffer() *RingBuffer {
	return buffer
}

// OnEntry registers a callback invoked for every buffered entry. It lets the
// API publish log lines without the logging package importing it.
func OnEntry(cb EntryCallback) {
	mu.Lock()
	defer mu.Unlock()
	onEntry = cb
}

func entryCallback() EntryCallback {
	mu.RLock()
	defer mu.RUnlock()
	return onEntry
}

// moduleLevel must be called with mu held.
func moduleLevel(module string) slog.Level {
	if s, ok := current.Modules[module]; ok {
		if lvl, ok := parseLevel(s); ok {
			return lvl
		}
	}
	return parseLevelOr(current.Level, slog.LevelInfo)
}

// newHandler builds the sink chain for one logger.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler
	if stdoutAvailable() {
		if format == "json" {
			handlers = append(handlers, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if JournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	handlers = append(handlers, NewBufferHandler(buffer, level))

	if len(handlers) == 1 {
		return handlers[0]
	}
	return NewMultiHandler(handlers...)
}

// stdoutAvailable reports whether stdout goes somewhere useful (not /dev/null).
func stdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&os.ModeCharDevice != 0 || mode&os.ModeNamedPipe != 0 || mode&os.ModeSocket != 0 || mode.IsRegular()
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

func parseLevelOr(s string, def slog.Level) slog.Level {
	if lvl, ok := parseLevel(s); ok {
		return lvl
	}
	return def
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
