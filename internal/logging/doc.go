// Package logging provides per-module structured loggers built on log/slog.
//
// Records fan out to every available sink:
//   - stdout (text or JSON) when a terminal, pipe or file is attached
//   - the systemd journal when journald is reachable
//   - an in-memory ring buffer served by the HTTP API
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"status": "debug"},
//	})
//
//	logger := logging.GetLogger("status")
//	logger.Info("Status changed", "status", "warning")
//
// Module levels can be changed at runtime with SetLevel; loggers already
// handed out pick up the change.
//
// When running under systemd:
//
//	journalctl -t statuslight -f
//	journalctl -t statuslight MODULE=syncbus
package logging
