// Package systemd integrates the daemon with its systemd unit: readiness and
// watchdog notifications over sd_notify, and unit state over D-Bus.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. Without NOTIFY_SOCKET every call is a
// no-op.
type Notifier struct {
	logger *slog.Logger
	notify func(unsetEnv bool, state string) (bool, error)
}

// NewNotifier creates a notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger, notify: daemon.SdNotify}
}

// Ready tells systemd that startup finished.
func (n *Notifier) Ready() {
	n.send(daemon.SdNotifyReady)
}

// Stopping tells systemd that shutdown began.
func (n *Notifier) Stopping() {
	n.send(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) {
	n.send("STATUS=" + status)
}

func (n *Notifier) send(state string) bool {
	sent, err := n.notify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return false
	}
	return sent
}

// RunWatchdog pings the systemd watchdog at half the configured interval
// while healthy returns true. It returns immediately when the unit has no
// WatchdogSec.
func (n *Notifier) RunWatchdog(ctx context.Context, healthy func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if interval == 0 {
		return nil
	}
	return n.watchdog(ctx, interval/2, healthy)
}

func (n *Notifier) watchdog(ctx context.Context, period time.Duration, healthy func() bool) error {
	n.logger.Info("Watchdog enabled", "period", period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if healthy != nil && !healthy() {
				n.logger.Warn("Skipping watchdog ping, daemon unhealthy")
				continue
			}
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
