package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit name the daemon is installed as.
const DefaultUnit = "statuslight.service"

// UnitStatus is the state of a systemd unit.
type UnitStatus struct {
	Unit        string `json:"unit" example:"statuslight.service" doc:"Unit name"`
	ActiveState string `json:"active_state" example:"active" doc:"systemd ActiveState"`
	SubState    string `json:"sub_state" example:"running" doc:"systemd SubState"`
}

// Manager reads and restarts the daemon's own unit via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to the system bus, or the user bus when user is set.
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	if unit == "" {
		unit = DefaultUnit
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the managed unit name.
func (m *Manager) Unit() string {
	return m.unit
}

// Status retrieves ActiveState and SubState of the unit.
func (m *Manager) Status(ctx context.Context) (UnitStatus, error) {
	props, err := m.conn.GetUnitPropertiesContext(ctx, m.unit)
	if err != nil {
		return UnitStatus{}, err
	}
	st := UnitStatus{Unit: m.unit}
	st.ActiveState, _ = props["ActiveState"].(string)
	st.SubState, _ = props["SubState"].(string)
	return st, nil
}

// Restart asks systemd to restart the unit. The call returns once the job
// is queued; the daemon itself receives SIGTERM shortly after.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
