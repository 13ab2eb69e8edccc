// Package systemd restarts the capture unit over D-Bus after a binary
// update. The update subcommand swaps the executable on disk; the unit
// keeps running the old image until it is restarted.
package systemd

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
)

// Manager wraps a user-level D-Bus connection to systemd.
type Manager struct {
	conn *dbus.Conn
}

// NewManager connects to the per-user systemd instance, matching how
// the capture service is deployed.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewUserConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	return &Manager{conn: conn}, nil
}

// Status returns the ActiveState property of a unit.
func (m *Manager) Status(ctx context.Context, unit string) (string, error) {
	prop, err := m.conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", err
	}
	return prop.Value.String(), nil
}

// Restart restarts a unit in replace mode, queueing behind any job
// already running for it.
func (m *Manager) Restart(ctx context.Context, unit string) error {
	_, err := m.conn.RestartUnitContext(ctx, unit, "replace", nil)
	return err
}

// Close releases the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
