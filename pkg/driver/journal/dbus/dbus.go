package dbus

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"fetchverify/pkg/compat"
	"fetchverify/pkg/driver/journal"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = "/org/freedesktop/Notifications"
	notifyMethod = "org.freedesktop.Notifications.Notify"
	appName      = "fetchverify"
)

// Driver shows entries as desktop notifications. Debug entries are skipped.
type Driver struct {
	conn *dbus.Conn
}

func New() (*Driver, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: session bus: %v", compat.ErrIncompatible, err)
	}
	return &Driver{conn: conn}, nil
}

func (d *Driver) Emit(ctx context.Context, e journal.Entry) error {
	if e.Level == journal.LevelDebug {
		return nil
	}
	obj := d.conn.Object(notifyDest, dbus.ObjectPath(notifyPath))
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName,
		uint32(0),
		"",
		summary(e.Level),
		e.Message,
		[]string{},
		map[string]dbus.Variant{"urgency": dbus.MakeVariant(urgency(e.Level))},
		int32(-1),
	)
	if call.Err != nil {
		return fmt.Errorf("desktop notification: %w", call.Err)
	}
	return nil
}

func (d *Driver) Close() error {
	return d.conn.Close()
}

func summary(l journal.Level) string {
	if l == journal.LevelError {
		return "fetchverify: assets failed"
	}
	return "fetchverify"
}

// urgency follows the freedesktop notification spec: 0 low, 1 normal, 2 critical.
func urgency(l journal.Level) byte {
	switch l {
	case journal.LevelError:
		return 2
	case journal.LevelWarn, journal.LevelInfo:
		return 1
	default:
		return 0
	}
}
