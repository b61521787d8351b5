package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/journal"

	"fetchverify/pkg/compat"
	journaldriver "fetchverify/pkg/driver/journal"
)

const identifier = "fetchverify"

// Driver sends entries to the systemd journal with the run ID attached as
// a structured field.
type Driver struct {
	send func(message string, priority journal.Priority, vars map[string]string) error
}

func New() (*Driver, error) {
	if !journal.Enabled() {
		return nil, fmt.Errorf("%w: systemd journal socket not available", compat.ErrIncompatible)
	}
	return &Driver{send: journal.Send}, nil
}

func (d *Driver) Emit(ctx context.Context, e journaldriver.Entry) error {
	vars := map[string]string{
		"SYSLOG_IDENTIFIER": identifier,
	}
	if e.RunID != "" {
		vars["FETCHVERIFY_RUN_ID"] = e.RunID
	}
	if err := d.send(e.Message, priority(e.Level), vars); err != nil {
		return fmt.Errorf("systemd journal: %w", err)
	}
	return nil
}

func priority(l journaldriver.Level) journal.Priority {
	switch l {
	case journaldriver.LevelDebug:
		return journal.PriDebug
	case journaldriver.LevelWarn:
		return journal.PriWarning
	case journaldriver.LevelError:
		return journal.PriErr
	default:
		return journal.PriInfo
	}
}
