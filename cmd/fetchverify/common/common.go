package common

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"fetchverify/pkg/compat"
	"fetchverify/pkg/config"
	"fetchverify/pkg/driver/httpclient"
	"fetchverify/pkg/driver/httpclient/native"
	"fetchverify/pkg/driver/journal"
	"fetchverify/pkg/driver/journal/dbus"
	"fetchverify/pkg/driver/journal/logjournal"
	"fetchverify/pkg/driver/journal/sqlite"
	"fetchverify/pkg/driver/journal/systemd"
)

// LoadConfig loads the file named by --config. An explicit path must exist;
// the default path falls back to built-in defaults.
func LoadConfig(c *cobra.Command) (*config.Config, error) {
	path, _ := c.Flags().GetString("config")
	if c.Flags().Changed("config") {
		return config.LoadFile(path)
	}
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// HTTPDriver returns the shared HTTP driver for cfg.
func HTTPDriver(cfg *config.Config) httpclient.Driver {
	return httpclient.WithLogging(native.New(httpclient.Options{Timeout: cfg.Timeout.Duration}))
}

// OpenJournal builds the journal fan-out configured in cfg. Sinks that the
// host cannot provide are skipped. The returned function closes every sink.
func OpenJournal(ctx context.Context, cfg *config.Config) (journal.Driver, func(), error) {
	var drivers []journal.Driver
	var closers []func() error

	if cfg.Journal.Log {
		drivers = append(drivers, logjournal.New())
	}
	if cfg.Journal.Systemd {
		d, err := systemd.New()
		switch {
		case errors.Is(err, compat.ErrIncompatible):
			slog.Debug("systemd journal disabled", "error", err)
		case err != nil:
			return nil, nil, err
		default:
			drivers = append(drivers, d)
		}
	}
	if cfg.Journal.Notify {
		d, err := dbus.New()
		switch {
		case errors.Is(err, compat.ErrIncompatible):
			slog.Debug("desktop notifications disabled", "error", err)
		case err != nil:
			return nil, nil, err
		default:
			drivers = append(drivers, d)
			closers = append(closers, d.Close)
		}
	}
	if cfg.Journal.SQLite != "" {
		s, err := sqlite.Open(ctx, cfg.Journal.SQLite)
		if err != nil {
			for _, c := range closers {
				c()
			}
			return nil, nil, fmt.Errorf("failed to open journal database: %w", err)
		}
		drivers = append(drivers, s)
		closers = append(closers, s.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				slog.Warn("failed to close journal", "error", err)
			}
		}
	}
	return journal.Multi(drivers...), closeAll, nil
}
