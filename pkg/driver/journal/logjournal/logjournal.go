package logjournal

import (
	"context"
	"log/slog"

	"fetchverify/pkg/driver/journal"
	"fetchverify/pkg/logging"
)

// Driver writes journal entries to the context logger.
type Driver struct{}

func New() *Driver { return &Driver{} }

func (d *Driver) Emit(ctx context.Context, e journal.Entry) error {
	logging.GetLogger(ctx).Log(ctx, level(e.Level), e.Message, "run_id", e.RunID, "source", "journal")
	return nil
}

func level(l journal.Level) slog.Level {
	switch l {
	case journal.LevelDebug:
		return slog.LevelDebug
	case journal.LevelWarn:
		return slog.LevelWarn
	case journal.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
