package journal

import (
	"context"
	"errors"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Entry is one message emitted by a run.
type Entry struct {
	RunID   string
	Level   Level
	Message string
	Time    time.Time
}

// Driver receives run messages. Implementations must be safe for use by a
// single run at a time; fan-out is done by Multi.
type Driver interface {
	Emit(ctx context.Context, e Entry) error
}

// Multi returns a Driver that emits to every driver and joins their errors.
func Multi(drivers ...Driver) Driver {
	var ds []Driver
	for _, d := range drivers {
		if d != nil {
			ds = append(ds, d)
		}
	}
	return multi(ds)
}

type multi []Driver

func (m multi) Emit(ctx context.Context, e Entry) error {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	var errs []error
	for _, d := range m {
		if err := d.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps entries in memory, mostly for tests and dry runs.
type Recorder struct {
	Entries []Entry
}

func (r *Recorder) Emit(ctx context.Context, e Entry) error {
	r.Entries = append(r.Entries, e)
	return nil
}
