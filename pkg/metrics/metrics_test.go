package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAttempt(true, 100)
	m.ObserveAttempt(false, 0)
	m.ObserveAttempt(true, 50)
	m.ObserveReport(2, 1)
	m.ObserveRun(2, 1, 3, false, false, 2*time.Second)

	path := filepath.Join(t.TempDir(), "textfile", "fetchverify.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(raw)
	for _, want := range []string{
		`fetchverify_attempts_total{result="verified"} 2`,
		`fetchverify_attempts_total{result="failed"} 1`,
		`fetchverify_downloaded_bytes_total 150`,
		`fetchverify_assets_total{verdict="failed"} 1`,
		`fetchverify_last_run_rounds 3`,
		`fetchverify_last_run_success 0`,
		`fetchverify_report_dispatch_total{result="failed"} 1`,
		`fetchverify_run_duration_seconds_count 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveAttempt(true, 1)
	m.ObserveRun(1, 0, 1, true, true, time.Second)
	m.ObserveReport(1, 0)
	if err := m.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Fatalf("nil metrics must not write: %v", err)
	}
}

func TestInstancesAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := New(), New()
	a.ObserveAttempt(true, 10)

	mfs, err := b.Registry().Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() == "fetchverify_attempts_total" && len(mf.GetMetric()) != 0 {
			t.Fatal("counter leaked across registries")
		}
	}
}
