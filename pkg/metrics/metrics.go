package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fetchverify"

// Metrics holds the collectors for one process. Each instance owns its
// registry so that tests and repeated runs never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	attempts    *prometheus.CounterVec
	assets      *prometheus.CounterVec
	bytes       prometheus.Counter
	rounds      prometheus.Gauge
	runSuccess  prometheus.Gauge
	reportOK    prometheus.Gauge
	reportRules *prometheus.CounterVec
	lastRun     prometheus.Gauge
	duration    prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_total",
			Help:      "Fetch and verify attempts by result.",
		}, []string{"result"}),
		assets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assets_total",
			Help:      "Assets that reached a final verdict.",
		}, []string{"verdict"}),
		bytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloaded_bytes_total",
			Help:      "Bytes written to disk by successful transfers.",
		}),
		rounds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_rounds",
			Help:      "Rounds executed by the last run.",
		}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if every asset of the last run was verified.",
		}),
		reportOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_reporting_success",
			Help:      "1 if every notification of the last run was delivered.",
		}),
		reportRules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_dispatch_total",
			Help:      "Notification rules dispatched by result.",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}
	m.registry.MustRegister(m.attempts, m.assets, m.bytes, m.rounds, m.runSuccess, m.reportOK, m.reportRules, m.lastRun, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAttempt records one fetch+verify attempt.
func (m *Metrics) ObserveAttempt(ok bool, n int64) {
	if m == nil {
		return
	}
	if ok {
		m.attempts.WithLabelValues("verified").Inc()
		m.bytes.Add(float64(n))
		return
	}
	m.attempts.WithLabelValues("failed").Inc()
}

// ObserveRun records the verdicts of a finished run.
func (m *Metrics) ObserveRun(verified, failed, rounds int, success, reportingOK bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.assets.WithLabelValues("verified").Add(float64(verified))
	m.assets.WithLabelValues("failed").Add(float64(failed))
	m.rounds.Set(float64(rounds))
	m.runSuccess.Set(boolGauge(success))
	m.reportOK.Set(boolGauge(reportingOK))
	m.lastRun.SetToCurrentTime()
	m.duration.Observe(elapsed.Seconds())
}

// ObserveReport records the dispatch results of the reporter.
func (m *Metrics) ObserveReport(dispatched, failed int) {
	if m == nil {
		return
	}
	m.reportRules.WithLabelValues("ok").Add(float64(dispatched - failed))
	m.reportRules.WithLabelValues("failed").Add(float64(failed))
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
