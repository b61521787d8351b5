package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/batch"
	"fetchverify/pkg/driver/journal"
	"fetchverify/pkg/logging"
	"fetchverify/pkg/metrics"
	"fetchverify/pkg/report"
	"fetchverify/pkg/sarifout"
	"fetchverify/pkg/source"
)

type State string

const (
	StateIdle       State = "idle"
	StateBatchBuilt State = "batch-built"
	StateRetrying   State = "retrying"
	StateReporting  State = "reporting"
	StateDone       State = "done"
)

// RunResult keeps the asset verdict and the reporting verdict apart so a
// caller can tell bad assets from an unreachable callback.
type RunResult struct {
	RunID              string
	State              State
	OverallSuccess     bool
	ReportingSucceeded bool
	FailedAssets       []asset.Request
	Failures           []batch.Failure
	Errors             []string
	Verified           int
	Rounds             int
}

func (r *RunResult) Success() bool {
	return r.OverallSuccess && r.ReportingSucceeded
}

type Options struct {
	// MaxRounds bounds the retry rounds. Default: 1
	MaxRounds int

	// Batch is handed to the coordinator of every run. Observer hooks are
	// chained, not replaced.
	Batch batch.Options

	// Journal receives run lifecycle entries. Optional.
	Journal journal.Driver

	// Metrics is updated per attempt and per run. Optional.
	Metrics *metrics.Metrics

	// MetricsTextfile is rewritten after every run when set.
	MetricsTextfile string

	// SarifOutput receives a SARIF report of the failed assets when set.
	SarifOutput string

	// OnState observes every state transition. Optional.
	OnState func(State)

	// NewRunID overrides uuid generation.
	NewRunID func() string
}

type Pipeline struct {
	source   source.Source
	fetcher  batch.Fetcher
	reporter *report.Reporter
	opts     Options
}

func New(src source.Source, f batch.Fetcher, reporter *report.Reporter, opts Options) *Pipeline {
	if opts.MaxRounds < 1 {
		opts.MaxRounds = 1
	}
	if opts.Journal == nil {
		opts.Journal = journal.Multi()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	if reporter == nil {
		reporter = report.New(nil, nil, report.Options{})
	}
	return &Pipeline{source: src, fetcher: f, reporter: reporter, opts: opts}
}

// FailureLine is the diagnostic collected for an asset that never verified.
func FailureLine(f batch.Failure) string {
	if f.LastErr == nil {
		return fmt.Sprintf("asset %s: failed %d times to download and verify %s", f.Request.ID, f.Attempts, f.Request.SourceURL)
	}
	return fmt.Sprintf("asset %s: failed %d times to download and verify %s: %v", f.Request.ID, f.Attempts, f.Request.SourceURL, f.LastErr)
}

// Run performs one single-shot pass: build the batch, retry, report once.
// The returned error is non-nil only when the run could not complete its
// rounds (source failure, fatal configuration error, cancellation); the
// reporter has still been invoked with a failure verdict in that case.
func (p *Pipeline) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	res := &RunResult{RunID: p.opts.NewRunID(), State: StateIdle}

	logger := logging.GetLogger(ctx).With("run_id", res.RunID)
	ctx = logging.WithLogger(ctx, logger)

	transition := func(s State) {
		logger.Debug("state transition", "from", res.State, "to", s)
		res.State = s
		if p.opts.OnState != nil {
			p.opts.OnState(s)
		}
	}

	reqs, runErr := p.source.Requests(ctx)
	if runErr != nil {
		runErr = fmt.Errorf("failed to build batch: %w", runErr)
		res.Errors = append(res.Errors, runErr.Error())
	} else {
		transition(StateBatchBuilt)
		p.emit(ctx, res.RunID, journal.LevelInfo, fmt.Sprintf("run started with %d assets", len(reqs)))

		transition(StateRetrying)
		var br *batch.Result
		br, runErr = p.coordinator().Run(ctx, reqs, p.opts.MaxRounds)
		if br != nil {
			res.Rounds = br.Rounds
			res.Verified = len(br.Verified)
			res.Failures = br.Failed
			res.FailedAssets = br.FailedRequests()
			for _, f := range br.Failed {
				res.Errors = append(res.Errors, FailureLine(f))
			}
		}
		if runErr != nil {
			res.Errors = append(res.Errors, runErr.Error())
		}
	}

	res.OverallSuccess = runErr == nil && len(res.FailedAssets) == 0

	transition(StateReporting)
	// the verdict is delivered even when the run itself was cancelled
	rctx := context.WithoutCancel(ctx)
	rr := p.reporter.Report(rctx, report.Verdict{
		RunID:   res.RunID,
		Success: res.OverallSuccess,
		Failed:  res.FailedAssets,
		Errors:  res.Errors,
	})
	res.ReportingSucceeded = rr.OK
	for _, err := range rr.Errors {
		res.Errors = append(res.Errors, err.Error())
	}
	p.opts.Metrics.ObserveReport(rr.Dispatched, len(rr.Errors))

	transition(StateDone)
	p.finish(rctx, res, time.Since(start))
	return res, runErr
}

func (p *Pipeline) coordinator() *batch.Coordinator {
	opts := p.opts.Batch
	onOutcome := opts.OnOutcome
	opts.OnOutcome = func(round int, o asset.Outcome) {
		p.opts.Metrics.ObserveAttempt(o.OK, o.Bytes)
		if onOutcome != nil {
			onOutcome(round, o)
		}
	}
	return batch.New(p.fetcher, opts)
}

func (p *Pipeline) finish(ctx context.Context, res *RunResult, elapsed time.Duration) {
	logger := logging.GetLogger(ctx)

	level := journal.LevelInfo
	if !res.Success() {
		level = journal.LevelError
	}
	p.emit(ctx, res.RunID, level, fmt.Sprintf("run finished: verified=%d failed=%d rounds=%d reporting_ok=%t",
		res.Verified, len(res.FailedAssets), res.Rounds, res.ReportingSucceeded))

	if p.opts.SarifOutput != "" {
		if err := sarifout.WriteFile(p.opts.SarifOutput, res.RunID, res.Failures); err != nil {
			logger.Warn("failed to write SARIF report", "path", p.opts.SarifOutput, "error", err)
		}
	}

	p.opts.Metrics.ObserveRun(res.Verified, len(res.FailedAssets), res.Rounds, res.OverallSuccess, res.ReportingSucceeded, elapsed)
	if err := p.opts.Metrics.WriteTextfile(p.opts.MetricsTextfile); err != nil {
		logger.Warn("failed to write metrics", "error", err)
	}

	logger.Info("run finished",
		"success", res.OverallSuccess,
		"reporting_ok", res.ReportingSucceeded,
		"verified", res.Verified,
		"failed", len(res.FailedAssets),
		"rounds", res.Rounds,
		"elapsed", elapsed.Round(time.Millisecond))
}

func (p *Pipeline) emit(ctx context.Context, runID string, level journal.Level, msg string) {
	if err := p.opts.Journal.Emit(ctx, journal.Entry{RunID: runID, Level: level, Message: msg}); err != nil {
		logging.GetLogger(ctx).Warn("failed to write journal entry", "error", err)
	}
}
