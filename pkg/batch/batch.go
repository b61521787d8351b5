package batch

import (
	"context"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/fetcher"
	"fetchverify/pkg/logging"
	"fetchverify/pkg/verify"
)

// Fetcher retrieves one asset to disk. *fetcher.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req asset.Request) (fetcher.Result, error)
}

// VerifyFunc checks a written file against its expected digest.
type VerifyFunc func(actual, expected, path string) error

// Round summarises one pass over the pending set.
type Round struct {
	Number    int
	Pending   int // before the round
	Remaining int // after the round
}

// Options configures a Coordinator.
type Options struct {
	// Concurrency is the number of items fetched in parallel within a round.
	// Default: 1
	Concurrency int

	// RoundDelay is waited before every round after the first.
	// Default: 0 (rounds run back to back)
	RoundDelay time.Duration

	// Verify replaces verify.Verify. Optional.
	Verify VerifyFunc

	// OnRound is called after every round. Optional.
	OnRound func(Round)

	// OnOutcome is called for every attempt once its round is folded. Optional.
	OnOutcome func(round int, o asset.Outcome)
}

// Failure is a request that was still pending when the rounds ran out.
type Failure struct {
	Request  asset.Request
	Attempts int
	LastErr  error
}

type Result struct {
	Verified []asset.Outcome
	Failed   []Failure
	Rounds   int
}

// FailedRequests returns the requests left pending, in batch order.
func (r *Result) FailedRequests() []asset.Request {
	out := make([]asset.Request, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Request)
	}
	return out
}

type Coordinator struct {
	fetcher Fetcher
	opts    Options
}

func New(f Fetcher, opts Options) *Coordinator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Verify == nil {
		opts.Verify = verify.Verify
	}
	return &Coordinator{fetcher: f, opts: opts}
}

// Run drives fetch+verify over reqs for at most maxRounds rounds, re-driving
// only the requests that failed. Item failures never abort the run; fatal
// configuration errors and context cancellation do, in which case the
// returned Result still lists everything that was pending.
func (c *Coordinator) Run(ctx context.Context, reqs []asset.Request, maxRounds int) (*Result, error) {
	logger := logging.GetLogger(ctx)

	if err := asset.ValidateBatch(reqs); err != nil {
		return nil, err
	}
	if maxRounds < 1 {
		maxRounds = 1
	}

	// destinations stay owned by the first request that claimed them
	ctx = fetcher.WithClaims(ctx, fetcher.NewClaims())

	res := &Result{}
	pending := slices.Clone(reqs)
	attempts := make(map[string]int, len(reqs))
	lastErr := make(map[string]error, len(reqs))

	finish := func(err error) (*Result, error) {
		for _, r := range pending {
			res.Failed = append(res.Failed, Failure{Request: r, Attempts: attempts[r.ID], LastErr: lastErr[r.ID]})
		}
		return res, err
	}

	for round := 1; round <= maxRounds && len(pending) > 0; round++ {
		if round > 1 && c.opts.RoundDelay > 0 {
			logger.Debug("waiting before next round", "round", round, "delay", c.opts.RoundDelay)
			select {
			case <-time.After(c.opts.RoundDelay):
			case <-ctx.Done():
				return finish(ctx.Err())
			}
		}
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		outcomes, fatal := c.runRound(ctx, pending)

		next := make([]asset.Request, 0, len(pending))
		for i, o := range outcomes {
			id := pending[i].ID
			attempts[id]++
			if o.OK {
				res.Verified = append(res.Verified, o)
			} else {
				lastErr[id] = o.Err
				next = append(next, pending[i])
				logger.Warn("failed to download and verify asset", "round", round, "id", id, "url", pending[i].SourceURL, "error", o.Err)
			}
			if c.opts.OnOutcome != nil {
				c.opts.OnOutcome(round, o)
			}
		}

		rd := Round{Number: round, Pending: len(pending), Remaining: len(next)}
		logger.Info("round finished", "round", round, "max_rounds", maxRounds, "pending", rd.Pending, "remaining", rd.Remaining)
		if c.opts.OnRound != nil {
			c.opts.OnRound(rd)
		}

		pending = next
		res.Rounds = round

		if fatal != nil {
			return finish(fatal)
		}
	}

	return finish(nil)
}

// runRound attempts every pending request. Each worker owns one slot of the
// outcome slice; the pending set itself is only touched by Run.
func (c *Coordinator) runRound(ctx context.Context, pending []asset.Request) ([]asset.Outcome, error) {
	outcomes := make([]asset.Outcome, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, req := range pending {
		g.Go(func() error {
			outcomes[i] = c.attempt(gctx, req)
			if asset.IsFatal(outcomes[i].Err) {
				return outcomes[i].Err
			}
			return nil
		})
	}
	return outcomes, g.Wait()
}

func (c *Coordinator) attempt(ctx context.Context, req asset.Request) asset.Outcome {
	if err := ctx.Err(); err != nil {
		return asset.Outcome{Request: req, Err: err}
	}
	fr, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return asset.Outcome{Request: req, Err: err}
	}
	o := asset.Outcome{Request: req, Path: fr.Path, Digest: fr.Digest, Bytes: fr.Bytes}
	if err := c.opts.Verify(fr.Digest, req.ExpectedDigest, fr.Path); err != nil {
		o.Err = err
		return o
	}
	o.OK = true
	logging.GetLogger(ctx).Debug("asset verified", "id", req.ID, "path", fr.Path, "digest", fr.Digest)
	return o
}
