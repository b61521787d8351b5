package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/driver/httpclient"
	"fetchverify/pkg/driver/journal"
	"fetchverify/pkg/logging"
)

type Trigger string

const (
	TriggerSuccess Trigger = "success"
	TriggerError   Trigger = "error"
)

var (
	ErrUnknownMethod   = errors.New("unknown method")
	ErrReportingFailed = errors.New("reporting failed")
)

// UnknownMethodError is returned for a rule whose method is not PUT, POST or PATCH.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("unknown method: %s", e.Method)
}

func (e *UnknownMethodError) Unwrap() error { return ErrUnknownMethod }

// Rule is one configured notification. An empty Method emits Message
// through the journal; otherwise JSON is sent to URL.
type Rule struct {
	Trigger Trigger `toml:"type" json:"type"`
	Method  string  `toml:"method" json:"method"`
	URL     string  `toml:"url" json:"url"`
	JSON    string  `toml:"json" json:"json"`
	Message string  `toml:"message" json:"message"`
}

func (r Rule) String() string {
	if r.Method == "" {
		return fmt.Sprintf("%s message", r.Trigger)
	}
	return fmt.Sprintf("%s %s %s", r.Trigger, strings.ToUpper(r.Method), r.URL)
}

// Verdict is what a run hands to the reporter once it reached a terminal state.
type Verdict struct {
	RunID   string
	Success bool
	Failed  []asset.Request
	Errors  []string
}

// Result aggregates the dispatch of every matching rule.
type Result struct {
	OK         bool
	Dispatched int
	Errors     []error
}

type Options struct {
	// Token is sent verbatim in the Authorization header when non-empty.
	Token string

	// Journal receives message rules. Defaults to a no-op.
	Journal journal.Driver
}

type Reporter struct {
	http  httpclient.Driver
	rules []Rule
	opts  Options
}

func New(d httpclient.Driver, rules []Rule, opts Options) *Reporter {
	if d == nil {
		d = httpclient.Static{}
	}
	if opts.Journal == nil {
		opts.Journal = journal.Multi()
	}
	return &Reporter{http: d, rules: rules, opts: opts}
}

// Rules returns the configured rules for trigger, in configured order.
func (r *Reporter) Rules(trigger Trigger) []Rule {
	var out []Rule
	for _, rule := range r.rules {
		if rule.Trigger == trigger {
			out = append(out, rule)
		}
	}
	return out
}

// Report dispatches every rule matching the verdict. A failing rule never
// stops the following ones; Result.OK is true only if all of them succeeded.
func (r *Reporter) Report(ctx context.Context, v Verdict) Result {
	logger := logging.GetLogger(ctx)

	trigger := TriggerError
	level := journal.LevelError
	if v.Success {
		trigger = TriggerSuccess
		level = journal.LevelInfo
	}

	res := Result{OK: true}
	for _, rule := range r.Rules(trigger) {
		res.Dispatched++
		if strings.TrimSpace(rule.Method) == "" {
			if err := r.opts.Journal.Emit(ctx, journal.Entry{RunID: v.RunID, Level: level, Message: rule.Message}); err != nil {
				logger.Warn("failed to emit message", "rule", rule.String(), "error", err)
			}
			continue
		}
		if err := r.send(ctx, rule, v.Errors); err != nil {
			logger.Error("failed to send response via REST", "rule", rule.String(), "error", err)
			res.OK = false
			res.Errors = append(res.Errors, err)
		}
	}

	logger.Debug("reporting finished", "trigger", trigger, "rules", res.Dispatched, "ok", res.OK, "failed_assets", len(v.Failed))
	return res
}

func (r *Reporter) send(ctx context.Context, rule Rule, errs []string) error {
	method := strings.ToUpper(strings.TrimSpace(rule.Method))
	switch method {
	case http.MethodPut, http.MethodPost, http.MethodPatch:
	default:
		return &UnknownMethodError{Method: rule.Method}
	}

	body, err := BuildBody(rule.JSON, errs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportingFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rule.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReportingFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if r.opts.Token != "" {
		req.Header.Set("Authorization", r.opts.Token)
	}

	logging.GetLogger(ctx).Info("executing request", "method", method, "url", rule.URL)
	resp, err := r.http.Client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrReportingFailed, method, rule.URL, err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s %s: unexpected response status %s", ErrReportingFailed, method, rule.URL, resp.Status)
	}
	logging.GetLogger(ctx).Debug("response received", "status", resp.StatusCode, "body", string(respBody))
	return nil
}

// BuildBody parses tmpl as a JSON object (blank means {}) and sets its
// "errors" field to errs. The field is always an array.
func BuildBody(tmpl string, errs []string) ([]byte, error) {
	obj := map[string]any{}
	if strings.TrimSpace(tmpl) != "" {
		dec := json.NewDecoder(strings.NewReader(tmpl))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("invalid json template: %w", err)
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("json template must be an object")
		}
		obj = m
	}
	if errs == nil {
		errs = []string{}
	}
	obj["errors"] = errs
	return json.Marshal(obj)
}
