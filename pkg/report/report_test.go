package report

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"fetchverify/pkg/driver/httpclient"
	"fetchverify/pkg/driver/journal"
)

type captured struct {
	Method  string
	Path    string
	Headers http.Header
	Body    map[string]any
}

type callbackServer struct {
	*httptest.Server
	mu    sync.Mutex
	calls []captured
}

func newCallbackServer(t *testing.T, status int) *callbackServer {
	t.Helper()
	cs := &callbackServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		json.Unmarshal(raw, &body)
		cs.mu.Lock()
		cs.calls = append(cs.calls, captured{Method: r.Method, Path: r.URL.Path, Headers: r.Header.Clone(), Body: body})
		cs.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func TestBuildBodyInjectsErrors(t *testing.T) {
	t.Parallel()

	raw, err := BuildBody(`{"ready": true}`, []string{"x"})
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"ready": true, "errors": []any{"x"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("body = %v, want %v", got, want)
	}
}

func TestBuildBodyEdgeCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tmpl    string
		errs    []string
		want    string
		wantErr bool
	}{
		{"blank template", "  ", nil, `{"errors":[]}`, false},
		{"overwrites errors", `{"errors": "old", "n": 12345678901234567890}`, []string{"a", "b"}, `{"errors":["a","b"],"n":12345678901234567890}`, false},
		{"array template", `[1,2]`, nil, "", true},
		{"broken template", `{"ready":`, nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildBody(tt.tmpl, tt.errs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.want {
				t.Fatalf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReportSuccessRules(t *testing.T) {
	t.Parallel()

	srv := newCallbackServer(t, http.StatusNoContent)
	rec := &journal.Recorder{}
	rules := []Rule{
		{Trigger: TriggerSuccess, Method: "put", URL: srv.URL + "/done", JSON: `{"ready": true}`},
		{Trigger: TriggerError, Method: "POST", URL: srv.URL + "/failed"},
		{Trigger: TriggerSuccess, Message: "all assets verified"},
	}
	r := New(httpclient.Static{C: srv.Client()}, rules, Options{Token: "Bearer t", Journal: rec})

	res := r.Report(context.Background(), Verdict{RunID: "r1", Success: true, Errors: []string{"x"}})
	if !res.OK || res.Dispatched != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(srv.calls) != 1 {
		t.Fatalf("expected one callback, got %d", len(srv.calls))
	}
	call := srv.calls[0]
	if call.Method != http.MethodPut || call.Path != "/done" {
		t.Errorf("got %s %s", call.Method, call.Path)
	}
	if call.Headers.Get("Accept") != "application/json" || call.Headers.Get("Content-Type") != "application/json" {
		t.Errorf("unexpected headers: %v", call.Headers)
	}
	if call.Headers.Get("Authorization") != "Bearer t" {
		t.Errorf("authorization = %q", call.Headers.Get("Authorization"))
	}
	want := map[string]any{"ready": true, "errors": []any{"x"}}
	if !reflect.DeepEqual(call.Body, want) {
		t.Errorf("body = %v, want %v", call.Body, want)
	}
	if len(rec.Entries) != 1 || rec.Entries[0].Level != journal.LevelInfo || rec.Entries[0].Message != "all assets verified" || rec.Entries[0].RunID != "r1" {
		t.Errorf("unexpected journal entries: %+v", rec.Entries)
	}
}

func TestReportErrorMessageUsesErrorLevel(t *testing.T) {
	t.Parallel()

	rec := &journal.Recorder{}
	r := New(nil, []Rule{{Trigger: TriggerError, Message: "download failed"}}, Options{Journal: rec})
	res := r.Report(context.Background(), Verdict{Success: false})
	if !res.OK {
		t.Fatalf("message rules always succeed: %+v", res)
	}
	if len(rec.Entries) != 1 || rec.Entries[0].Level != journal.LevelError {
		t.Fatalf("unexpected entries: %+v", rec.Entries)
	}
}

func TestReportContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	bad := newCallbackServer(t, http.StatusInternalServerError)
	good := newCallbackServer(t, http.StatusOK)
	rules := []Rule{
		{Trigger: TriggerError, Method: "DELETE", URL: good.URL + "/never"},
		{Trigger: TriggerError, Method: "POST", URL: bad.URL + "/a"},
		{Trigger: TriggerError, Method: "PATCH", URL: good.URL + "/b"},
	}
	r := New(httpclient.Static{C: good.Client()}, rules, Options{})

	res := r.Report(context.Background(), Verdict{Success: false, Errors: []string{"asset a failed"}})
	if res.OK {
		t.Fatal("expected aggregated failure")
	}
	if res.Dispatched != 3 || len(res.Errors) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	var unknown *UnknownMethodError
	if !errors.As(res.Errors[0], &unknown) || unknown.Method != "DELETE" {
		t.Errorf("first error = %v", res.Errors[0])
	}
	if !errors.Is(res.Errors[1], ErrReportingFailed) {
		t.Errorf("second error = %v", res.Errors[1])
	}
	if len(good.calls) != 1 || good.calls[0].Method != http.MethodPatch {
		t.Fatalf("unknown method must not reach the network; calls = %+v", good.calls)
	}
	if len(bad.calls) != 1 {
		t.Fatalf("expected the failing endpoint to be called once, got %d", len(bad.calls))
	}
}

func TestReportUnreachableEndpoint(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	url := srv.URL
	srv.Close()

	r := New(nil, []Rule{{Trigger: TriggerSuccess, Method: "POST", URL: url}}, Options{})
	res := r.Report(context.Background(), Verdict{Success: true})
	if res.OK || !errors.Is(res.Errors[0], ErrReportingFailed) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestReportNoMatchingRules(t *testing.T) {
	t.Parallel()

	r := New(nil, []Rule{{Trigger: TriggerError, Message: "x"}}, Options{})
	res := r.Report(context.Background(), Verdict{Success: true})
	if !res.OK || res.Dispatched != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}
