package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/report"
)

const sample = `
digest_algorithm = "SHA512"
max_rounds = 3
round_delay = "2s"
concurrency = 4
authentication = " Bearer x "
metrics_textfile = "metrics/fetchverify.prom"

[download]
method = "post"
url = "https://h/files/{FILEID}"
mirrors = ["https://mirror.example"]

[journal]
log = false
sqlite = "journal.db"

[[response]]
type = "success"
method = "PUT"
url = "https://h/callback"
json = '{"ready": true}'

[[response]]
type = "error"
message = "download failed"
`

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Parse("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxRounds != 1 || cfg.DigestAlgorithm != "sha256" || cfg.Download.Method != "GET" || cfg.Concurrency != 1 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.Journal.Log || cfg.RoundDelay.Duration != 0 || cfg.Timeout.Duration != time.Minute {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(sample), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DigestAlgorithm != "sha512" || cfg.MaxRounds != 3 || cfg.Concurrency != 4 {
		t.Errorf("unexpected scalars: %+v", cfg)
	}
	if cfg.RoundDelay.Duration != 2*time.Second {
		t.Errorf("round_delay = %s", cfg.RoundDelay)
	}
	if cfg.Authentication != "Bearer x" || cfg.Download.Method != "POST" {
		t.Errorf("auth=%q method=%q", cfg.Authentication, cfg.Download.Method)
	}
	if cfg.Journal.Log || cfg.Journal.SQLite != filepath.Join(dir, "journal.db") {
		t.Errorf("unexpected journal: %+v", cfg.Journal)
	}
	if cfg.MetricsTextfile != filepath.Join(dir, "metrics", "fetchverify.prom") {
		t.Errorf("metrics_textfile = %s", cfg.MetricsTextfile)
	}
	if len(cfg.Responses) != 2 {
		t.Fatalf("responses = %+v", cfg.Responses)
	}
	if cfg.Responses[0].Trigger != report.TriggerSuccess || cfg.Responses[0].JSON != `{"ready": true}` {
		t.Errorf("first response = %+v", cfg.Responses[0])
	}
	if cfg.Responses[1].Method != "" || cfg.Responses[1].Message != "download failed" {
		t.Errorf("second response = %+v", cfg.Responses[1])
	}
}

func TestLoadMissingReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil || cfg.MaxRounds != 1 {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{"unknown key", `colour = "red"`, ErrInvalidConfig},
		{"zero rounds", `max_rounds = 0`, ErrInvalidConfig},
		{"bad trigger", "[[response]]\ntype = \"maybe\"", ErrInvalidConfig},
		{"bad method", "[download]\nmethod = \"DELETE\"", ErrInvalidConfig},
		{"url without placeholder", "[download]\nurl = \"https://h/files\"", ErrInvalidConfig},
		{"rest rule without url", "[[response]]\ntype = \"error\"\nmethod = \"POST\"", ErrInvalidConfig},
		{"unknown algorithm", `digest_algorithm = "md4"`, asset.ErrUnsupportedAlgorithm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.doc)
			if !errors.Is(err, tt.target) {
				t.Fatalf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestParseBadDuration(t *testing.T) {
	t.Parallel()

	if _, err := Parse(`round_delay = "soon"`); err == nil {
		t.Fatal("expected duration error")
	}
}
