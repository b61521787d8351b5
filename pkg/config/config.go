package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fetchverify/pkg/digest"
	"fetchverify/pkg/report"

	"github.com/BurntSushi/toml"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schema []byte

var ErrInvalidConfig = errors.New("invalid config")

// Duration decodes TOML strings such as "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		d.Duration = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type DownloadConfig struct {
	Method  string   `toml:"method"`
	URL     string   `toml:"url"`
	Mirrors []string `toml:"mirrors"`
}

type JournalConfig struct {
	Log     bool   `toml:"log"`
	Systemd bool   `toml:"systemd"`
	SQLite  string `toml:"sqlite"`
	Notify  bool   `toml:"notify"`
}

type Config struct {
	DigestAlgorithm string   `toml:"digest_algorithm"`
	MaxRounds       int      `toml:"max_rounds"`
	RoundDelay      Duration `toml:"round_delay"`
	Concurrency     int      `toml:"concurrency"`
	Authentication  string   `toml:"authentication"`
	Timeout         Duration `toml:"timeout"`
	MetricsTextfile string   `toml:"metrics_textfile"`
	SarifOutput     string   `toml:"sarif_output"`
	Manifest        string   `toml:"manifest"`

	Download  DownloadConfig `toml:"download"`
	Journal   JournalConfig  `toml:"journal"`
	Responses []report.Rule  `toml:"response"`
}

func Default() *Config {
	return &Config{
		DigestAlgorithm: digest.SHA256,
		MaxRounds:       1,
		Concurrency:     1,
		Timeout:         Duration{60 * time.Second},
		Download:        DownloadConfig{Method: "GET"},
		Journal:         JournalConfig{Log: true},
	}
}

// DefaultPath is $FETCHVERIFY_CONFIG or <user config dir>/fetchverify/config.toml.
func DefaultPath() string {
	if p := os.Getenv("FETCHVERIFY_CONFIG"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "fetchverify", "config.toml")
}

// Load reads path, returning the defaults when the file does not exist.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads and validates path. Relative paths inside the file are
// resolved against its directory.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	cfg, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.resolvePaths(filepath.Dir(path))
	return cfg, nil
}

// Parse decodes a TOML document on top of the defaults and validates it.
func Parse(data string) (*Config, error) {
	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	cfg := Default()
	if _, err := toml.Decode(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateSchema(raw map[string]any) error {
	if raw == nil {
		raw = map[string]any{}
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}
	if !result.Valid() {
		var errs strings.Builder
		for _, desc := range result.Errors() {
			fmt.Fprintf(&errs, "\n- %s", desc)
		}
		return fmt.Errorf("%w:%s", ErrInvalidConfig, errs.String())
	}
	return nil
}

func (c *Config) normalize() {
	c.DigestAlgorithm = strings.ToLower(strings.TrimSpace(c.DigestAlgorithm))
	c.Authentication = strings.TrimSpace(c.Authentication)
	c.Download.Method = strings.ToUpper(strings.TrimSpace(c.Download.Method))
	if c.Download.Method == "" {
		c.Download.Method = "GET"
	}
	c.Download.URL = strings.TrimSpace(c.Download.URL)
	if c.MaxRounds < 1 {
		c.MaxRounds = 1
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	for i := range c.Responses {
		r := &c.Responses[i]
		r.Trigger = report.Trigger(strings.ToLower(strings.TrimSpace(string(r.Trigger))))
		r.Method = strings.TrimSpace(r.Method)
		r.URL = strings.TrimSpace(r.URL)
	}
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{&c.Journal.SQLite, &c.MetricsTextfile, &c.SarifOutput, &c.Manifest} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
}

// Validate checks what the schema cannot express.
func (c *Config) Validate() error {
	if _, err := digest.Lookup(c.DigestAlgorithm); err != nil {
		return err
	}
	if c.Download.URL != "" && !strings.Contains(c.Download.URL, "{FILEID}") {
		return fmt.Errorf("%w: download.url must contain {FILEID}", ErrInvalidConfig)
	}
	if c.RoundDelay.Duration < 0 || c.Timeout.Duration < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	for i, r := range c.Responses {
		if r.Method != "" && r.URL == "" {
			return fmt.Errorf("%w: response %d has method %s but no url", ErrInvalidConfig, i, r.Method)
		}
	}
	return nil
}
