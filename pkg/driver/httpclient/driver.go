package httpclient

import (
	"net/http"
	"time"

	"fetchverify/pkg/logging"
)

// Driver provides the HTTP client used for downloads and report callbacks.
type Driver interface {
	// Client returns a configured HTTP client with proper certificate handling
	Client() *http.Client
}

// Options configures the native driver.
type Options struct {
	// Timeout bounds a whole request including the body read.
	// Default: 60s
	Timeout time.Duration
}

// WithLogging wraps a Driver so that every HTTP request logs method, URL and status at Debug level.
func WithLogging(d Driver) Driver {
	return &loggingDriver{inner: d}
}

type loggingDriver struct {
	inner Driver
}

func (d *loggingDriver) Client() *http.Client {
	c := d.inner.Client()
	base := c.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	clone := *c
	clone.Transport = &loggingTransport{base: base}
	return &clone
}

type loggingTransport struct {
	base http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := logging.GetLogger(req.Context())
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		logger.Debug("http request failed", "method", req.Method, "url", req.URL.String(), "error", err)
		return nil, err
	}
	logger.Debug("http request", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "elapsed", time.Since(start))
	return resp, nil
}

// Static wraps an existing client, mostly for tests.
type Static struct {
	C *http.Client
}

func (s Static) Client() *http.Client {
	if s.C == nil {
		return http.DefaultClient
	}
	return s.C
}
