package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/digest"
	fetchurldriver "fetchverify/pkg/driver/fetchurl"
	"fetchverify/pkg/driver/httpclient"
	"fetchverify/pkg/logging"
)

// ProgressFunc returns a writer that observes the bytes of one download.
// total is -1 when the server did not declare a length.
type ProgressFunc func(req asset.Request, total int64) io.Writer

// Options configures a Fetcher.
type Options struct {
	// Algorithm is the digest algorithm computed while writing.
	// Default: sha256
	Algorithm string

	// Method is GET or POST.
	// Default: GET
	Method string

	// Token is sent verbatim in the Authorization header when non-empty.
	Token string

	// Mirror is tried once when the direct download fails. Optional.
	Mirror fetchurldriver.Driver

	// Progress is an optional byte progress hook.
	Progress ProgressFunc
}

// Result describes a file written to disk.
type Result struct {
	Path   string
	Digest string
	Bytes  int64
}

type Fetcher struct {
	http httpclient.Driver
	opts Options
}

// New validates opts and returns a Fetcher. An unknown algorithm fails here
// so that it never reaches the retry loop.
func New(d httpclient.Driver, opts Options) (*Fetcher, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = digest.SHA256
	}
	if _, err := digest.Lookup(opts.Algorithm); err != nil {
		return nil, err
	}
	opts.Method = strings.ToUpper(strings.TrimSpace(opts.Method))
	switch opts.Method {
	case "":
		opts.Method = http.MethodGet
	case http.MethodGet, http.MethodPost:
	default:
		return nil, fmt.Errorf("unsupported download method %q (expected GET or POST)", opts.Method)
	}
	if d == nil {
		d = httpclient.Static{}
	}
	return &Fetcher{http: d, opts: opts}, nil
}

func (f *Fetcher) Algorithm() string { return f.opts.Algorithm }

// ParseSource validates a source URL without touching the network.
func ParseSource(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: the input URL is malformed: %s", asset.ErrInvalidSource, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme in %s", asset.ErrInvalidSource, raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host in %s", asset.ErrInvalidSource, raw)
	}
	return u, nil
}

// Fetch downloads req into its target folder and returns the path and the
// digest of the bytes written. The returned path is only ever a complete
// file; failed transfers leave nothing behind. When ctx carries Claims, a
// destination owned by another request is never written.
func (f *Fetcher) Fetch(ctx context.Context, req asset.Request) (Result, error) {
	logger := logging.GetLogger(ctx)

	u, err := ParseSource(req.SourceURL)
	if err != nil {
		return Result{}, err
	}

	logger.Debug("downloading file", "id", req.ID, "url", u.String(), "folder", req.TargetFolder)
	res, err := f.fetchDirect(ctx, req, u)
	if err == nil {
		return res, nil
	}
	if !f.canUseMirror(req) || ctx.Err() != nil || errors.Is(err, asset.ErrDestinationTaken) {
		return Result{}, err
	}

	logger.Warn("direct download failed, trying mirrors", "id", req.ID, "url", u.String(), "error", err)
	res, merr := f.fetchMirror(ctx, req, u)
	if merr != nil {
		return Result{}, fmt.Errorf("%w (mirror: %v)", err, merr)
	}
	return res, nil
}

func (f *Fetcher) canUseMirror(req asset.Request) bool {
	return f.opts.Mirror != nil && req.ExpectedDigest != "" && fetchurldriver.Supports(f.opts.Algorithm)
}

func (f *Fetcher) fetchDirect(ctx context.Context, req asset.Request, u *url.URL) (Result, error) {
	hreq, err := http.NewRequestWithContext(ctx, f.opts.Method, u.String(), nil)
	if err != nil {
		return Result{}, fmt.Errorf("%w: create request: %v", asset.ErrTransferFailed, err)
	}
	if f.opts.Token != "" {
		hreq.Header.Set("Authorization", f.opts.Token)
	}

	resp, err := f.http.Client().Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("%w: failed to download the file from %s: %v", asset.ErrTransferFailed, u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("%w: failed to download the file from %s: %s", asset.ErrTransferFailed, u, resp.Status)
	}

	dest := filepath.Join(req.TargetFolder, FileName(u, resp.Header, req.ID))
	return f.write(ctx, dest, req, resp.ContentLength, func(w io.Writer) error {
		_, err := io.Copy(w, resp.Body)
		return err
	})
}

func (f *Fetcher) fetchMirror(ctx context.Context, req asset.Request, u *url.URL) (Result, error) {
	dest := filepath.Join(req.TargetFolder, FileName(u, nil, req.ID))
	return f.write(ctx, dest, req, -1, func(w io.Writer) error {
		return f.opts.Mirror.Fetch(ctx, fetchurldriver.FetchOptions{
			URLs: []string{u.String()},
			Algo: f.opts.Algorithm,
			Hash: digest.Normalize(req.ExpectedDigest),
			Out:  w,
		})
	})
}

func (f *Fetcher) write(ctx context.Context, dest string, req asset.Request, total int64, fill func(io.Writer) error) (Result, error) {
	if claims := claimsFrom(ctx); claims != nil {
		if err := claims.Claim(dest, req.ID); err != nil {
			return Result{}, err
		}
	}

	hasher, err := digest.New(f.opts.Algorithm)
	if err != nil {
		return Result{}, err
	}

	writers := []io.Writer{hasher}
	if f.opts.Progress != nil {
		if pw := f.opts.Progress(req, total); pw != nil {
			writers = append(writers, pw)
		}
	}

	n, err := writeAtomic(dest, fill, writers...)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", asset.ErrTransferFailed, err)
	}
	return Result{Path: dest, Digest: hasher.Sum(), Bytes: n}, nil
}

// writeAtomic streams into a temporary file next to dest and renames it
// into place only after the stream completed and was synced.
func writeAtomic(dest string, fill func(io.Writer) error, extra ...io.Writer) (int64, error) {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create target folder: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (int64, error) {
		tmp.Close()
		os.Remove(tmpName)
		return 0, err
	}

	cw := &countingWriter{}
	w := io.MultiWriter(append([]io.Writer{tmp, cw}, extra...)...)
	if err := fill(w); err != nil {
		return fail(fmt.Errorf("failed to write %s: %w", dest, err))
	}
	if err := tmp.Chmod(0644); err != nil {
		return fail(fmt.Errorf("failed to set permissions: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync %s: %w", dest, err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to close %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("failed to move file into place: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
