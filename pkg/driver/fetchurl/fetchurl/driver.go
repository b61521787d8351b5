package fetchurl

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/lucasew/fetchurl"

	fetchurldriver "fetchverify/pkg/driver/fetchurl"
	"fetchverify/pkg/driver/httpclient"
)

type Driver struct {
	fetcher *fetchurl.Fetcher
}

// New builds a mirror driver. Servers from FETCHURL_SERVERS are appended to
// the configured ones. A nil httpclient.Driver lets fetchurl create its own client.
func New(d httpclient.Driver, servers []string) *Driver {
	var client *http.Client
	if d != nil {
		client = d.Client()
	}
	all := append([]string{}, servers...)
	all = append(all, getServersFromEnv()...)
	f := fetchurl.NewFetcher(client)
	f.Servers = all
	return &Driver{
		fetcher: f,
	}
}

func (d *Driver) Fetch(ctx context.Context, opts fetchurldriver.FetchOptions) error {
	if len(opts.URLs) == 0 {
		return fmt.Errorf("no URLs provided")
	}
	if opts.Out == nil {
		return fmt.Errorf("no output writer provided")
	}
	if !fetchurldriver.Supports(opts.Algo) {
		return fmt.Errorf("mirrors cannot verify %q digests", opts.Algo)
	}

	fetchOpts := fetchurl.FetchOptions{
		URLs: opts.URLs,
		Algo: opts.Algo,
		Hash: opts.Hash,
		Out:  opts.Out,
	}

	return d.fetcher.Fetch(ctx, fetchOpts)
}

// getServersFromEnv reads FETCHURL_SERVERS environment variable
// Expected format: comma-separated URLs
// Example: FETCHURL_SERVERS=https://mirror1.example.com,https://mirror2.example.com
func getServersFromEnv() []string {
	env := os.Getenv("FETCHURL_SERVERS")
	if env == "" {
		return nil
	}

	var servers []string
	for _, s := range strings.Split(env, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}
