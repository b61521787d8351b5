package run

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"fetchverify/cmd/fetchverify/common"
	"fetchverify/pkg/asset"
	"fetchverify/pkg/batch"
	"fetchverify/pkg/config"
	fetchurldriver "fetchverify/pkg/driver/fetchurl"
	"fetchverify/pkg/driver/fetchurl/fetchurl"
	"fetchverify/pkg/fetcher"
	"fetchverify/pkg/metrics"
	"fetchverify/pkg/pipeline"
	"fetchverify/pkg/report"
	"fetchverify/pkg/source"
)

func GetCommand() *cobra.Command {
	var (
		requestsPath string
		manifestPath string
		maxRounds    int
		concurrency  int
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download, verify and report a batch of assets",
		Long: `Download every asset of a batch, verify it against its expected digest,
retry failures for up to max_rounds rounds and fire the configured responses.

The batch comes either from --requests (a TOML file of [[asset]] tables) or
from --manifest combined with download.url.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			ctx := c.Context()

			cfg, err := common.LoadConfig(c)
			if err != nil {
				return err
			}
			if c.Flags().Changed("max-rounds") {
				cfg.MaxRounds = maxRounds
			}
			if c.Flags().Changed("concurrency") {
				cfg.Concurrency = concurrency
			}
			if manifestPath != "" {
				cfg.Manifest = manifestPath
			}

			src, err := batchSource(cfg, requestsPath)
			if err != nil {
				return err
			}

			jr, closeJournal, err := common.OpenJournal(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeJournal()

			httpDriver := common.HTTPDriver(cfg)
			var mirror fetchurldriver.Driver
			if len(cfg.Download.Mirrors) > 0 {
				mirror = fetchurl.New(httpDriver, cfg.Download.Mirrors)
			}

			var bar *progressbar.ProgressBar
			if !noProgress {
				bar = progressbar.NewOptions64(-1,
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetWidth(30),
					progressbar.OptionShowBytes(true),
					progressbar.OptionSetDescription("downloading"),
					progressbar.OptionThrottle(80*time.Millisecond),
					progressbar.OptionOnCompletion(func() {
						fmt.Fprintln(os.Stderr)
					}),
				)
			}

			f, err := fetcher.New(httpDriver, fetcher.Options{
				Algorithm: cfg.DigestAlgorithm,
				Method:    cfg.Download.Method,
				Token:     cfg.Authentication,
				Mirror:    mirror,
				Progress: func(req asset.Request, total int64) io.Writer {
					if bar == nil {
						return nil
					}
					return bar
				},
			})
			if err != nil {
				return err
			}

			reporter := report.New(httpDriver, cfg.Responses, report.Options{
				Token:   cfg.Authentication,
				Journal: jr,
			})

			var m *metrics.Metrics
			if cfg.MetricsTextfile != "" {
				m = metrics.New()
			}

			p := pipeline.New(src, f, reporter, pipeline.Options{
				MaxRounds: cfg.MaxRounds,
				Batch: batch.Options{
					Concurrency: cfg.Concurrency,
					RoundDelay:  cfg.RoundDelay.Duration,
				},
				Journal:         jr,
				Metrics:         m,
				MetricsTextfile: cfg.MetricsTextfile,
				SarifOutput:     cfg.SarifOutput,
			})

			res, runErr := p.Run(ctx)
			if bar != nil {
				bar.Finish()
			}

			out := c.OutOrStdout()
			fmt.Fprintf(out, "run %s: verified=%d failed=%d rounds=%d\n", res.RunID, res.Verified, len(res.FailedAssets), res.Rounds)
			for _, line := range res.Errors {
				fmt.Fprintf(out, "  %s\n", line)
			}

			if runErr != nil {
				return runErr
			}
			if !res.OverallSuccess {
				return fmt.Errorf("%d assets could not be verified", len(res.FailedAssets))
			}
			if !res.ReportingSucceeded {
				return fmt.Errorf("assets verified but reporting failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&requestsPath, "requests", "r", "", "TOML file with [[asset]] id/url/digest/folder tables")
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Manifest file (overrides the manifest config key)")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 1, "Maximum number of download rounds")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "j", 1, "Parallel downloads per round")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	cmd.MarkFlagsMutuallyExclusive("requests", "manifest")

	return cmd
}

func batchSource(cfg *config.Config, requestsPath string) (source.Source, error) {
	if requestsPath != "" {
		return source.LoadRequests(requestsPath)
	}
	if cfg.Manifest == "" {
		return nil, fmt.Errorf("no batch given: pass --requests or --manifest")
	}
	if cfg.Download.URL == "" {
		return nil, fmt.Errorf("download.url must be configured to use a manifest")
	}
	return source.ManifestFile(cfg.Manifest, cfg.Download.URL), nil
}
