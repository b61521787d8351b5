package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fetchverify/cmd/fetchverify/digest"
	"fetchverify/cmd/fetchverify/history"
	"fetchverify/cmd/fetchverify/run"
	"fetchverify/cmd/fetchverify/verify"
	"fetchverify/pkg/config"
	"fetchverify/pkg/logging"
	"fetchverify/pkg/version"
)

func main() {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "fetchverify",
		Short:         "fetchverify - download, verify and report batches of assets",
		Version:       version.BuildID(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			c.SetContext(logging.WithLogger(c.Context(), slog.Default()))
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", config.DefaultPath(), "Config file (or set FETCHVERIFY_CONFIG)")

	cmd.AddCommand(
		run.GetCommand(),
		digest.GetCommand(),
		verify.GetCommand(),
		history.GetCommand(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		slog.Error("error", "err", err)
		stop()
		os.Exit(1)
	}
}
