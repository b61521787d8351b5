package sarifout

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"fetchverify/pkg/asset"
	"fetchverify/pkg/batch"

	"github.com/owenrumney/go-sarif/v2/sarif"
)

const toolName = "fetchverify"

// RuleID classifies a failure's last error.
func RuleID(err error) string {
	switch {
	case errors.Is(err, asset.ErrChecksumMismatch):
		return "checksum-mismatch"
	case errors.Is(err, asset.ErrInvalidSource):
		return "invalid-source"
	case errors.Is(err, asset.ErrTransferFailed):
		return "transfer-failed"
	case errors.Is(err, asset.ErrUnsupportedAlgorithm):
		return "unsupported-algorithm"
	case errors.Is(err, asset.ErrDestinationTaken):
		return "destination-taken"
	default:
		return "download-failed"
	}
}

// Build turns the failed assets of a run into a SARIF report with one
// result per asset, located at its source URL.
func Build(runID string, failures []batch.Failure) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, err
	}

	run := sarif.NewRun(*sarif.NewTool(sarif.NewDriver(toolName)))
	run.Properties = sarif.Properties{"runId": runID}

	for _, f := range failures {
		msg := fmt.Sprintf("asset %s failed %d times", f.Request.ID, f.Attempts)
		if f.LastErr != nil {
			msg += ": " + f.LastErr.Error()
		}
		loc := sarif.NewLocation().
			WithPhysicalLocation(sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.Request.SourceURL)))

		run.AddResult(
			sarif.NewRuleResult(RuleID(f.LastErr)).
				WithLevel("error").
				WithMessage(sarif.NewTextMessage(msg)).
				WithLocations([]*sarif.Location{loc}),
		)
	}

	report.AddRun(run)
	return report, nil
}

// WriteFile writes the report for failures to path, creating its directory.
func WriteFile(path, runID string, failures []batch.Failure) error {
	report, err := Build(runID, failures)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create SARIF output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create SARIF report file %s: %w", path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to write SARIF report to %s: %w", path, err)
	}
	return file.Close()
}
