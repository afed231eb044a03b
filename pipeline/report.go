package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/histokit/slidepress/metrics"
	"github.com/histokit/slidepress/types"
)

// RunReport is the structured JSON report written by --report.
type RunReport struct {
	RunID      string `json:"run_id"`
	Slide      string `json:"slide"`
	Codec      string `json:"codec"`
	Tiles      int    `json:"tiles"`
	Written    int    `json:"written"`
	Skipped    int    `json:"skipped"`
	Errors     int    `json:"errors"`
	OutputDir  string `json:"output_dir"`
	DurationMs int64  `json:"duration_ms"`

	Metrics *metrics.Snapshot `json:"metrics"`

	// CompressionRatio is aggregate raw/encoded bytes over written tiles,
	// 0 when nothing was written.
	CompressionRatio float64 `json:"compression_ratio"`
}

// BuildRunReport composes a RunReport from a run summary and metrics snapshot.
func BuildRunReport(summary *types.RunSummary, snap metrics.Snapshot) *RunReport {
	report := &RunReport{
		RunID:      summary.RunID,
		Slide:      summary.Slide,
		Codec:      snap.Codec,
		Tiles:      summary.Tiles,
		Written:    summary.Written,
		Skipped:    summary.Skipped,
		Errors:     summary.Errors,
		OutputDir:  summary.OutputDir,
		DurationMs: summary.DurationMs,
		Metrics:    &snap,
	}
	if snap.EncodedBytes > 0 {
		report.CompressionRatio = float64(snap.RawBytes) / float64(snap.EncodedBytes)
	}
	return report
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr so stdout stays parseable.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		if _, err := os.Stderr.Write(data); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}
