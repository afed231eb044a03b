package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/histokit/slidepress/metrics"
	"github.com/histokit/slidepress/types"
)

func TestBuildRunReport(t *testing.T) {
	summary := &types.RunSummary{
		RunID: "run-1", Slide: "s.svs",
		Tiles: 10, Written: 8, Skipped: 1, Errors: 1,
		OutputDir: "/out/run-1", ManifestWritten: true, DurationMs: 4200,
	}
	snap := metrics.Snapshot{
		TilesWritten: 8, RawBytes: 1000, EncodedBytes: 100, Codec: "jxl",
	}

	report := BuildRunReport(summary, snap)

	if report.RunID != "run-1" || report.Codec != "jxl" {
		t.Errorf("identity = %q/%q, want run-1/jxl", report.RunID, report.Codec)
	}
	if report.Written != 8 || report.Errors != 1 {
		t.Errorf("counts = %d/%d, want 8/1", report.Written, report.Errors)
	}
	if report.CompressionRatio != 10.0 {
		t.Errorf("CompressionRatio = %v, want 10", report.CompressionRatio)
	}
}

func TestBuildRunReport_NothingWritten(t *testing.T) {
	report := BuildRunReport(&types.RunSummary{RunID: "r"}, metrics.Snapshot{})
	if report.CompressionRatio != 0 {
		t.Errorf("CompressionRatio = %v, want 0 with no encoded bytes", report.CompressionRatio)
	}
}

func TestWriteRunReport_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	in := BuildRunReport(&types.RunSummary{RunID: "run-2", Tiles: 3},
		metrics.Snapshot{Codec: "zstd", RunID: "run-2"})

	if err := WriteRunReport(in, path); err != nil {
		t.Fatalf("WriteRunReport failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report failed: %v", err)
	}
	var out RunReport
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if out.RunID != "run-2" || out.Tiles != 3 {
		t.Errorf("round trip = %q/%d, want run-2/3", out.RunID, out.Tiles)
	}
	if out.Metrics == nil || out.Metrics.Codec != "zstd" {
		t.Error("metrics snapshot missing from report")
	}
}

func TestWriteRunReport_EmptyPath(t *testing.T) {
	if err := WriteRunReport(&RunReport{}, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
