package cmd

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/cli/config"
	"github.com/histokit/slidepress/store"
	"github.com/histokit/slidepress/types"
)

// testApp builds an app whose exit handler records instead of exiting.
func testApp() *cli.App {
	return &cli.App{
		Name:           "slidepress",
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			RunCommand(),
			MaskCommand(),
			IndexCommand(),
			StatsCommand(),
			VersionCommand("test"),
		},
	}
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("err = %v, want cli.ExitCoder", err)
	}
	return coder.ExitCode()
}

// writeTestConfig writes a config sized for fast synthetic runs.
func writeTestConfig(t *testing.T, outDir string) string {
	t.Helper()
	yaml := `codec: zstd
mask:
  max_dim: 128
tiling:
  tile_size: 64
  stride: 64
  min_tissue_frac: 0.1
pipeline:
  output_dir: ` + outDir + `
  workers: 2
`
	path := filepath.Join(t.TempDir(), "slidepress.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunCommand_SyntheticEndToEnd(t *testing.T) {
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)

	err := testApp().Run([]string{"slidepress", "run",
		"--config", cfgPath,
		"--synthetic", "256x256",
		"--run-id", "e2e-1",
		"--quiet",
	})
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("exit code = %d (%v), want 0", code, err)
	}

	runDir := filepath.Join(outDir, "e2e-1")
	if got := store.ReadRunState(runDir); got != store.RunStateDone {
		t.Fatalf("run state = %v, want done", got)
	}

	rows, err := store.ReadManifest(runDir)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if len(rows) == 0 {
		t.Fatal("manifest has no rows for a tissue-bearing synthetic slide")
	}
	for _, row := range rows {
		if row.SSIM < 0.93 {
			t.Errorf("tile %d SSIM %v below quality gate", row.TileID, row.SSIM)
		}
		if _, err := os.Stat(filepath.Join(runDir, row.RelPath)); err != nil {
			t.Errorf("tile file %s missing: %v", row.RelPath, err)
		}
	}

	idx, err := store.ReadSidecar(runDir)
	if err != nil {
		t.Fatalf("ReadSidecar failed: %v", err)
	}
	if idx.RunID != "e2e-1" || idx.Codec != "zstd" {
		t.Errorf("sidecar identity = %q/%q, want e2e-1/zstd", idx.RunID, idx.Codec)
	}
	if len(idx.Tiles) < len(rows) {
		t.Errorf("sidecar has %d tiles, manifest %d rows", len(idx.Tiles), len(rows))
	}
}

func TestRunCommand_ResumeIsIdempotent(t *testing.T) {
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)
	args := []string{"slidepress", "run",
		"--config", cfgPath,
		"--synthetic", "256x256",
		"--run-id", "e2e-2",
		"--quiet",
	}

	if code := exitCode(t, testApp().Run(args)); code != 0 {
		t.Fatalf("first run exit code = %d, want 0", code)
	}
	first, err := store.ReadManifest(filepath.Join(outDir, "e2e-2"))
	if err != nil {
		t.Fatal(err)
	}

	if code := exitCode(t, testApp().Run(args)); code != 0 {
		t.Fatalf("resume exit code = %d, want 0", code)
	}
	// A fully skipped re-run leaves the original manifest in place.
	second, err := store.ReadManifest(filepath.Join(outDir, "e2e-2"))
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Errorf("manifest rows changed across resume: %d -> %d", len(first), len(second))
	}
}

func TestRunCommand_WritesReport(t *testing.T) {
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	err := testApp().Run([]string{"slidepress", "run",
		"--config", cfgPath,
		"--synthetic", "128x128",
		"--run-id", "e2e-3",
		"--report", reportPath,
		"--quiet",
	})
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("exit code = %d (%v), want 0", code, err)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("report not written: %v", err)
	}
}

func TestRunCommand_MissingSlide(t *testing.T) {
	err := testApp().Run([]string{"slidepress", "run", "--quiet"})
	if code := exitCode(t, err); code != exitInvalidInput {
		t.Fatalf("exit code = %d, want %d", code, exitInvalidInput)
	}
}

func TestRunCommand_BadCodec(t *testing.T) {
	err := testApp().Run([]string{"slidepress", "run",
		"--synthetic", "64x64", "--codec", "webp", "--quiet"})
	if code := exitCode(t, err); code != exitInvalidInput {
		t.Fatalf("exit code = %d, want %d", code, exitInvalidInput)
	}
}

func TestStatsCommand_AggregatesRunDir(t *testing.T) {
	outDir := t.TempDir()
	cfgPath := writeTestConfig(t, outDir)

	err := testApp().Run([]string{"slidepress", "run",
		"--config", cfgPath,
		"--synthetic", "256x256",
		"--run-id", "e2e-4",
		"--quiet",
	})
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("run exit code = %d, want 0", code)
	}

	resp, err := aggregateRunDir(filepath.Join(outDir, "e2e-4"))
	if err != nil {
		t.Fatalf("aggregateRunDir failed: %v", err)
	}
	if resp.RunID != "e2e-4" || resp.State != "done" {
		t.Errorf("identity = %q/%q, want e2e-4/done", resp.RunID, resp.State)
	}
	if resp.Tiles == 0 || resp.CompressionRatio < 1 {
		t.Errorf("aggregate = %d tiles ratio %v, want tiles > 0 and ratio >= 1",
			resp.Tiles, resp.CompressionRatio)
	}
	if resp.MeanSSIM < 0.93 || resp.MeanSSIM > 1 {
		t.Errorf("MeanSSIM = %v, want within (0.93,1]", resp.MeanSSIM)
	}
	if resp.MinSSIM > resp.MeanSSIM {
		t.Errorf("MinSSIM %v above mean %v", resp.MinSSIM, resp.MeanSSIM)
	}
}

func TestStatsCommand_MissingDir(t *testing.T) {
	err := testApp().Run([]string{"slidepress", "stats", filepath.Join(t.TempDir(), "nope")})
	if err == nil {
		t.Fatal("expected error for missing run directory")
	}
}

func TestParseDims(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"2048x1024", 2048, 1024, false},
		{"64X64", 64, 64, false},
		{"0x10", 0, 0, true},
		{"axb", 0, 0, true},
		{"512", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := parseDims(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDims(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (w != tt.w || h != tt.h) {
			t.Errorf("parseDims(%q) = %dx%d, want %dx%d", tt.in, w, h, tt.w, tt.h)
		}
	}
}

func TestMirrorTarget(t *testing.T) {
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	set.String("s3-mirror", "", "")
	c := cli.NewContext(nil, set, nil)

	cfg := config.Default()
	if got := mirrorTarget(c, cfg); got != nil {
		t.Errorf("mirrorTarget = %+v, want nil when neither flag nor config set", got)
	}

	cfg.S3 = &store.S3Config{Bucket: "archive", Region: "us-east-1"}
	got := mirrorTarget(c, cfg)
	if got == nil || got.Bucket != "archive" {
		t.Fatalf("mirrorTarget = %+v, want config section bucket archive", got)
	}

	// The flag overrides bucket/prefix but keeps connection settings.
	if err := set.Set("s3-mirror", "other/runs"); err != nil {
		t.Fatal(err)
	}
	got = mirrorTarget(c, cfg)
	if got == nil || got.Bucket != "other" || got.Prefix != "runs" || got.Region != "us-east-1" {
		t.Errorf("mirrorTarget = %+v, want bucket other prefix runs region us-east-1", got)
	}
}

func TestMaskResponse_TissueFound(t *testing.T) {
	resp := MaskResponse{BBox: types.Rect{X0: 0, Y0: 0, X1: 100, Y1: 100}}
	if resp.BBox.Empty() {
		t.Error("non-empty bbox reported empty")
	}
}
