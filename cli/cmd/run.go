package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/cli/config"
	"github.com/histokit/slidepress/cli/render"
	"github.com/histokit/slidepress/cli/tui"
	"github.com/histokit/slidepress/codec"
	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/mask"
	"github.com/histokit/slidepress/metrics"
	"github.com/histokit/slidepress/pipeline"
	"github.com/histokit/slidepress/store"
	"github.com/histokit/slidepress/tiling"
	"github.com/histokit/slidepress/types"
)

// Exit codes for the run command.
const (
	exitSuccess = 0
	// exitRunFailure covers runs that finished with tile errors or failed
	// mid-flight.
	exitRunFailure = 1
	// exitInvalidInput covers bad flags, bad config, and codec preflight.
	exitInvalidInput = 2
)

// RunCommand returns the run command, the only command that executes work.
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run ID (defaults to a generated UUID)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Parent directory for run directories",
		},
		&cli.StringFlag{
			Name:  "codec",
			Usage: "Codec backend: jxl or zstd",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent tile encoders",
		},
		&cli.Float64Flag{
			Name:  "target-ssim",
			Usage: "SSIM quality floor in (0,1]",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON run report to this path (\"-\" for stderr)",
		},
		&cli.StringFlag{
			Name:  "s3-mirror",
			Usage: "Mirror the run directory to S3 after completion (bucket or bucket/prefix)",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress summary output and pipeline logs",
		},
	}
	flags = append(flags, slideFlags()...)
	flags = append(flags, ReadOnlyFlags()...)

	return &cli.Command{
		Name:   "run",
		Usage:  "Encode a slide into tissue tiles (the only execution entrypoint)",
		Flags:  flags,
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadRunConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitInvalidInput)
	}

	reader, slideName, err := openSlide(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot open slide: %v", err), exitInvalidInput)
	}
	defer func() { _ = reader.Close() }()

	runID := c.String("run-id")
	if runID == "" {
		runID = uuid.New().String()
	}
	meta := types.RunMeta{RunID: runID, Slide: slideName, StartedAt: time.Now()}

	logger := log.NewLogger(&meta)
	if c.Bool("quiet") || c.Bool("tui") {
		logger = log.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	m, err := mask.Build(ctx, reader, cfg.Mask, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("mask build failed: %v", err), exitRunFailure)
	}
	tiles, err := tiling.BuildIndex(ctx, reader, m, cfg.Tiling, logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("tile index failed: %v", err), exitRunFailure)
	}

	cdc, err := codec.New(cfg.Codec)
	if err != nil {
		return cli.Exit(err.Error(), exitInvalidInput)
	}
	collector := metrics.NewCollector(cdc.Name(), runID)

	var (
		observer pipeline.Observer
		program  *tui.RunProgram
	)
	if c.Bool("tui") {
		program, observer = tui.NewRunProgram(slideName, len(tiles))
	}

	runner, err := pipeline.NewRunner(reader, cdc, cfg.Search, cfg.Pipeline, logger, collector, observer)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), exitInvalidInput)
	}

	summary, err := executeRun(ctx, runner, program, meta, tiles)
	if err != nil {
		if errorIsPreflight(err) {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		return cli.Exit(fmt.Sprintf("run failed: %v", err), exitRunFailure)
	}

	if err := store.WriteSidecar(summary.OutputDir, store.RunIndex{
		RunID:          runID,
		Slide:          slideName,
		Codec:          cdc.Name(),
		Bounds:         m.BBoxLevel0,
		MaskLevel:      m.Level,
		MaskDownsample: m.Downsample,
		MaskCoverage:   m.Coverage,
		Tiles:          tiles,
	}); err != nil {
		return cli.Exit(fmt.Sprintf("sidecar write failed: %v", err), exitRunFailure)
	}

	if path := c.String("report"); path != "" {
		report := pipeline.BuildRunReport(summary, collector.Snapshot())
		if err := pipeline.WriteRunReport(report, path); err != nil {
			return cli.Exit(err.Error(), exitRunFailure)
		}
	}

	if s3cfg := mirrorTarget(c, cfg); s3cfg != nil {
		if err := mirrorRun(ctx, *s3cfg, summary.OutputDir); err != nil {
			return cli.Exit(fmt.Sprintf("s3 mirror failed: %v", err), exitRunFailure)
		}
	}

	if !c.Bool("quiet") && !c.Bool("tui") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitInvalidInput)
		}
		if err := r.Render(summary); err != nil {
			return err
		}
	}

	if summary.Errors > 0 {
		return cli.Exit("", exitRunFailure)
	}
	return cli.Exit("", exitSuccess)
}

// executeRun runs the pipeline, driving the progress TUI when enabled.
func executeRun(ctx context.Context, runner *pipeline.Runner, program *tui.RunProgram,
	meta types.RunMeta, tiles []types.Tile) (*types.RunSummary, error) {
	if program == nil {
		return runner.Run(ctx, meta, tiles)
	}

	type result struct {
		summary *types.RunSummary
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		summary, err := runner.Run(ctx, meta, tiles)
		program.Finish(summary, err)
		resCh <- result{summary, err}
	}()

	if err := program.Wait(); err != nil {
		return nil, fmt.Errorf("tui: %w", err)
	}
	res := <-resCh
	return res.summary, res.err
}

// loadRunConfig resolves config file values and flag overrides.
// Flags always win over the file.
func loadRunConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if v := c.String("codec"); v != "" {
		cfg.Codec = v
	}
	if v := c.String("output"); v != "" {
		cfg.Pipeline.OutputDir = v
	}
	if v := c.Int("workers"); v != 0 {
		cfg.Pipeline.Workers = v
	}
	if v := c.Float64("target-ssim"); v != 0 {
		cfg.Search.TargetSSIM = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// errorIsPreflight distinguishes configuration failures (missing codec
// binaries) from mid-run failures for exit-code mapping.
func errorIsPreflight(err error) bool {
	return errors.Is(err, codec.ErrUnavailable)
}

// mirrorTarget resolves the S3 destination: the --s3-mirror flag wins, then
// the config file's s3 section. Nil disables mirroring.
func mirrorTarget(c *cli.Context, cfg *config.Config) *store.S3Config {
	if dest := c.String("s3-mirror"); dest != "" {
		bucket, prefix := store.ParseS3Path(dest)
		s3cfg := store.S3Config{Bucket: bucket, Prefix: prefix}
		if cfg.S3 != nil {
			s3cfg.Region = cfg.S3.Region
			s3cfg.Endpoint = cfg.S3.Endpoint
			s3cfg.UsePathStyle = cfg.S3.UsePathStyle
		}
		return &s3cfg
	}
	return cfg.S3
}

func mirrorRun(ctx context.Context, s3cfg store.S3Config, runDir string) error {
	mirror, err := store.NewMirror(ctx, s3cfg)
	if err != nil {
		return err
	}
	n, err := mirror.MirrorDir(ctx, runDir)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "mirrored %d objects to s3://%s/%s\n", n, s3cfg.Bucket, s3cfg.Prefix)
	return nil
}
