// Package pipeline drives a full encoding run: it fans tiles out to a
// bounded worker pool, searches each tile's codec distance, and lands the
// results in the run directory with the manifest and lifecycle markers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/histokit/slidepress/codec"
	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/metrics"
	"github.com/histokit/slidepress/search"
	"github.com/histokit/slidepress/slide"
	"github.com/histokit/slidepress/store"
	"github.com/histokit/slidepress/types"
)

// TilesSubdir is the subdirectory of the run directory holding tile files.
const TilesSubdir = "tiles"

// ErrNoOutputDir indicates the run directory could not be prepared.
var ErrNoOutputDir = errors.New("run directory unavailable")

// TileError wraps a per-tile failure. Tile failures are logged and counted
// but never abort the run.
type TileError struct {
	TileID int
	Err    error
}

// Error implements the error interface.
func (e *TileError) Error() string {
	return fmt.Sprintf("tile %d: %v", e.TileID, e.Err)
}

// Unwrap returns the underlying error.
func (e *TileError) Unwrap() error { return e.Err }

// Config holds pipeline parameters.
type Config struct {
	// OutputDir is the parent directory for run directories.
	OutputDir string `yaml:"output_dir"`
	// Workers is the maximum concurrent tile encoders.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default pipeline parameters.
func DefaultConfig() Config {
	return Config{OutputDir: "out", Workers: 4}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output_dir must be non-empty")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

// Event is a progress notification emitted once per finished tile.
type Event struct {
	TileID int
	Status types.TileStatus
	// Done and Total let observers render completion without keeping state.
	Done, Total int
}

// Observer receives progress events. Called from the collector goroutine,
// never concurrently.
type Observer func(Event)

// Runner executes encoding runs.
type Runner struct {
	reader    slide.Reader
	codec     codec.Codec
	searchCfg search.Config
	cfg       Config
	logger    *log.Logger
	collector *metrics.Collector
	observer  Observer

	// readMu serializes region reads; slide readers are not safe for
	// concurrent access.
	readMu sync.Mutex
}

// NewRunner wires a Runner. collector and observer may be nil.
func NewRunner(reader slide.Reader, c codec.Codec, searchCfg search.Config, cfg Config,
	logger *log.Logger, collector *metrics.Collector, observer Observer) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := searchCfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{
		reader:    reader,
		codec:     c,
		searchCfg: searchCfg,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		observer:  observer,
	}, nil
}

// tileResult carries one worker outcome to the collector goroutine.
type tileResult struct {
	tileID  int
	status  types.TileStatus
	outcome *types.EncodeOutcome
	err     error
}

// Run encodes all tiles into <OutputDir>/<RunID>. Re-invoking with the same
// run id resumes: tiles whose output file already exists are skipped.
//
// The codec must be usable before any tile work starts; an unavailable codec
// is a fatal configuration error, not a per-tile one.
func (r *Runner) Run(ctx context.Context, meta types.RunMeta, tiles []types.Tile) (*types.RunSummary, error) {
	start := time.Now()
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if err := r.codec.Available(); err != nil {
		return nil, fmt.Errorf("codec %s preflight: %w", r.codec.Name(), err)
	}

	runDir := filepath.Join(r.cfg.OutputDir, meta.RunID)
	tilesDir := filepath.Join(runDir, TilesSubdir)
	if err := os.MkdirAll(tilesDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoOutputDir, err)
	}

	if state := store.ReadRunState(runDir); state != store.RunStateNew {
		r.logger.Info("resuming run directory", map[string]any{
			"run_dir": runDir,
			"state":   state.String(),
		})
	}
	if err := store.WriteEncodingMarker(runDir); err != nil {
		return nil, err
	}

	r.logger.Info("run started", map[string]any{
		"tiles":   len(tiles),
		"workers": r.cfg.Workers,
		"codec":   r.codec.Name(),
		"run_dir": runDir,
	})

	results := make(chan tileResult, len(tiles))
	var wg sync.WaitGroup
	sem := make(chan struct{}, r.cfg.Workers)

	for _, tile := range tiles {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			close(results)
			return nil, err
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			close(results)
			return nil, ctx.Err()
		}
		wg.Add(1)
		go func(t types.Tile) {
			defer wg.Done()
			defer func() { <-sem }()
			results <- r.encodeTile(ctx, t, tilesDir)
		}(tile)
	}

	// Collector goroutine: drain outcomes while workers run so the results
	// channel never blocks a worker.
	var (
		rows    []types.EncodeOutcome
		skipped int
		failed  int
	)
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		done := 0
		for res := range results {
			done++
			switch res.status {
			case types.TileWritten:
				rows = append(rows, *res.outcome)
			case types.TileSkipped:
				skipped++
			case types.TileErrored:
				failed++
				r.logger.Error("tile failed", map[string]any{
					"tile_id": res.tileID,
					"error":   res.err.Error(),
				})
			}
			if r.observer != nil {
				r.observer(Event{TileID: res.tileID, Status: res.status, Done: done, Total: len(tiles)})
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectDone

	// Completion-order rows would make re-runs diff noisily.
	sort.Slice(rows, func(i, j int) bool { return rows[i].TileID < rows[j].TileID })

	manifestWritten, err := store.WriteManifest(runDir, rows)
	if err != nil {
		return nil, err
	}
	if err := store.FinalizeMarker(runDir); err != nil {
		return nil, err
	}

	summary := &types.RunSummary{
		RunID:           meta.RunID,
		Slide:           meta.Slide,
		Tiles:           len(tiles),
		Written:         len(rows),
		Skipped:         skipped,
		Errors:          failed,
		OutputDir:       runDir,
		ManifestWritten: manifestWritten,
		DurationMs:      time.Since(start).Milliseconds(),
	}
	r.logger.Info("run finished", map[string]any{
		"written":     summary.Written,
		"skipped":     summary.Skipped,
		"errors":      summary.Errors,
		"duration_ms": summary.DurationMs,
	})
	return summary, nil
}

// encodeTile processes one tile end to end. All failure modes map to a
// TileErrored result so the run continues.
func (r *Runner) encodeTile(ctx context.Context, t types.Tile, tilesDir string) tileResult {
	r.collector.IncTileStarted()

	name := t.Filename(r.codec.Extension())
	outPath := filepath.Join(tilesDir, name)
	if _, err := os.Stat(outPath); err == nil {
		r.collector.IncTileSkipped()
		r.logger.Debug("tile already encoded", map[string]any{"tile_id": t.ID})
		return tileResult{tileID: t.ID, status: types.TileSkipped}
	}

	r.readMu.Lock()
	rgb, err := r.reader.ReadRegion(ctx, t.X, t.Y, 0, t.W, t.H)
	r.readMu.Unlock()
	if err != nil {
		r.collector.IncTileErrored()
		return tileResult{tileID: t.ID, status: types.TileErrored, err: &TileError{TileID: t.ID, Err: err}}
	}

	res, err := search.Distance(ctx, rgb, r.searchCfg, r.codec)
	if err != nil {
		r.collector.IncTileErrored()
		return tileResult{tileID: t.ID, status: types.TileErrored, err: &TileError{TileID: t.ID, Err: err}}
	}

	if err := store.AtomicWrite(outPath, res.Blob); err != nil {
		r.collector.IncTileErrored()
		return tileResult{tileID: t.ID, status: types.TileErrored, err: &TileError{TileID: t.ID, Err: err}}
	}

	rawBytes := int64(t.W) * int64(t.H) * 3
	encBytes := int64(len(res.Blob))
	outcome := &types.EncodeOutcome{
		TileID:           t.ID,
		X:                t.X,
		Y:                t.Y,
		W:                t.W,
		H:                t.H,
		Distance:         res.Distance,
		SSIM:             res.SSIM,
		RawBytes:         rawBytes,
		EncBytes:         encBytes,
		CompressionRatio: float64(rawBytes) / float64(encBytes),
		EncodeMs:         float64(res.EncodeTime.Microseconds()) / 1000.0,
		DecodeMs:         float64(res.DecodeTime.Microseconds()) / 1000.0,
		RelPath:          filepath.ToSlash(filepath.Join(TilesSubdir, name)),
	}
	r.collector.AddWritten(rawBytes, encBytes, int64(res.Iterations),
		res.EncodeTime.Milliseconds(), res.DecodeTime.Milliseconds())

	r.logger.Debug("tile encoded", map[string]any{
		"tile_id":  t.ID,
		"distance": res.Distance,
		"ssim":     res.SSIM,
		"cr":       outcome.CompressionRatio,
	})
	return tileResult{tileID: t.ID, status: types.TileWritten, outcome: outcome}
}
