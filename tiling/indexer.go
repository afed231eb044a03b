// Package tiling builds the level-0 tile index from the tissue mask.
package tiling

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/slide"
	"github.com/histokit/slidepress/types"
)

// ErrInvalidConfig indicates out-of-range tiling parameters.
// Use errors.Is(err, ErrInvalidConfig) for typed assertions.
var ErrInvalidConfig = errors.New("invalid tiling config")

// Config holds tile index parameters.
type Config struct {
	// TileSize is the nominal level-0 tile edge in pixels.
	TileSize int `yaml:"tile_size"`
	// Stride is the level-0 scan step in both axes. Stride < TileSize
	// overlaps tiles; Stride > TileSize leaves gaps (valid but unusual).
	Stride int `yaml:"stride"`
	// MinTissueFrac is the minimum mask coverage for a tile to be kept, in [0,1].
	MinTissueFrac float64 `yaml:"min_tissue_frac"`
}

// DefaultConfig returns the default tiling parameters.
func DefaultConfig() Config {
	return Config{TileSize: 512, Stride: 512, MinTissueFrac: 0.25}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.TileSize <= 0 || c.Stride <= 0 {
		return fmt.Errorf("%w: tile_size and stride must be positive, got %d/%d",
			ErrInvalidConfig, c.TileSize, c.Stride)
	}
	if c.MinTissueFrac < 0 || c.MinTissueFrac > 1 {
		return fmt.Errorf("%w: min_tissue_frac must be within [0,1], got %v",
			ErrInvalidConfig, c.MinTissueFrac)
	}
	return nil
}

// BuildIndex scans the mask's level-0 bounding box in row-major order and
// returns the tiles whose mask-window coverage meets MinTissueFrac.
//
// Ids are dense (0,1,2,...) in scan order, so id order matches top-to-bottom,
// left-to-right traversal. Rejected locations produce no Tile at all.
func BuildIndex(ctx context.Context, reader slide.Reader, m *types.Mask, cfg Config, logger *log.Logger) ([]types.Tile, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Stride > cfg.TileSize {
		logger.Warn("stride exceeds tile size; tiles will have gaps", map[string]any{
			"stride":    cfg.Stride,
			"tile_size": cfg.TileSize,
		})
	}

	w0, h0, err := reader.Dimensions(0)
	if err != nil {
		return nil, fmt.Errorf("%w: level-0 dimensions unavailable: %v", slide.ErrInvalidSlide, err)
	}

	// Clamp the bbox to slide bounds.
	x0 := clamp(m.BBoxLevel0.X0, 0, w0)
	x1 := clamp(m.BBoxLevel0.X1, 0, w0)
	y0 := clamp(m.BBoxLevel0.Y0, 0, h0)
	y1 := clamp(m.BBoxLevel0.Y1, 0, h0)
	if x1 <= x0 || y1 <= y0 {
		logger.Warn("empty bounding box after clamping; no tiles produced", nil)
		return nil, nil
	}

	down := m.Downsample
	var tiles []types.Tile
	total := 0

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for y := y0; y < y1; y += cfg.Stride {
		th := minInt(cfg.TileSize, minInt(y1-y, h0-y))
		if th <= 0 {
			break
		}
		for x := x0; x < x1; x += cfg.Stride {
			tw := minInt(cfg.TileSize, minInt(x1-x, w0-x))
			if tw <= 0 {
				break
			}
			total++

			cov, ok := windowCoverage(m, x, y, tw, th, down)
			if !ok || cov < cfg.MinTissueFrac {
				continue
			}
			tiles = append(tiles, types.Tile{
				ID:       len(tiles),
				X:        x,
				Y:        y,
				W:        tw,
				H:        th,
				Coverage: cov,
			})
		}
	}

	kept := len(tiles)
	pct := 100.0 * float64(kept) / float64(maxInt(1, total))
	logger.Info("tile index built", map[string]any{
		"kept":      kept,
		"total":     total,
		"kept_pct":  fmt.Sprintf("%.1f", pct),
		"tile_size": cfg.TileSize,
		"stride":    cfg.Stride,
		"min_cov":   cfg.MinTissueFrac,
		"bbox":      fmt.Sprintf("%dx%d", x1-x0, y1-y0),
	})

	if kept > 0 {
		logger.Debug("tile coverage quantiles", map[string]any{
			"quantiles": coverageQuantiles(tiles),
		})
	}

	return tiles, nil
}

// windowCoverage maps a level-0 rectangle into mask-grid coordinates with
// conservative floor/ceil bounds and returns the mean of the mask window.
// The continuous window mean is an estimate, not a pixel-exact reprojection.
func windowCoverage(m *types.Mask, x, y, w, h int, down float64) (float64, bool) {
	mx0 := int(float64(x) / down)
	my0 := int(float64(y) / down)
	mx1 := int(math.Ceil(float64(x+w) / down))
	my1 := int(math.Ceil(float64(y+h) / down))

	mx0 = clamp(mx0, 0, m.GridW)
	my0 = clamp(my0, 0, m.GridH)
	mx1 = clamp(mx1, 0, m.GridW)
	my1 = clamp(my1, 0, m.GridH)
	if mx0 >= mx1 || my0 >= my1 {
		return 0, false
	}

	var n int
	for my := my0; my < my1; my++ {
		for mx := mx0; mx < mx1; mx++ {
			if m.Grid[my*m.GridW+mx] {
				n++
			}
		}
	}
	return float64(n) / float64((mx1-mx0)*(my1-my0)), true
}

// coverageQuantiles reports p10/p25/p50/p75/p90 of accepted tile coverage,
// rounded to three decimals. Debug visibility only.
func coverageQuantiles(tiles []types.Tile) map[string]float64 {
	covs := make([]float64, len(tiles))
	for i, t := range tiles {
		covs[i] = t.Coverage
	}
	sort.Float64s(covs)

	out := make(map[string]float64, 5)
	for label, p := range map[string]float64{"p10": 0.10, "p25": 0.25, "p50": 0.50, "p75": 0.75, "p90": 0.90} {
		q := stat.Quantile(p, stat.Empirical, covs, nil)
		out[label] = math.Round(q*1000) / 1000
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
