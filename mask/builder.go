// Package mask builds the low-resolution tissue mask for a slide.
//
// The builder operates on a thumbnail extracted at a reduced pyramid level,
// so its cost is bounded by the configured thumbnail size regardless of the
// slide's full resolution. Segmentation is a saturation/value heuristic with
// an Otsu threshold, cleaned up by scale-aware morphology.
package mask

import (
	"context"
	"fmt"
	"math"

	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/slide"
	"github.com/histokit/slidepress/types"
)

// Config holds tissue mask parameters.
type Config struct {
	// MaxDim bounds the long edge of the analysis thumbnail in pixels.
	MaxDim int `yaml:"max_dim"`
	// SatFloor is the minimum saturation threshold in [0,1]; the effective
	// threshold is max(otsu, SatFloor).
	SatFloor float64 `yaml:"sat_floor"`
	// ValueCeil excludes pixels whose HSV value is at or above it, in [0,1].
	ValueCeil float64 `yaml:"value_ceil"`
	// BrightFloor flags a pixel near-white when all three channels exceed it.
	BrightFloor uint8 `yaml:"bright_floor"`
	// CloseDivisor and OpenDivisor derive structuring element radii from the
	// thumbnail long edge (radius = longEdge / divisor).
	CloseDivisor int `yaml:"close_divisor"`
	OpenDivisor  int `yaml:"open_divisor"`
	// MinRadius and MaxRadius clamp the derived radii.
	MinRadius int `yaml:"min_radius"`
	MaxRadius int `yaml:"max_radius"`
	// MinAreaPx removes connected components smaller than this many cells.
	MinAreaPx int `yaml:"min_area_px"`
	// PadLevel0 pads the bounding box by this many level-0 pixels.
	PadLevel0 int `yaml:"pad_level0"`
}

// DefaultConfig returns the default mask parameters.
func DefaultConfig() Config {
	return Config{
		MaxDim:       2048,
		SatFloor:     0.05,
		ValueCeil:    0.98,
		BrightFloor:  230,
		CloseDivisor: 200,
		OpenDivisor:  400,
		MinRadius:    1,
		MaxRadius:    8,
		MinAreaPx:    64,
		PadLevel0:    256,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.MaxDim <= 0 {
		return fmt.Errorf("max_dim must be positive, got %d", c.MaxDim)
	}
	if c.SatFloor < 0 || c.SatFloor > 1 {
		return fmt.Errorf("sat_floor must be within [0,1], got %v", c.SatFloor)
	}
	if c.ValueCeil < 0 || c.ValueCeil > 1 {
		return fmt.Errorf("value_ceil must be within [0,1], got %v", c.ValueCeil)
	}
	if c.CloseDivisor <= 0 || c.OpenDivisor <= 0 {
		return fmt.Errorf("morphology divisors must be positive")
	}
	if c.MinRadius < 0 || c.MaxRadius < c.MinRadius {
		return fmt.Errorf("invalid radius bounds [%d,%d]", c.MinRadius, c.MaxRadius)
	}
	return nil
}

// Build computes the tissue mask for the slide.
//
// A tissue-free slide is not an error: the result has a zero bounding box and
// zero coverage. Failure to read level-0 dimensions reports
// slide.ErrInvalidSlide.
func Build(ctx context.Context, reader slide.Reader, cfg Config, logger *log.Logger) (*types.Mask, error) {
	w0, h0, err := reader.Dimensions(0)
	if err != nil {
		return nil, fmt.Errorf("%w: level-0 dimensions unavailable: %v", slide.ErrInvalidSlide, err)
	}
	if w0 <= 0 || h0 <= 0 {
		return nil, fmt.Errorf("%w: degenerate level-0 dimensions %dx%d", slide.ErrInvalidSlide, w0, h0)
	}

	longEdge0 := max(w0, h0)
	level := 0
	if longEdge0 > cfg.MaxDim {
		level = reader.BestLevelForDownsample(float64(longEdge0) / float64(cfg.MaxDim))
	}
	down, err := reader.LevelDownsample(level)
	if err != nil {
		return nil, fmt.Errorf("%w: downsample for level %d: %v", slide.ErrInvalidSlide, level, err)
	}
	tw, th, err := reader.Dimensions(level)
	if err != nil {
		return nil, fmt.Errorf("%w: dimensions for level %d: %v", slide.ErrInvalidSlide, level, err)
	}

	thumb, err := reader.ReadRegion(ctx, 0, 0, level, tw, th)
	if err != nil {
		return nil, fmt.Errorf("read thumbnail at level %d: %w", level, err)
	}

	g, satThreshold := segment(thumb, cfg)

	longEdge := max(tw, th)
	closeR := clampRadius(longEdge/cfg.CloseDivisor, cfg.MinRadius, cfg.MaxRadius)
	openR := clampRadius(longEdge/cfg.OpenDivisor, cfg.MinRadius, cfg.MaxRadius)
	g = closing(g, closeR)
	g = opening(g, openR)
	removeSmallComponents(g, cfg.MinAreaPx)

	coverage := gridCoverage(g)
	bbox := tissueBBox(g, cfg, down, w0, h0)

	logger.Info("tissue mask built", map[string]any{
		"level":         level,
		"thumb":         fmt.Sprintf("%dx%d", tw, th),
		"downsample":    down,
		"sat_threshold": satThreshold,
		"close_radius":  closeR,
		"open_radius":   openR,
		"coverage":      coverage,
		"bbox":          bbox,
	})

	return &types.Mask{
		Level:      level,
		Grid:       g.cells,
		GridW:      g.w,
		GridH:      g.h,
		Downsample: down,
		BBoxLevel0: bbox,
		Coverage:   coverage,
	}, nil
}

// segment produces the candidate tissue grid from the thumbnail. Returns the
// effective saturation threshold for logging.
func segment(thumb *slide.Image, cfg Config) (*grid, float64) {
	var hist [256]int64
	sats := make([]float64, thumb.W*thumb.H)
	vals := make([]float64, thumb.W*thumb.H)
	for y := 0; y < thumb.H; y++ {
		for x := 0; x < thumb.W; x++ {
			r, g, b := thumb.RGB(x, y)
			s, v := rgbToSatVal(r, g, b)
			i := y*thumb.W + x
			sats[i], vals[i] = s, v
			hist[int(s*255.0+0.5)]++
		}
	}

	// Otsu on the saturation histogram; a constant channel degrades to bin 0,
	// which the floor then dominates.
	threshold := float64(otsuThreshold(hist)) / 255.0
	effective := math.Max(threshold, cfg.SatFloor)

	g := newGrid(thumb.W, thumb.H)
	for y := 0; y < thumb.H; y++ {
		for x := 0; x < thumb.W; x++ {
			i := y*thumb.W + x
			if sats[i] <= effective || vals[i] >= cfg.ValueCeil {
				continue
			}
			r, gr, b := thumb.RGB(x, y)
			if r > cfg.BrightFloor && gr > cfg.BrightFloor && b > cfg.BrightFloor {
				continue
			}
			g.set(x, y, true)
		}
	}
	return g, effective
}

// gridCoverage is the fraction of cells flagged tissue, before any bbox crop.
func gridCoverage(g *grid) float64 {
	if len(g.cells) == 0 {
		return 0
	}
	var n int
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return float64(n) / float64(len(g.cells))
}

// tissueBBox locates surviving tissue, pads by the configured level-0 pixel
// count converted to mask units, and maps to clamped level-0 coordinates.
// Returns the zero rectangle when no tissue survived.
func tissueBBox(g *grid, cfg Config, down float64, w0, h0 int) types.Rect {
	minX, minY := g.w, g.h
	maxX, maxY := -1, -1
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			if !g.at(x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return types.Rect{}
	}

	pad := int(math.Ceil(float64(cfg.PadLevel0) / down))
	if pad < 1 {
		pad = 1
	}
	minX = max(0, minX-pad)
	minY = max(0, minY-pad)
	// Upper bounds are exclusive in mask units.
	maxX = min(g.w, maxX+1+pad)
	maxY = min(g.h, maxY+1+pad)

	return types.Rect{
		X0: max(0, int(math.Floor(float64(minX)*down))),
		Y0: max(0, int(math.Floor(float64(minY)*down))),
		X1: min(w0, int(math.Ceil(float64(maxX)*down))),
		Y1: min(h0, int(math.Ceil(float64(maxY)*down))),
	}
}

func clampRadius(r, lo, hi int) int {
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}
