// Package types defines the core domain types shared across the slidepress
// pipeline: the tissue mask, the tile index entries, and per-run metadata.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"time"
)

// Rect is a half-open rectangle [X0,X1) x [Y0,Y1) in level-0 pixel coordinates.
type Rect struct {
	X0 int `json:"x0" msgpack:"x0"`
	Y0 int `json:"y0" msgpack:"y0"`
	X1 int `json:"x1" msgpack:"x1"`
	Y1 int `json:"y1" msgpack:"y1"`
}

// Empty reports whether the rectangle encloses no pixels.
func (r Rect) Empty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Width returns X1-X0, or 0 for an empty rectangle.
func (r Rect) Width() int {
	if r.Empty() {
		return 0
	}
	return r.X1 - r.X0
}

// Height returns Y1-Y0, or 0 for an empty rectangle.
func (r Rect) Height() int {
	if r.Empty() {
		return 0
	}
	return r.Y1 - r.Y0
}

// Mask is the low-resolution tissue mask computed once per slide.
// It is immutable after construction; consumers must not modify Grid.
type Mask struct {
	// Level is the pyramid level the mask was computed at.
	Level int
	// Grid is the tissue/no-tissue grid at Level resolution, row-major,
	// Grid[y*GridW+x]. True means tissue.
	Grid []bool
	// GridW and GridH are the grid dimensions.
	GridW, GridH int
	// Downsample is the number of level-0 pixels per mask pixel (>= 1.0).
	Downsample float64
	// BBoxLevel0 is the tissue bounding box in level-0 coordinates,
	// clamped to the slide bounds. Zero rectangle when no tissue was found.
	BBoxLevel0 Rect
	// Coverage is the fraction of grid cells flagged tissue, in [0,1].
	Coverage float64
}

// At reports whether the grid cell (x, y) is tissue.
// Out-of-range coordinates report false.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.GridW || y >= m.GridH {
		return false
	}
	return m.Grid[y*m.GridW+x]
}

// Tile is one accepted grid cell of the tile index. Tiles are immutable and
// ids are dense and strictly increasing in row-major scan order.
type Tile struct {
	ID int `json:"id" msgpack:"id"`
	// X, Y is the level-0 top-left corner.
	X int `json:"x" msgpack:"x"`
	Y int `json:"y" msgpack:"y"`
	// W, H is the level-0 extent, clipped to the tissue bounding box and the
	// slide bounds. Edge tiles may be smaller than the nominal tile size.
	W int `json:"w" msgpack:"w"`
	H int `json:"h" msgpack:"h"`
	// Coverage is the tissue fraction estimated from the mask window, in [0,1].
	Coverage float64 `json:"coverage" msgpack:"coverage"`
}

// Filename returns the deterministic output filename for the tile, derived
// from its level-0 geometry. ext must include the leading dot.
func (t Tile) Filename(ext string) string {
	return fmt.Sprintf("tile_x%d_y%d_w%d_h%d%s", t.X, t.Y, t.W, t.H, ext)
}

// RunMeta carries run identity for logging and output layout.
type RunMeta struct {
	// RunID is the unique run identifier, also the run directory name.
	RunID string
	// Slide is the slide identifier (path or synthetic name).
	Slide string
	// StartedAt is the run start time.
	StartedAt time.Time
}

// Validate checks run identity invariants.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Slide == "" {
		return errors.New("slide must be non-empty")
	}
	return nil
}
