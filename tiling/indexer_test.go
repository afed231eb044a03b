package tiling

import (
	"context"
	"errors"
	"testing"

	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/slide"
	"github.com/histokit/slidepress/types"
)

// fullMask returns a mask whose every cell is tissue over a gw x gh grid.
func fullMask(gw, gh int, down float64, bbox types.Rect) *types.Mask {
	grid := make([]bool, gw*gh)
	for i := range grid {
		grid[i] = true
	}
	return &types.Mask{
		Grid:       grid,
		GridW:      gw,
		GridH:      gh,
		Downsample: down,
		BBoxLevel0: bbox,
		Coverage:   1.0,
	}
}

func memSlide(t *testing.T, w, h int) *slide.Memory {
	t.Helper()
	m, err := slide.NewMemory(slide.NewImage(w, h))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestBuildIndex_FullTissue1000px(t *testing.T) {
	// Tile 256, stride 256, full-tissue mask over a
	// 1000x1000 bbox. Expect a 4x4 grid: 3x3 interior 256px tiles plus
	// 232px edge tiles, covering the bbox with no gaps.
	reader := memSlide(t, 1000, 1000)
	m := fullMask(100, 100, 10.0, types.Rect{X0: 0, Y0: 0, X1: 1000, Y1: 1000})
	cfg := Config{TileSize: 256, Stride: 256, MinTissueFrac: 0.5}

	tiles, err := BuildIndex(context.Background(), reader, m, cfg, log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	if len(tiles) != 16 {
		t.Fatalf("len(tiles) = %d, want 16", len(tiles))
	}

	var area int
	for _, tile := range tiles {
		if tile.W <= 0 || tile.H <= 0 {
			t.Errorf("tile %d has non-positive extent %dx%d", tile.ID, tile.W, tile.H)
		}
		wantW := 256
		if tile.X == 768 {
			wantW = 232
		}
		wantH := 256
		if tile.Y == 768 {
			wantH = 232
		}
		if tile.W != wantW || tile.H != wantH {
			t.Errorf("tile %d at (%d,%d): %dx%d, want %dx%d",
				tile.ID, tile.X, tile.Y, tile.W, tile.H, wantW, wantH)
		}
		if tile.Coverage != 1.0 {
			t.Errorf("tile %d coverage = %v, want 1.0", tile.ID, tile.Coverage)
		}
		area += tile.W * tile.H
	}
	if area != 1000*1000 {
		t.Errorf("total tile area = %d, want full bbox %d (stride = tile size leaves no gaps)", area, 1000*1000)
	}
}

func TestBuildIndex_IDsDenseInScanOrder(t *testing.T) {
	reader := memSlide(t, 1000, 1000)
	m := fullMask(100, 100, 10.0, types.Rect{X0: 0, Y0: 0, X1: 1000, Y1: 1000})
	cfg := Config{TileSize: 256, Stride: 256, MinTissueFrac: 0.5}

	tiles, err := BuildIndex(context.Background(), reader, m, cfg, log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	for i, tile := range tiles {
		if tile.ID != i {
			t.Fatalf("tiles[%d].ID = %d, want dense sequential ids", i, tile.ID)
		}
		if i == 0 {
			continue
		}
		prev := tiles[i-1]
		if tile.Y < prev.Y || (tile.Y == prev.Y && tile.X <= prev.X) {
			t.Fatalf("tile %d at (%d,%d) out of row-major order after (%d,%d)",
				tile.ID, tile.X, tile.Y, prev.X, prev.Y)
		}
	}
}

func TestBuildIndex_CoverageFilter(t *testing.T) {
	reader := memSlide(t, 512, 512)

	// Left half tissue, right half background, downsample 8 -> 64x64 grid.
	gw, gh := 64, 64
	grid := make([]bool, gw*gh)
	for y := 0; y < gh; y++ {
		for x := 0; x < gw/2; x++ {
			grid[y*gw+x] = true
		}
	}
	m := &types.Mask{
		Grid: grid, GridW: gw, GridH: gh, Downsample: 8.0,
		BBoxLevel0: types.Rect{X0: 0, Y0: 0, X1: 512, Y1: 512},
	}

	cfg := Config{TileSize: 128, Stride: 128, MinTissueFrac: 0.9}
	tiles, err := BuildIndex(context.Background(), reader, m, cfg, log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	// Only the two fully-tissue columns (x=0 and x=128) pass a 0.9 gate.
	if len(tiles) != 8 {
		t.Fatalf("len(tiles) = %d, want 8", len(tiles))
	}
	for _, tile := range tiles {
		if tile.Coverage < cfg.MinTissueFrac {
			t.Errorf("tile %d coverage %v below gate %v; tile should not exist",
				tile.ID, tile.Coverage, cfg.MinTissueFrac)
		}
		if tile.X > 128 {
			t.Errorf("tile %d at x=%d is in the background half", tile.ID, tile.X)
		}
	}
}

func TestBuildIndex_EmptyBBox(t *testing.T) {
	reader := memSlide(t, 512, 512)
	m := fullMask(64, 64, 8.0, types.Rect{})

	tiles, err := BuildIndex(context.Background(), reader, m, DefaultConfig(), log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if len(tiles) != 0 {
		t.Errorf("len(tiles) = %d, want 0 for empty bbox", len(tiles))
	}
}

func TestBuildIndex_BBoxClampedToSlide(t *testing.T) {
	reader := memSlide(t, 300, 300)
	// Bbox extends past slide bounds; tiles must stay inside.
	m := fullMask(64, 64, 8.0, types.Rect{X0: 0, Y0: 0, X1: 512, Y1: 512})

	cfg := Config{TileSize: 128, Stride: 128, MinTissueFrac: 0.1}
	tiles, err := BuildIndex(context.Background(), reader, m, cfg, log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	for _, tile := range tiles {
		if tile.X+tile.W > 300 || tile.Y+tile.H > 300 {
			t.Errorf("tile %d (%d,%d %dx%d) exceeds slide bounds", tile.ID, tile.X, tile.Y, tile.W, tile.H)
		}
	}
}

func TestBuildIndex_InvalidConfig(t *testing.T) {
	reader := memSlide(t, 256, 256)
	m := fullMask(32, 32, 8.0, types.Rect{X0: 0, Y0: 0, X1: 256, Y1: 256})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero tile size", Config{TileSize: 0, Stride: 64, MinTissueFrac: 0.5}},
		{"negative stride", Config{TileSize: 64, Stride: -1, MinTissueFrac: 0.5}},
		{"fraction above one", Config{TileSize: 64, Stride: 64, MinTissueFrac: 1.5}},
		{"negative fraction", Config{TileSize: 64, Stride: 64, MinTissueFrac: -0.1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildIndex(context.Background(), reader, m, tt.cfg, log.Nop())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestWindowCoverage_ApproximationWithinOneCell(t *testing.T) {
	// Fractional downsample with a tile straddling the tissue boundary. The
	// floor/ceil window mean may over- or under-count at the edges, but the
	// error stays below one mask cell's share of the tile width.
	const down = 7.0
	gw, gh := 64, 64
	grid := make([]bool, gw*gh)
	for y := 0; y < gh; y++ {
		for x := 0; x < gw/2; x++ {
			grid[y*gw+x] = true
		}
	}
	m := &types.Mask{Grid: grid, GridW: gw, GridH: gh, Downsample: down}

	// Tissue occupies level-0 x < 32*7 = 224. Tile spans [180,280).
	x, y, w, h := 180, 0, 100, 100
	got, ok := windowCoverage(m, x, y, w, h, down)
	if !ok {
		t.Fatal("windowCoverage reported empty window")
	}

	exact := float64(224-x) / float64(w)
	bound := down / float64(w)
	if diff := got - exact; diff < -bound || diff > bound {
		t.Errorf("coverage = %v, exact overlap %v, want within one cell (%v)", got, exact, bound)
	}
}

func TestBuildIndex_StrideLargerThanTileIsAccepted(t *testing.T) {
	reader := memSlide(t, 512, 512)
	m := fullMask(64, 64, 8.0, types.Rect{X0: 0, Y0: 0, X1: 512, Y1: 512})

	// Gaps between tiles: valid but unusual. Must log, not fail.
	cfg := Config{TileSize: 64, Stride: 128, MinTissueFrac: 0.5}
	tiles, err := BuildIndex(context.Background(), reader, m, cfg, log.Nop())
	if err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}
	if len(tiles) != 16 {
		t.Errorf("len(tiles) = %d, want 16 (4x4 grid at stride 128)", len(tiles))
	}
	for _, tile := range tiles {
		if tile.W != 64 || tile.H != 64 {
			t.Errorf("tile %d = %dx%d, want 64x64", tile.ID, tile.W, tile.H)
		}
	}
}
