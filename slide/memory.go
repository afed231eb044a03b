package slide

import (
	"context"
	"fmt"
	"math/rand"
)

// Memory is an in-memory pyramidal slide. Levels beyond the base are built
// by box-averaging with power-of-two downsample factors.
//
// Memory serializes nothing itself; like a real slide handle it is not safe
// for concurrent ReadRegion calls.
type Memory struct {
	levels      []*Image
	downsamples []float64
	closed      bool
}

// Verify Memory implements Reader.
var _ Reader = (*Memory)(nil)

// NewMemory builds a pyramid over base with power-of-two levels until the
// long edge drops below 64 pixels (always at least the base level).
func NewMemory(base *Image) (*Memory, error) {
	if err := base.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlide, err)
	}

	m := &Memory{
		levels:      []*Image{base},
		downsamples: []float64{1.0},
	}

	down := 2
	for {
		w, h := base.W/down, base.H/down
		if w < 1 || h < 1 || (w < 64 && h < 64) {
			break
		}
		m.levels = append(m.levels, boxDownsample(base, w, h))
		m.downsamples = append(m.downsamples, float64(down))
		down *= 2
	}
	return m, nil
}

// boxDownsample averages base pixels into a w x h image.
func boxDownsample(base *Image, w, h int) *Image {
	out := NewImage(w, h)
	bw := base.W / w
	bh := base.H / h
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sr, sg, sb, n int
			for yy := y * bh; yy < (y+1)*bh && yy < base.H; yy++ {
				for xx := x * bw; xx < (x+1)*bw && xx < base.W; xx++ {
					r, g, b := base.RGB(xx, yy)
					sr += int(r)
					sg += int(g)
					sb += int(b)
					n++
				}
			}
			if n > 0 {
				out.SetRGB(x, y, uint8(sr/n), uint8(sg/n), uint8(sb/n))
			}
		}
	}
	return out
}

// LevelCount implements Reader.
func (m *Memory) LevelCount() int { return len(m.levels) }

// Dimensions implements Reader.
func (m *Memory) Dimensions(level int) (int, int, error) {
	if err := m.checkLevel(level); err != nil {
		return 0, 0, err
	}
	im := m.levels[level]
	return im.W, im.H, nil
}

// LevelDownsample implements Reader.
func (m *Memory) LevelDownsample(level int) (float64, error) {
	if err := m.checkLevel(level); err != nil {
		return 0, err
	}
	return m.downsamples[level], nil
}

// BestLevelForDownsample implements Reader.
// Returns the deepest level whose downsample does not exceed ratio.
func (m *Memory) BestLevelForDownsample(ratio float64) int {
	best := 0
	for i, d := range m.downsamples {
		if d <= ratio {
			best = i
		}
	}
	return best
}

// ReadRegion implements Reader. The (x, y) location is in level-0
// coordinates; out-of-bounds pixels read as white, matching the glass
// background of a scanned slide.
func (m *Memory) ReadRegion(ctx context.Context, x, y, level, w, h int) (*Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.checkLevel(level); err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: non-positive region %dx%d", ErrInvalidSlide, w, h)
	}

	src := m.levels[level]
	down := m.downsamples[level]
	lx := int(float64(x) / down)
	ly := int(float64(y) / down)

	out := NewImage(w, h)
	for i := range out.Pix {
		out.Pix[i] = 0xff
	}
	for yy := 0; yy < h; yy++ {
		sy := ly + yy
		if sy < 0 || sy >= src.H {
			continue
		}
		for xx := 0; xx < w; xx++ {
			sx := lx + xx
			if sx < 0 || sx >= src.W {
				continue
			}
			r, g, b := src.RGB(sx, sy)
			out.SetRGB(xx, yy, r, g, b)
		}
	}
	return out, nil
}

// Close implements Reader.
func (m *Memory) Close() error {
	m.closed = true
	return nil
}

func (m *Memory) checkLevel(level int) error {
	if m.closed {
		return fmt.Errorf("%w: reader closed", ErrInvalidSlide)
	}
	if level < 0 || level >= len(m.levels) {
		return fmt.Errorf("%w: level %d out of range [0,%d)", ErrInvalidSlide, level, len(m.levels))
	}
	return nil
}

// Synthetic paints a deterministic tissue-like slide: saturated elliptical
// blobs on a near-white background. Used by tests and demo mode.
func Synthetic(w, h int, seed int64) *Memory {
	base := NewImage(w, h)
	for i := range base.Pix {
		base.Pix[i] = 0xf8
	}

	rng := rand.New(rand.NewSource(seed))
	blobs := 3 + rng.Intn(3)
	for i := 0; i < blobs; i++ {
		cx := float64(w) * (0.2 + 0.6*rng.Float64())
		cy := float64(h) * (0.2 + 0.6*rng.Float64())
		rx := float64(w) * (0.08 + 0.12*rng.Float64())
		ry := float64(h) * (0.08 + 0.12*rng.Float64())
		// Eosin-like pink with per-blob variation.
		cr := uint8(180 + rng.Intn(40))
		cg := uint8(60 + rng.Intn(60))
		cb := uint8(120 + rng.Intn(60))

		y0, y1 := int(cy-ry), int(cy+ry)
		x0, x1 := int(cx-rx), int(cx+rx)
		for y := max(0, y0); y < min(h, y1); y++ {
			for x := max(0, x0); x < min(w, x1); x++ {
				dx := (float64(x) - cx) / rx
				dy := (float64(y) - cy) / ry
				if dx*dx+dy*dy <= 1.0 {
					base.SetRGB(x, y, cr, cg, cb)
				}
			}
		}
	}

	m, _ := NewMemory(base)
	return m
}
