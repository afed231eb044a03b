package slide

import (
	"context"
	"errors"
	"testing"
)

func TestNewMemory_LevelGeometry(t *testing.T) {
	m, err := NewMemory(NewImage(1024, 512))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	if m.LevelCount() < 2 {
		t.Fatalf("LevelCount = %d, want >= 2", m.LevelCount())
	}

	w0, h0, err := m.Dimensions(0)
	if err != nil {
		t.Fatalf("Dimensions(0) failed: %v", err)
	}
	if w0 != 1024 || h0 != 512 {
		t.Errorf("level 0 = %dx%d, want 1024x512", w0, h0)
	}

	d1, err := m.LevelDownsample(1)
	if err != nil {
		t.Fatalf("LevelDownsample(1) failed: %v", err)
	}
	if d1 != 2.0 {
		t.Errorf("LevelDownsample(1) = %v, want 2.0", d1)
	}
}

func TestNewMemory_InvalidBase(t *testing.T) {
	_, err := NewMemory(&Image{W: 10, H: 10, Pix: make([]uint8, 5)})
	if !errors.Is(err, ErrInvalidSlide) {
		t.Fatalf("err = %v, want ErrInvalidSlide", err)
	}
}

func TestBestLevelForDownsample(t *testing.T) {
	m, err := NewMemory(NewImage(2048, 2048))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	tests := []struct {
		ratio float64
		want  int
	}{
		{0.5, 0},
		{1.0, 0},
		{2.0, 1},
		{3.9, 1},
		{4.0, 2},
		{1e9, m.LevelCount() - 1},
	}
	for _, tt := range tests {
		if got := m.BestLevelForDownsample(tt.ratio); got != tt.want {
			t.Errorf("BestLevelForDownsample(%v) = %d, want %d", tt.ratio, got, tt.want)
		}
	}
}

func TestReadRegion_Level0Coordinates(t *testing.T) {
	base := NewImage(256, 256)
	for i := range base.Pix {
		base.Pix[i] = 0xff
	}
	// A 64x64 dark square at (128, 128).
	for y := 128; y < 192; y++ {
		for x := 128; x < 192; x++ {
			base.SetRGB(x, y, 10, 20, 30)
		}
	}
	m, err := NewMemory(base)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	region, err := m.ReadRegion(context.Background(), 128, 128, 0, 64, 64)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	r, g, b := region.RGB(0, 0)
	if r != 10 || g != 20 || b != 30 {
		t.Errorf("region(0,0) = (%d,%d,%d), want (10,20,30)", r, g, b)
	}

	// Same location at level 1 still uses level-0 coordinates.
	region1, err := m.ReadRegion(context.Background(), 128, 128, 1, 16, 16)
	if err != nil {
		t.Fatalf("ReadRegion level 1 failed: %v", err)
	}
	r, _, _ = region1.RGB(0, 0)
	if r > 40 {
		t.Errorf("level-1 region(0,0) red = %d, want dark pixel", r)
	}
}

func TestReadRegion_OutOfBoundsReadsWhite(t *testing.T) {
	m, err := NewMemory(NewImage(128, 128))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}

	region, err := m.ReadRegion(context.Background(), 120, 120, 0, 16, 16)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	r, g, b := region.RGB(15, 15)
	if r != 0xff || g != 0xff || b != 0xff {
		t.Errorf("out-of-bounds pixel = (%d,%d,%d), want white", r, g, b)
	}
}

func TestReadRegion_AfterCloseFails(t *testing.T) {
	m, err := NewMemory(NewImage(128, 128))
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := m.ReadRegion(context.Background(), 0, 0, 0, 8, 8); !errors.Is(err, ErrInvalidSlide) {
		t.Fatalf("err = %v, want ErrInvalidSlide", err)
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	a := Synthetic(512, 512, 42)
	b := Synthetic(512, 512, 42)

	ra, err := a.ReadRegion(context.Background(), 0, 0, 0, 512, 512)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	rb, err := b.ReadRegion(context.Background(), 0, 0, 0, 512, 512)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	for i := range ra.Pix {
		if ra.Pix[i] != rb.Pix[i] {
			t.Fatalf("pixel %d differs: %d vs %d", i, ra.Pix[i], rb.Pix[i])
		}
	}
}
