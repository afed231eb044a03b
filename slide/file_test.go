package slide

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFile_PNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 120, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "slide.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	m, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	defer m.Close()

	w, h, err := m.Dimensions(0)
	if err != nil {
		t.Fatalf("Dimensions failed: %v", err)
	}
	if w != 80 || h != 60 {
		t.Errorf("dimensions = %dx%d, want 80x60", w, h)
	}

	region, err := m.ReadRegion(context.Background(), 10, 10, 0, 4, 4)
	if err != nil {
		t.Fatalf("ReadRegion failed: %v", err)
	}
	if r, g, b := region.RGB(0, 0); r != 200 || g != 50 || b != 120 {
		t.Errorf("pixel = (%d,%d,%d), want (200,50,120)", r, g, b)
	}
}

func TestOpenFile_Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.png"))
	if !errors.Is(err, ErrInvalidSlide) {
		t.Fatalf("err = %v, want ErrInvalidSlide", err)
	}
}

func TestOpenFile_NotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.png")
	if err := os.WriteFile(path, []byte("not a png"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := OpenFile(path); !errors.Is(err, ErrInvalidSlide) {
		t.Fatalf("err = %v, want ErrInvalidSlide", err)
	}
}
