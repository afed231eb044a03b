package slide

import (
	"fmt"
	"image"
	"os"

	// Raster codecs for OpenFile.
	_ "image/jpeg"
	_ "image/png"

	"github.com/histokit/slidepress/iox"
)

// OpenFile decodes a PNG or JPEG raster into an in-memory pyramid. Whole-
// slide formats with embedded pyramids are out of scope; large inputs are
// loaded fully into memory.
func OpenFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlide, err)
	}
	defer iox.DiscardClose(f)

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidSlide, path, err)
	}

	bounds := img.Bounds()
	base := NewImage(bounds.Dx(), bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			base.SetRGB(x, y, uint8(r>>8), uint8(g>>8), uint8(b>>8))
		}
	}
	return NewMemory(base)
}
