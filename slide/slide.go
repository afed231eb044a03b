// Package slide defines the Region Source interface: random access to a
// pyramidal whole-slide image across resolution levels.
//
// The actual slide decoder (OpenSlide or equivalent) lives behind Reader.
// This package ships an in-memory implementation used for synthetic slides
// and tests; production deployments plug in their own Reader.
package slide

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidSlide indicates an unreadable or malformed image source.
// Use errors.Is(err, ErrInvalidSlide) for typed assertions.
var ErrInvalidSlide = errors.New("invalid slide")

// Image is an 8-bit RGB pixel buffer, row-major, 3 bytes per pixel.
type Image struct {
	W, H int
	// Pix holds W*H*3 bytes, R G B interleaved.
	Pix []uint8
}

// NewImage allocates a zeroed W x H RGB image.
func NewImage(w, h int) *Image {
	return &Image{W: w, H: h, Pix: make([]uint8, w*h*3)}
}

// RGB returns the pixel at (x, y). Caller must keep coordinates in range.
func (im *Image) RGB(x, y int) (r, g, b uint8) {
	i := (y*im.W + x) * 3
	return im.Pix[i], im.Pix[i+1], im.Pix[i+2]
}

// SetRGB sets the pixel at (x, y). Caller must keep coordinates in range.
func (im *Image) SetRGB(x, y int, r, g, b uint8) {
	i := (y*im.W + x) * 3
	im.Pix[i], im.Pix[i+1], im.Pix[i+2] = r, g, b
}

// Validate checks that the buffer is a well-formed 3-channel 8-bit image.
func (im *Image) Validate() error {
	if im == nil {
		return errors.New("nil image")
	}
	if im.W <= 0 || im.H <= 0 {
		return fmt.Errorf("non-positive dimensions %dx%d", im.W, im.H)
	}
	if len(im.Pix) != im.W*im.H*3 {
		return fmt.Errorf("pixel buffer length %d, want %d", len(im.Pix), im.W*im.H*3)
	}
	return nil
}

// Reader is the Region Source: a random-access reader of a pyramidal image.
//
// Level 0 is the full-resolution base. Region locations are always expressed
// in level-0 coordinates regardless of the level being read, matching the
// convention of whole-slide decoders.
//
// Implementations are not assumed safe for concurrent region reads; callers
// that share a Reader across goroutines must serialize access.
type Reader interface {
	// LevelCount returns the number of pyramid levels (>= 1).
	LevelCount() int
	// Dimensions returns the pixel dimensions of the given level.
	Dimensions(level int) (w, h int, err error)
	// LevelDownsample returns the downsample factor of the given level
	// relative to level 0 (level 0 returns 1.0).
	LevelDownsample(level int) (float64, error)
	// BestLevelForDownsample returns the deepest level whose downsample
	// factor does not exceed ratio.
	BestLevelForDownsample(ratio float64) int
	// ReadRegion extracts a w x h RGB region at the given level. The (x, y)
	// location is in level-0 coordinates.
	ReadRegion(ctx context.Context, x, y, level, w, h int) (*Image, error)
	// Close releases decoder resources.
	Close() error
}
