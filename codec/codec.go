// Package codec abstracts the lossy image codec behind the distance search.
//
// A codec maps an RGB buffer and a scalar distance parameter to a compressed
// blob and back. Distance is quality-inverse: larger distance means more
// compression and lower fidelity. Implementations must preserve that
// monotonic relationship; the search in package search depends on it.
//
// Two backends ship with slidepress: a JPEG XL backend that shells out to
// the cjxl/djxl reference binaries, and a native quantize+zstd backend with
// no external dependencies.
package codec

import (
	"context"
	"errors"

	"github.com/histokit/slidepress/slide"
)

// ErrUnavailable indicates the codec's external dependencies are missing.
// The pipeline checks availability once, before any tile work starts.
var ErrUnavailable = errors.New("codec unavailable")

// Codec encodes and decodes RGB tiles.
//
// Encode and Decode must be safe to call concurrently from multiple
// goroutines; the pipeline runs them across the worker pool without
// serialization.
type Codec interface {
	// Name identifies the backend (e.g. "jxl", "zstd").
	Name() string
	// Extension is the output file extension including the leading dot.
	Extension() string
	// Available verifies the backend can run. Wraps ErrUnavailable on failure.
	Available() error
	// Encode compresses im at the given distance. Effort is the encoder's
	// internal cost/quality trade-off, independent of distance.
	Encode(ctx context.Context, im *slide.Image, distance float64, effort int) ([]byte, error)
	// Decode reconstructs the RGB buffer from a blob produced by Encode.
	Decode(ctx context.Context, blob []byte) (*slide.Image, error)
}

// New returns the named codec backend.
func New(name string) (Codec, error) {
	switch name {
	case "jxl":
		return NewJXL(), nil
	case "zstd":
		return NewZstd(), nil
	default:
		return nil, errors.New("unknown codec backend: " + name)
	}
}
