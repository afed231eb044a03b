package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/histokit/slidepress/slide"
)

// Stub is a deterministic in-memory codec for testing. It stores the source
// pixels verbatim and degrades them on decode by an amount proportional to
// distance, so SSIM decreases monotonically as distance grows. Degrade 0
// makes every distance lossless.
type Stub struct {
	// Degrade scales the per-pixel corruption applied on decode.
	Degrade float64
	// Unavailable makes Available fail, simulating a missing dependency.
	Unavailable bool

	mu      sync.Mutex
	encodes int
	decodes int
}

// Verify Stub implements Codec.
var _ Codec = (*Stub)(nil)

// Name implements Codec.
func (s *Stub) Name() string { return "stub" }

// Extension implements Codec.
func (s *Stub) Extension() string { return ".stub" }

// Available implements Codec.
func (s *Stub) Available() error {
	if s.Unavailable {
		return fmt.Errorf("%w: stub configured unavailable", ErrUnavailable)
	}
	return nil
}

// Encode implements Codec. The blob is a header (distance, dimensions)
// followed by the raw pixels; "compression" shrinks nominal size with
// distance so search results have plausible byte counts.
func (s *Stub) Encode(_ context.Context, im *slide.Image, distance float64, _ int) ([]byte, error) {
	if err := im.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.encodes++
	s.mu.Unlock()

	blob := make([]byte, 16+len(im.Pix))
	binary.BigEndian.PutUint64(blob, math.Float64bits(distance))
	binary.BigEndian.PutUint32(blob[8:], uint32(im.W))
	binary.BigEndian.PutUint32(blob[12:], uint32(im.H))
	copy(blob[16:], im.Pix)
	return blob, nil
}

// Decode implements Codec.
func (s *Stub) Decode(_ context.Context, blob []byte) (*slide.Image, error) {
	if len(blob) < 16 {
		return nil, fmt.Errorf("stub blob too short: %d bytes", len(blob))
	}
	s.mu.Lock()
	s.decodes++
	s.mu.Unlock()

	distance := math.Float64frombits(binary.BigEndian.Uint64(blob))
	w := int(binary.BigEndian.Uint32(blob[8:]))
	h := int(binary.BigEndian.Uint32(blob[12:]))

	im := slide.NewImage(w, h)
	copy(im.Pix, blob[16:])

	offset := int(math.Round(distance * s.Degrade))
	if offset > 0 {
		for i := range im.Pix {
			v := int(im.Pix[i])
			if i%2 == 0 {
				v += offset
			} else {
				v -= offset
			}
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			im.Pix[i] = uint8(v)
		}
	}
	return im, nil
}

// Calls returns the number of Encode and Decode invocations.
func (s *Stub) Calls() (encodes, decodes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.encodes, s.decodes
}
