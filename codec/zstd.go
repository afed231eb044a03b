package codec

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/histokit/slidepress/slide"
)

// zstdMagic identifies the native blob format.
var zstdMagic = [4]byte{'S', 'P', 'Z', '1'}

// zstdHeaderSize is magic + width + height + quantization step.
const zstdHeaderSize = 4 + 4 + 4 + 1

// Zstd is the native codec backend: uniform channel quantization followed by
// zstd entropy packing. Distance drives the quantization step, so larger
// distance coarsens values monotonically (lower SSIM, smaller blob); the
// entropy coding itself is delegated to the zstd library.
//
// Always available; no external binaries.
type Zstd struct{}

// Verify Zstd implements Codec.
var _ Codec = (*Zstd)(nil)

// NewZstd returns the native zstd codec.
func NewZstd() *Zstd { return &Zstd{} }

// Name implements Codec.
func (z *Zstd) Name() string { return "zstd" }

// Extension implements Codec.
func (z *Zstd) Extension() string { return ".spz" }

// Available implements Codec. The native backend has no dependencies.
func (z *Zstd) Available() error { return nil }

// quantStep maps distance to a quantization step in [1, 64].
// Step 1 is value-exact (distance near zero behaves losslessly).
func quantStep(distance float64) uint8 {
	step := 1 + int(math.Round(distance*2))
	if step < 1 {
		step = 1
	}
	if step > 64 {
		step = 64
	}
	return uint8(step)
}

// encoderLevel maps codec effort (1..9) onto zstd compression levels.
func encoderLevel(effort int) zstd.EncoderLevel {
	switch {
	case effort <= 2:
		return zstd.SpeedFastest
	case effort <= 5:
		return zstd.SpeedDefault
	case effort <= 7:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}

// Encode implements Codec.
func (z *Zstd) Encode(ctx context.Context, im *slide.Image, distance float64, effort int) ([]byte, error) {
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("zstd encode: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := quantStep(distance)
	quantized := make([]byte, len(im.Pix))
	for i, v := range im.Pix {
		quantized[i] = v / step
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encoderLevel(effort)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	defer func() { _ = enc.Close() }()

	blob := make([]byte, zstdHeaderSize, zstdHeaderSize+len(quantized)/4)
	copy(blob, zstdMagic[:])
	binary.BigEndian.PutUint32(blob[4:], uint32(im.W))
	binary.BigEndian.PutUint32(blob[8:], uint32(im.H))
	blob[12] = step
	return enc.EncodeAll(quantized, blob), nil
}

// Decode implements Codec.
func (z *Zstd) Decode(ctx context.Context, blob []byte) (*slide.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(blob) < zstdHeaderSize || [4]byte(blob[:4]) != zstdMagic {
		return nil, fmt.Errorf("zstd decode: malformed blob header")
	}
	w := int(binary.BigEndian.Uint32(blob[4:]))
	h := int(binary.BigEndian.Uint32(blob[8:]))
	step := blob[12]
	if w <= 0 || h <= 0 || step < 1 {
		return nil, fmt.Errorf("zstd decode: invalid header %dx%d step %d", w, h, step)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	defer dec.Close()

	quantized, err := dec.DecodeAll(blob[zstdHeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	if len(quantized) != w*h*3 {
		return nil, fmt.Errorf("zstd decode: payload %d bytes, want %d", len(quantized), w*h*3)
	}

	im := &slide.Image{W: w, H: h, Pix: quantized}
	if step > 1 {
		// Reconstruct at bucket centers.
		half := step / 2
		for i, q := range quantized {
			v := int(q)*int(step) + int(half)
			if v > 255 {
				v = 255
			}
			quantized[i] = uint8(v)
		}
	}
	return im, nil
}
