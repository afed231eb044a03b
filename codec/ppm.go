package codec

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/histokit/slidepress/slide"
)

// writePPM serializes im as a binary PPM (P6, maxval 255), the interchange
// format both cjxl and djxl understand.
func writePPM(w io.Writer, im *slide.Image) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "P6\n%d %d\n255\n", im.W, im.H); err != nil {
		return err
	}
	if _, err := bw.Write(im.Pix); err != nil {
		return err
	}
	return bw.Flush()
}

// readPPM parses a binary PPM (P6, maxval 255) into an RGB buffer.
func readPPM(r io.Reader) (*slide.Image, error) {
	br := bufio.NewReader(r)

	var magic string
	if _, err := fmt.Fscan(br, &magic); err != nil {
		return nil, fmt.Errorf("ppm header: %w", err)
	}
	if magic != "P6" {
		return nil, fmt.Errorf("ppm magic %q, want P6", magic)
	}

	w, err := readPPMInt(br)
	if err != nil {
		return nil, fmt.Errorf("ppm width: %w", err)
	}
	h, err := readPPMInt(br)
	if err != nil {
		return nil, fmt.Errorf("ppm height: %w", err)
	}
	maxval, err := readPPMInt(br)
	if err != nil {
		return nil, fmt.Errorf("ppm maxval: %w", err)
	}
	if maxval != 255 {
		return nil, fmt.Errorf("ppm maxval %d, want 255", maxval)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("ppm dimensions %dx%d", w, h)
	}

	im := slide.NewImage(w, h)
	if _, err := io.ReadFull(br, im.Pix); err != nil {
		return nil, fmt.Errorf("ppm pixels: %w", err)
	}
	return im, nil
}

// readPPMInt reads one whitespace-delimited decimal, skipping comment lines,
// and consumes exactly one trailing whitespace byte after the value.
func readPPMInt(br *bufio.Reader) (int, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch {
		case b == '#':
			if _, err := br.ReadBytes('\n'); err != nil {
				return 0, err
			}
		case isPPMSpace(b):
			continue
		default:
			var buf bytes.Buffer
			buf.WriteByte(b)
			for {
				b, err := br.ReadByte()
				if err != nil {
					return 0, err
				}
				if isPPMSpace(b) {
					var v int
					if _, err := fmt.Sscan(buf.String(), &v); err != nil {
						return 0, err
					}
					return v, nil
				}
				buf.WriteByte(b)
			}
		}
	}
}

func isPPMSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
