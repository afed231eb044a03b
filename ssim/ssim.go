// Package ssim computes the mean structural similarity index between two
// 8-bit RGB images.
//
// The implementation follows the common reference parameterization: a 7x7
// uniform window, K1=0.01, K2=0.03, full 8-bit dynamic range L=255, sample
// statistics with one degree of freedom, computed per channel and averaged.
package ssim

import (
	"errors"
	"fmt"

	"github.com/histokit/slidepress/slide"
)

const (
	defaultWindow = 7
	k1            = 0.01
	k2            = 0.03
	dataRange     = 255.0
)

// RGB returns the mean SSIM of two equally sized RGB images, in [-1, 1]
// (1.0 for identical images).
func RGB(ref, test *slide.Image) (float64, error) {
	if err := ref.Validate(); err != nil {
		return 0, fmt.Errorf("reference image: %w", err)
	}
	if err := test.Validate(); err != nil {
		return 0, fmt.Errorf("test image: %w", err)
	}
	if ref.W != test.W || ref.H != test.H {
		return 0, fmt.Errorf("image sizes differ: %dx%d vs %dx%d", ref.W, ref.H, test.W, test.H)
	}

	// Shrink the window for tiny tiles, keeping it odd.
	win := defaultWindow
	if m := min(ref.W, ref.H); m < win {
		win = m
		if win%2 == 0 {
			win--
		}
	}
	if win < 1 {
		return 0, errors.New("image too small for SSIM window")
	}

	var sum float64
	for ch := 0; ch < 3; ch++ {
		sum += channelSSIM(ref, test, ch, win)
	}
	return sum / 3.0, nil
}

// channelSSIM computes mean SSIM of one channel using integral images for
// the windowed sums.
func channelSSIM(ref, test *slide.Image, ch, win int) float64 {
	w, h := ref.W, ref.H

	// Prefix sums, (w+1)x(h+1), of x, y, x^2, y^2, x*y.
	stride := w + 1
	sx := make([]float64, stride*(h+1))
	sy := make([]float64, stride*(h+1))
	sxx := make([]float64, stride*(h+1))
	syy := make([]float64, stride*(h+1))
	sxy := make([]float64, stride*(h+1))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			a := float64(ref.Pix[i+ch])
			b := float64(test.Pix[i+ch])
			p := (y+1)*stride + (x + 1)
			up := y*stride + (x + 1)
			left := (y+1)*stride + x
			diag := y*stride + x
			sx[p] = a + sx[up] + sx[left] - sx[diag]
			sy[p] = b + sy[up] + sy[left] - sy[diag]
			sxx[p] = a*a + sxx[up] + sxx[left] - sxx[diag]
			syy[p] = b*b + syy[up] + syy[left] - syy[diag]
			sxy[p] = a*b + sxy[up] + sxy[left] - sxy[diag]
		}
	}

	window := func(s []float64, x0, y0 int) float64 {
		x1, y1 := x0+win, y0+win
		return s[y1*stride+x1] - s[y0*stride+x1] - s[y1*stride+x0] + s[y0*stride+x0]
	}

	np := float64(win * win)
	covNorm := 1.0
	if np > 1 {
		covNorm = np / (np - 1)
	}
	c1 := (k1 * dataRange) * (k1 * dataRange)
	c2 := (k2 * dataRange) * (k2 * dataRange)

	var total float64
	var count int
	for y0 := 0; y0+win <= h; y0++ {
		for x0 := 0; x0+win <= w; x0++ {
			ux := window(sx, x0, y0) / np
			uy := window(sy, x0, y0) / np
			vx := covNorm * (window(sxx, x0, y0)/np - ux*ux)
			vy := covNorm * (window(syy, x0, y0)/np - uy*uy)
			cov := covNorm * (window(sxy, x0, y0)/np - ux*uy)

			s := ((2*ux*uy + c1) * (2*cov + c2)) /
				((ux*ux + uy*uy + c1) * (vx + vy + c2))
			total += s
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}
