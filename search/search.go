// Package search finds the largest codec distance (most compression) whose
// decoded image still meets an SSIM floor against the original tile.
//
// The bisection assumes SSIM is non-increasing in distance, which the codec
// contract guarantees. The result is the last candidate that satisfied the
// gate, so timings refer to that winning probe only.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/histokit/slidepress/codec"
	"github.com/histokit/slidepress/slide"
	"github.com/histokit/slidepress/ssim"
)

// ErrInvalidInput indicates a malformed pixel buffer or out-of-range target.
var ErrInvalidInput = errors.New("invalid search input")

// ErrQualityUnattainable indicates no distance in range met the SSIM gate.
// The codec itself succeeded; this is distinct from an encoding failure and
// deliberately not papered over by falling back to the most-lossless bound.
var ErrQualityUnattainable = errors.New("quality target unattainable in distance range")

// Config holds the search parameters.
type Config struct {
	// TargetSSIM is the quality floor, in (0,1].
	TargetSSIM float64 `yaml:"target_ssim"`
	// Tolerance relaxes the gate to TargetSSIM - Tolerance. Must be >= 0.
	Tolerance float64 `yaml:"tolerance"`
	// DistMin and DistMax bound the bisection interval.
	DistMin float64 `yaml:"dist_min"`
	DistMax float64 `yaml:"dist_max"`
	// MaxIters caps the number of probes.
	MaxIters int `yaml:"max_iters"`
	// Epsilon stops the search once the interval is narrower than this.
	Epsilon float64 `yaml:"epsilon"`
	// Effort is the codec's internal cost/quality trade-off, independent of
	// the distance search.
	Effort int `yaml:"effort"`
}

// DefaultConfig returns the default search parameters.
func DefaultConfig() Config {
	return Config{
		TargetSSIM: 0.95,
		Tolerance:  0.02,
		DistMin:    0.1,
		DistMax:    15.0,
		MaxIters:   20,
		Epsilon:    0.05,
		Effort:     7,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if c.TargetSSIM <= 0 || c.TargetSSIM > 1 {
		return fmt.Errorf("%w: target_ssim must be within (0,1], got %v", ErrInvalidInput, c.TargetSSIM)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0, got %v", ErrInvalidInput, c.Tolerance)
	}
	if c.DistMin < 0 || c.DistMax <= c.DistMin {
		return fmt.Errorf("%w: distance range [%v,%v] invalid", ErrInvalidInput, c.DistMin, c.DistMax)
	}
	if c.MaxIters <= 0 {
		return fmt.Errorf("%w: max_iters must be positive, got %d", ErrInvalidInput, c.MaxIters)
	}
	if c.Epsilon < 0 {
		return fmt.Errorf("%w: epsilon must be >= 0, got %v", ErrInvalidInput, c.Epsilon)
	}
	return nil
}

// Result is the winning candidate of a distance search.
type Result struct {
	// Distance is the chosen quality-distance parameter.
	Distance float64
	// Blob is the compressed bytes of the chosen candidate.
	Blob []byte
	// SSIM is the similarity achieved by the chosen candidate.
	SSIM float64
	// EncodeTime and DecodeTime are for the chosen candidate only.
	EncodeTime time.Duration
	DecodeTime time.Duration
	// Iterations is the number of probes performed.
	Iterations int
}

// Distance runs the bisection for one tile.
func Distance(ctx context.Context, rgb *slide.Image, cfg Config, c codec.Codec) (*Result, error) {
	if err := rgb.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	gate := cfg.TargetSSIM - cfg.Tolerance
	lo, hi := cfg.DistMin, cfg.DistMax

	var best *Result
	iters := 0
	for iters < cfg.MaxIters && hi-lo >= cfg.Epsilon {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mid := (lo + hi) / 2
		iters++

		encStart := time.Now()
		blob, err := c.Encode(ctx, rgb, mid, cfg.Effort)
		encTime := time.Since(encStart)
		if err != nil {
			return nil, fmt.Errorf("encode at distance %g: %w", mid, err)
		}

		decStart := time.Now()
		decoded, err := c.Decode(ctx, blob)
		decTime := time.Since(decStart)
		if err != nil {
			return nil, fmt.Errorf("decode at distance %g: %w", mid, err)
		}

		s, err := ssim.RGB(rgb, decoded)
		if err != nil {
			return nil, fmt.Errorf("ssim at distance %g: %w", mid, err)
		}

		if s >= gate {
			// Gate satisfied: keep this candidate and push for more compression.
			best = &Result{
				Distance:   mid,
				Blob:       blob,
				SSIM:       s,
				EncodeTime: encTime,
				DecodeTime: decTime,
			}
			lo = mid
		} else {
			hi = mid
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: ssim gate %g not met on [%g,%g]",
			ErrQualityUnattainable, gate, cfg.DistMin, cfg.DistMax)
	}
	best.Iterations = iters
	return best, nil
}
