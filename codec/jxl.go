package codec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/histokit/slidepress/iox"
	"github.com/histokit/slidepress/slide"
)

// Default binary names, overridable for nonstandard installs.
const (
	defaultCjxl = "cjxl"
	defaultDjxl = "djxl"
)

// JXL invokes the JPEG XL reference binaries through temp-file
// intermediates. Distance maps directly to cjxl --distance (0 is lossless,
// larger is lossier); effort maps to cjxl --effort.
type JXL struct {
	// CjxlBin and DjxlBin are the encoder/decoder binary names or paths.
	CjxlBin string
	DjxlBin string
}

// Verify JXL implements Codec.
var _ Codec = (*JXL)(nil)

// NewJXL returns a JXL codec using the default binary names.
func NewJXL() *JXL {
	return &JXL{CjxlBin: defaultCjxl, DjxlBin: defaultDjxl}
}

// Name implements Codec.
func (j *JXL) Name() string { return "jxl" }

// Extension implements Codec.
func (j *JXL) Extension() string { return ".jxl" }

// Available implements Codec: both binaries must be on PATH.
func (j *JXL) Available() error {
	for _, bin := range []string{j.CjxlBin, j.DjxlBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%w: required binary %q not found in PATH", ErrUnavailable, bin)
		}
	}
	return nil
}

// Encode implements Codec.
func (j *JXL) Encode(ctx context.Context, im *slide.Image, distance float64, effort int) ([]byte, error) {
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("jxl encode: %w", err)
	}

	dir, err := os.MkdirTemp("", "slidepress-jxl-")
	if err != nil {
		return nil, fmt.Errorf("jxl encode: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "in.ppm")
	out := filepath.Join(dir, "out.jxl")

	f, err := os.Create(in)
	if err != nil {
		return nil, fmt.Errorf("jxl encode: %w", err)
	}
	if err := writePPM(f, im); err != nil {
		iox.DiscardClose(f)
		return nil, fmt.Errorf("jxl encode: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("jxl encode: %w", err)
	}

	cmd := exec.CommandContext(ctx, j.CjxlBin, in, out,
		"--distance", fmt.Sprintf("%g", distance),
		"--effort", fmt.Sprintf("%d", effort),
		"--quiet",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("cjxl failed: %w: %s", err, stderr.String())
	}

	blob, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("jxl encode output: %w", err)
	}
	return blob, nil
}

// Decode implements Codec.
func (j *JXL) Decode(ctx context.Context, blob []byte) (*slide.Image, error) {
	dir, err := os.MkdirTemp("", "slidepress-jxl-")
	if err != nil {
		return nil, fmt.Errorf("jxl decode: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	in := filepath.Join(dir, "in.jxl")
	out := filepath.Join(dir, "out.ppm")
	if err := os.WriteFile(in, blob, 0o644); err != nil {
		return nil, fmt.Errorf("jxl decode: %w", err)
	}

	cmd := exec.CommandContext(ctx, j.DjxlBin, in, out, "--quiet")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("djxl failed: %w: %s", err, stderr.String())
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("jxl decode output: %w", err)
	}
	defer iox.DiscardClose(f)
	return readPPM(f)
}
