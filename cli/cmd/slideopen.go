package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/slide"
)

// Slide input flags shared by run, mask and index.
func slideFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "slide",
			Usage: "Path to a PNG or JPEG slide image",
		},
		&cli.StringFlag{
			Name:  "synthetic",
			Usage: "Generate a synthetic slide instead of reading one, format WxH (e.g. 2048x2048)",
		},
		&cli.Int64Flag{
			Name:  "seed",
			Usage: "Seed for the synthetic slide",
			Value: 42,
		},
	}
}

// openSlide resolves the slide input from flags. Returns the reader and a
// stable slide identifier for logging and the manifest sidecar.
func openSlide(c *cli.Context) (slide.Reader, string, error) {
	if dims := c.String("synthetic"); dims != "" {
		w, h, err := parseDims(dims)
		if err != nil {
			return nil, "", err
		}
		seed := c.Int64("seed")
		name := fmt.Sprintf("synthetic:%dx%d:%d", w, h, seed)
		return slide.Synthetic(w, h, seed), name, nil
	}

	path := c.String("slide")
	if path == "" {
		return nil, "", fmt.Errorf("either --slide or --synthetic is required")
	}
	reader, err := slide.OpenFile(path)
	if err != nil {
		return nil, "", err
	}
	return reader, path, nil
}

func parseDims(dims string) (w, h int, err error) {
	parts := strings.SplitN(strings.ToLower(dims), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid dimensions %q, want WxH", dims)
	}
	w, err = strconv.Atoi(parts[0])
	if err == nil {
		h, err = strconv.Atoi(parts[1])
	}
	if err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid dimensions %q, want positive WxH", dims)
	}
	return w, h, nil
}
