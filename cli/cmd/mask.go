package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/cli/config"
	"github.com/histokit/slidepress/cli/render"
	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/mask"
	"github.com/histokit/slidepress/types"
)

// MaskResponse is the response for the mask command.
type MaskResponse struct {
	Slide       string     `json:"slide"`
	Level       int        `json:"level"`
	GridW       int        `json:"grid_w"`
	GridH       int        `json:"grid_h"`
	Downsample  float64    `json:"downsample"`
	Coverage    float64    `json:"coverage"`
	TissueFound bool       `json:"tissue_found"`
	BBox        types.Rect `json:"bbox_level0"`
}

// MaskCommand returns the mask command: compute and report the tissue mask
// without encoding anything.
func MaskCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, slideFlags()...)
	flags = append(flags, ReadOnlyFlags()...)

	return &cli.Command{
		Name:   "mask",
		Usage:  "Compute the tissue mask for a slide (read-only)",
		Flags:  flags,
		Action: maskAction,
	}
}

func maskAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for mask command", 1)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg := config.Default()
	if path := c.String("config"); path != "" {
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}

	reader, slideName, err := openSlide(c)
	if err != nil {
		return fmt.Errorf("cannot open slide: %w", err)
	}
	defer func() { _ = reader.Close() }()

	m, err := mask.Build(context.Background(), reader, cfg.Mask, log.Nop())
	if err != nil {
		return fmt.Errorf("mask build failed: %w", err)
	}

	return r.Render(MaskResponse{
		Slide:       slideName,
		Level:       m.Level,
		GridW:       m.GridW,
		GridH:       m.GridH,
		Downsample:  m.Downsample,
		Coverage:    m.Coverage,
		TissueFound: !m.BBoxLevel0.Empty(),
		BBox:        m.BBoxLevel0,
	})
}
