package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/cli/config"
	"github.com/histokit/slidepress/cli/render"
	"github.com/histokit/slidepress/log"
	"github.com/histokit/slidepress/mask"
	"github.com/histokit/slidepress/tiling"
	"github.com/histokit/slidepress/types"
)

// IndexResponse is the response for the index command.
type IndexResponse struct {
	Slide        string     `json:"slide"`
	Tiles        int        `json:"tiles"`
	TileSize     int        `json:"tile_size"`
	Stride       int        `json:"stride"`
	MeanCoverage float64    `json:"mean_coverage"`
	BBox         types.Rect `json:"bbox_level0"`
}

// IndexCommand returns the index command: plan the tile grid without
// encoding anything.
func IndexCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.BoolFlag{
			Name:  "full",
			Usage: "List every planned tile instead of the summary",
		},
	}
	flags = append(flags, slideFlags()...)
	flags = append(flags, ReadOnlyFlags()...)

	return &cli.Command{
		Name:   "index",
		Usage:  "Plan the tissue tile grid for a slide (read-only)",
		Flags:  flags,
		Action: indexAction,
	}
}

func indexAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for index command", 1)
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

	ctx := context.Background()
	m, err := mask.Build(ctx, reader, cfg.Mask, log.Nop())
	if err != nil {
		return fmt.Errorf("mask build failed: %w", err)
	}
	tiles, err := tiling.BuildIndex(ctx, reader, m, cfg.Tiling, log.Nop())
	if err != nil {
		return fmt.Errorf("tile index failed: %w", err)
	}

	if c.Bool("full") {
		return r.Render(tiles)
	}

	mean := 0.0
	for _, t := range tiles {
		mean += t.Coverage
	}
	if len(tiles) > 0 {
		mean /= float64(len(tiles))
	}

	return r.Render(IndexResponse{
		Slide:        slideName,
		Tiles:        len(tiles),
		TileSize:     cfg.Tiling.TileSize,
		Stride:       cfg.Tiling.Stride,
		MeanCoverage: mean,
		BBox:         m.BBoxLevel0,
	})
}
