package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/histokit/slidepress/cli/render"
	"github.com/histokit/slidepress/cli/tui"
	"github.com/histokit/slidepress/store"
)

// StatsResponse is the response for the stats command, aggregated from a
// run directory's manifest (and sidecar when present).
type StatsResponse struct {
	RunID            string  `json:"run_id"`
	Slide            string  `json:"slide,omitempty"`
	Codec            string  `json:"codec,omitempty"`
	State            string  `json:"state"`
	Tiles            int     `json:"tiles"`
	RawBytes         int64   `json:"raw_bytes"`
	EncodedBytes     int64   `json:"encoded_bytes"`
	CompressionRatio float64 `json:"compression_ratio"`
	MeanSSIM         float64 `json:"mean_ssim"`
	MeanDistance     float64 `json:"mean_distance"`
	MinSSIM          float64 `json:"min_ssim"`
	MaxDistance      float64 `json:"max_distance"`
}

// StatsCommand returns the stats command: aggregate a completed run
// directory (read-only).
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Summarize a run directory's manifest (read-only)",
		ArgsUsage: "<run-dir>",
		Flags:     ReadOnlyFlags(),
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("stats requires exactly one run directory argument", 1)
	}
	dir := c.Args().First()

	resp, err := aggregateRunDir(dir)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		fmt.Fprintln(c.App.Writer, tui.RenderRunStats(tui.RunStats{
			RunID:            resp.RunID,
			Tiles:            resp.Tiles,
			RawBytes:         resp.RawBytes,
			EncodedBytes:     resp.EncodedBytes,
			CompressionRatio: resp.CompressionRatio,
			MeanSSIM:         resp.MeanSSIM,
			MeanDistance:     resp.MeanDistance,
		}))
		return nil
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(resp)
}

func aggregateRunDir(dir string) (*StatsResponse, error) {
	rows, err := store.ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read run directory %s: %w", dir, err)
	}

	resp := &StatsResponse{
		State: store.ReadRunState(dir).String(),
		Tiles: len(rows),
	}

	// Identity comes from the sidecar; absence is tolerated for runs made
	// by older builds or with a hand-trimmed directory.
	if idx, err := store.ReadSidecar(dir); err == nil {
		resp.RunID = idx.RunID
		resp.Slide = idx.Slide
		resp.Codec = idx.Codec
	}

	if len(rows) == 0 {
		return resp, nil
	}

	resp.MinSSIM = rows[0].SSIM
	for _, row := range rows {
		resp.RawBytes += row.RawBytes
		resp.EncodedBytes += row.EncBytes
		resp.MeanSSIM += row.SSIM
		resp.MeanDistance += row.Distance
		if row.SSIM < resp.MinSSIM {
			resp.MinSSIM = row.SSIM
		}
		if row.Distance > resp.MaxDistance {
			resp.MaxDistance = row.Distance
		}
	}
	n := float64(len(rows))
	resp.MeanSSIM /= n
	resp.MeanDistance /= n
	if resp.EncodedBytes > 0 {
		resp.CompressionRatio = float64(resp.RawBytes) / float64(resp.EncodedBytes)
	}
	return resp, nil
}
