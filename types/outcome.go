package types

// EncodeOutcome is one manifest row: the result of encoding a single tile.
// Rows accumulate in completion order, which is unordered with respect to
// tile id; consumers must treat the manifest as a set unless sorted.
type EncodeOutcome struct {
	TileID int `json:"tile_id"`
	X      int `json:"x"`
	Y      int `json:"y"`
	W      int `json:"w"`
	H      int `json:"h"`
	// Distance is the chosen codec quality-distance parameter.
	Distance float64 `json:"distance"`
	// SSIM is the structural similarity achieved by the chosen candidate.
	SSIM float64 `json:"ssim"`
	// RawBytes is w*h*3 for 8-bit RGB.
	RawBytes int64 `json:"raw_bytes"`
	// EncBytes is the size of the chosen compressed blob.
	EncBytes int64 `json:"enc_bytes"`
	// CompressionRatio is RawBytes/EncBytes.
	CompressionRatio float64 `json:"cr"`
	// EncodeMs and DecodeMs are timings of the chosen candidate only,
	// not of every search probe.
	EncodeMs float64 `json:"enc_ms"`
	DecodeMs float64 `json:"dec_ms"`
	// RelPath is the output file path relative to the run directory.
	RelPath string `json:"relpath"`
}

// TileStatus classifies how a tile left the worker pool.
type TileStatus string

const (
	// TileWritten means the tile was encoded and its output file written.
	TileWritten TileStatus = "written"
	// TileSkipped means the output file already existed (resumed run).
	TileSkipped TileStatus = "skipped"
	// TileErrored means the worker failed; the run continues without it.
	TileErrored TileStatus = "errored"
)

// RunSummary is the aggregate result of one pipeline invocation.
type RunSummary struct {
	RunID   string `json:"run_id"`
	Slide   string `json:"slide"`
	Tiles   int    `json:"tiles"`
	Written int    `json:"written"`
	Skipped int    `json:"skipped"`
	Errors  int    `json:"errors"`
	// OutputDir is the absolute run directory path.
	OutputDir string `json:"output_dir"`
	// ManifestWritten reports whether a manifest file was produced.
	// False when zero rows accumulated (e.g. a fully skipped re-run).
	ManifestWritten bool  `json:"manifest_written"`
	DurationMs      int64 `json:"duration_ms"`
}
