package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/histokit/slidepress/types"
)

// SidecarName is the binary tile index filename inside a run directory.
const SidecarName = "index.msgpack"

// RunIndex is the machine-readable sidecar written next to the manifest.
// Unlike the manifest it records the full tile plan, including tiles that
// errored, so downstream tooling can reconcile a partial run.
type RunIndex struct {
	RunID  string     `msgpack:"run_id"`
	Slide  string     `msgpack:"slide"`
	Codec  string     `msgpack:"codec"`
	Bounds types.Rect `msgpack:"bounds"`
	// MaskLevel and MaskDownsample describe the mask geometry used for the
	// index; the grid itself is not persisted.
	MaskLevel      int          `msgpack:"mask_level"`
	MaskDownsample float64      `msgpack:"mask_downsample"`
	MaskCoverage   float64      `msgpack:"mask_coverage"`
	Tiles          []types.Tile `msgpack:"tiles"`
}

// WriteSidecar atomically writes the run index into dir.
func WriteSidecar(dir string, idx RunIndex) error {
	data, err := msgpack.Marshal(idx)
	if err != nil {
		return fmt.Errorf("encode run index: %w", err)
	}
	return AtomicWrite(filepath.Join(dir, SidecarName), data)
}

// ReadSidecar loads the run index from dir.
func ReadSidecar(dir string) (RunIndex, error) {
	data, err := os.ReadFile(filepath.Join(dir, SidecarName))
	if err != nil {
		return RunIndex{}, fmt.Errorf("read run index: %w", err)
	}
	var idx RunIndex
	if err := msgpack.Unmarshal(data, &idx); err != nil {
		return RunIndex{}, fmt.Errorf("decode run index: %w", err)
	}
	return idx, nil
}
