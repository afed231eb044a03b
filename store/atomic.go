// Package store handles the durable output of a run: atomic file writes,
// the run lifecycle marker, the CSV manifest, and the sidecar tile index.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/histokit/slidepress/iox"
)

// AtomicWrite writes data to path so that observers only ever see either no
// file or the complete file: a same-directory temp file is written, synced
// to durable storage, and renamed over the final path.
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		iox.RemoveQuiet(tmpName)
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		iox.DiscardClose(tmp)
		iox.RemoveQuiet(tmpName)
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		iox.RemoveQuiet(tmpName)
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		iox.RemoveQuiet(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
