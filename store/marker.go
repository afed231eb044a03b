package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Run lifecycle marker files. The encoding marker is written before any tile
// work; renaming it to the done marker is the last act of a successful run.
const (
	MarkerEncoding = "ENCODING.marker"
	MarkerDone     = "DONE.marker"
	// markerContent is the body of the in-progress marker.
	markerContent = "encoding"
)

// WriteEncodingMarker creates the in-progress marker in dir.
func WriteEncodingMarker(dir string) error {
	return AtomicWrite(filepath.Join(dir, MarkerEncoding), []byte(markerContent))
}

// FinalizeMarker renames the in-progress marker to the done marker.
func FinalizeMarker(dir string) error {
	from := filepath.Join(dir, MarkerEncoding)
	to := filepath.Join(dir, MarkerDone)
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("finalize run marker: %w", err)
	}
	return nil
}

// RunState describes what the markers say about a run directory.
type RunState int

const (
	// RunStateNew means no marker exists (fresh or foreign directory).
	RunStateNew RunState = iota
	// RunStateInProgress means a prior run was interrupted; per-tile files
	// may exist and a re-invocation will resume around them.
	RunStateInProgress
	// RunStateDone means a prior run completed.
	RunStateDone
)

// ReadRunState inspects dir's markers.
func ReadRunState(dir string) RunState {
	if _, err := os.Stat(filepath.Join(dir, MarkerDone)); err == nil {
		return RunStateDone
	}
	if _, err := os.Stat(filepath.Join(dir, MarkerEncoding)); err == nil {
		return RunStateInProgress
	}
	return RunStateNew
}

// String implements fmt.Stringer.
func (s RunState) String() string {
	switch s {
	case RunStateInProgress:
		return "in-progress"
	case RunStateDone:
		return "done"
	default:
		return "new"
	}
}
