// Package metrics provides per-run metrics collection for the encoding
// pipeline.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. All increment methods are
// nil-receiver safe so callers can run without a collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Tile outcomes
	TilesStarted int64 `json:"tiles_started"`
	TilesWritten int64 `json:"tiles_written"`
	TilesSkipped int64 `json:"tiles_skipped"`
	TilesErrored int64 `json:"tiles_errored"`

	// Byte accounting over written tiles
	RawBytes     int64 `json:"raw_bytes"`
	EncodedBytes int64 `json:"encoded_bytes"`

	// Search effort over written tiles
	SearchIterations int64 `json:"search_iterations"`
	EncodeMs         int64 `json:"encode_ms"`
	DecodeMs         int64 `json:"decode_ms"`

	// Dimensions (informational, set at construction)
	Codec string `json:"codec"`
	RunID string `json:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	tilesStarted int64
	tilesWritten int64
	tilesSkipped int64
	tilesErrored int64

	rawBytes     int64
	encodedBytes int64

	searchIterations int64
	encodeMs         int64
	decodeMs         int64

	codec string
	runID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(codec, runID string) *Collector {
	return &Collector{codec: codec, runID: runID}
}

// IncTileStarted records a tile entering a worker.
func (c *Collector) IncTileStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tilesStarted++
	c.mu.Unlock()
}

// AddWritten records a written tile with its byte counts and search effort.
func (c *Collector) AddWritten(rawBytes, encBytes, iterations, encodeMs, decodeMs int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tilesWritten++
	c.rawBytes += rawBytes
	c.encodedBytes += encBytes
	c.searchIterations += iterations
	c.encodeMs += encodeMs
	c.decodeMs += decodeMs
	c.mu.Unlock()
}

// IncTileSkipped records an already-done tile.
func (c *Collector) IncTileSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tilesSkipped++
	c.mu.Unlock()
}

// IncTileErrored records a failed tile.
func (c *Collector) IncTileErrored() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.tilesErrored++
	c.mu.Unlock()
}

// Snapshot returns an immutable copy of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		TilesStarted:     c.tilesStarted,
		TilesWritten:     c.tilesWritten,
		TilesSkipped:     c.tilesSkipped,
		TilesErrored:     c.tilesErrored,
		RawBytes:         c.rawBytes,
		EncodedBytes:     c.encodedBytes,
		SearchIterations: c.searchIterations,
		EncodeMs:         c.encodeMs,
		DecodeMs:         c.decodeMs,
		Codec:            c.codec,
		RunID:            c.runID,
	}
}
