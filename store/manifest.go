package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/histokit/slidepress/iox"
	"github.com/histokit/slidepress/types"
)

// ManifestName is the manifest filename inside a run directory.
const ManifestName = "manifest.csv"

// manifestHeader is the fixed column order of the manifest.
var manifestHeader = []string{
	"tile_id", "x", "y", "w", "h",
	"distance", "ssim",
	"raw_bytes", "enc_bytes", "cr",
	"enc_ms", "dec_ms",
	"relpath",
}

// EncodeManifest renders outcomes as CSV with a header row. Rows are emitted
// in the order given; callers sort by tile id before calling if they want a
// stable manifest across runs.
func EncodeManifest(rows []types.EncodeOutcome) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(manifestHeader); err != nil {
		return nil, fmt.Errorf("write manifest header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.TileID),
			strconv.Itoa(r.X),
			strconv.Itoa(r.Y),
			strconv.Itoa(r.W),
			strconv.Itoa(r.H),
			formatFloat(r.Distance),
			formatFloat(r.SSIM),
			strconv.FormatInt(r.RawBytes, 10),
			strconv.FormatInt(r.EncBytes, 10),
			formatFloat(r.CompressionRatio),
			formatFloat(r.EncodeMs),
			formatFloat(r.DecodeMs),
			r.RelPath,
		}
		if err := w.Write(rec); err != nil {
			return nil, fmt.Errorf("write manifest row %d: %w", r.TileID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteManifest atomically writes the manifest into dir. A run that produced
// zero rows writes nothing; callers decide whether that is an error.
func WriteManifest(dir string, rows []types.EncodeOutcome) (written bool, err error) {
	if len(rows) == 0 {
		return false, nil
	}
	data, err := EncodeManifest(rows)
	if err != nil {
		return false, err
	}
	if err := AtomicWrite(dir+"/"+ManifestName, data); err != nil {
		return false, err
	}
	return true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ReadManifest loads and parses the manifest from dir.
func ReadManifest(dir string) ([]types.EncodeOutcome, error) {
	f, err := os.Open(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer iox.DiscardClose(f)

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("manifest is empty")
	}
	if len(records[0]) != len(manifestHeader) {
		return nil, fmt.Errorf("manifest has %d columns, want %d", len(records[0]), len(manifestHeader))
	}

	rows := make([]types.EncodeOutcome, 0, len(records)-1)
	for i, rec := range records[1:] {
		row, err := parseManifestRow(rec)
		if err != nil {
			return nil, fmt.Errorf("manifest row %d: %w", i+1, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseManifestRow(rec []string) (types.EncodeOutcome, error) {
	var (
		row  types.EncodeOutcome
		err  error
		errs []error
	)
	parseInt := func(s string) int {
		v, e := strconv.Atoi(s)
		if e != nil {
			errs = append(errs, e)
		}
		return v
	}
	parseI64 := func(s string) int64 {
		v, e := strconv.ParseInt(s, 10, 64)
		if e != nil {
			errs = append(errs, e)
		}
		return v
	}
	parseF64 := func(s string) float64 {
		v, e := strconv.ParseFloat(s, 64)
		if e != nil {
			errs = append(errs, e)
		}
		return v
	}

	row.TileID = parseInt(rec[0])
	row.X = parseInt(rec[1])
	row.Y = parseInt(rec[2])
	row.W = parseInt(rec[3])
	row.H = parseInt(rec[4])
	row.Distance = parseF64(rec[5])
	row.SSIM = parseF64(rec[6])
	row.RawBytes = parseI64(rec[7])
	row.EncBytes = parseI64(rec[8])
	row.CompressionRatio = parseF64(rec[9])
	row.EncodeMs = parseF64(rec[10])
	row.DecodeMs = parseF64(rec[11])
	row.RelPath = rec[12]

	if len(errs) > 0 {
		err = errs[0]
	}
	return row, err
}
