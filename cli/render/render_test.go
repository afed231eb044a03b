package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/histokit/slidepress/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{"json lowercase", "json", FormatJSON, false},
		{"json uppercase", "JSON", FormatJSON, false},
		{"table", "table", FormatTable, false},
		{"yaml", "yaml", FormatYAML, false},
		{"empty", "", "", false},
		{"invalid", "xml", "", true},
		{"invalid with message", "csv", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat_InvalidErrorMessage(t *testing.T) {
	_, err := ParseFormat("xml")
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "json, table, or yaml") {
		t.Errorf("error message should mention valid formats, got: %v", err)
	}
}

func TestRenderer_JSONSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, false, &buf)

	summary := types.RunSummary{RunID: "run-1", Tiles: 12, Written: 12}
	if err := r.Render(summary); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, `"run_id": "run-1"`) {
		t.Errorf("JSON output missing run_id: %s", got)
	}
	if !strings.Contains(got, `"written": 12`) {
		t.Errorf("JSON output missing written count: %s", got)
	}
}

func TestRenderer_YAMLSummary(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, false, &buf)

	if err := r.Render(map[string]int{"tiles": 5}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "tiles: 5") {
		t.Errorf("YAML output unexpected: %s", buf.String())
	}
}

func TestRenderer_TableStruct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	summary := types.RunSummary{RunID: "run-2", Slide: "a.svs", Tiles: 4, Written: 3, Errors: 1}
	if err := r.Render(summary); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	got := buf.String()
	for _, want := range []string{"run_id:", "run-2", "slide:", "a.svs", "errors:"} {
		if !strings.Contains(got, want) {
			t.Errorf("table output missing %q:\n%s", want, got)
		}
	}
}

func TestRenderer_TableSlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	rows := []types.EncodeOutcome{
		{TileID: 0, X: 0, Y: 0, W: 512, H: 512, Distance: 2.5, SSIM: 0.95},
		{TileID: 1, X: 512, Y: 0, W: 512, H: 512, Distance: 1.25, SSIM: 0.96},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("table has %d lines, want header + 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "tile_id") {
		t.Errorf("header = %q, want json tag names", lines[0])
	}
	if !strings.Contains(lines[2], "1.25") {
		t.Errorf("row = %q, want distance value", lines[2])
	}
}

func TestRenderer_TableEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, true, &buf)

	if err := r.Render([]types.EncodeOutcome{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("empty slice output = %q", buf.String())
	}
}

func TestRenderer_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(Format("csv"), false, &buf)
	if err := r.Render(struct{}{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
