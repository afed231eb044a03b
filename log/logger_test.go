package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/histokit/slidepress/types"
)

func TestLogger_CarriesRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&types.RunMeta{RunID: "run-1", Slide: "a.svs"}, &buf)

	logger.Info("mask built", map[string]any{"coverage": 0.4})

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, line)
	}
	if entry["run_id"] != "run-1" || entry["slide"] != "a.svs" {
		t.Errorf("context fields = %v/%v, want run-1/a.svs", entry["run_id"], entry["slide"])
	}
	if entry["message"] != "mask built" {
		t.Errorf("message = %v, want mask built", entry["message"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
}

func TestLogger_LevelsEmitDistinctEntries(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&types.RunMeta{RunID: "r", Slide: "s"}, &buf)

	logger.Debug("d", nil)
	logger.Warn("w", nil)
	logger.Error("e", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, want := range []string{"debug", "warn", "error"} {
		if !strings.Contains(lines[i], `"level":"`+want+`"`) {
			t.Errorf("line %d missing level %q: %s", i, want, lines[i])
		}
	}
}

func TestNop_DiscardsEverything(t *testing.T) {
	logger := Nop()
	logger.Info("ignored", map[string]any{"k": "v"})
	logger.Sugar().Infof("ignored %d", 1)
}

func TestSugar_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&types.RunMeta{RunID: "r", Slide: "s"}, &buf)

	logger.Sugar().Infof("kept %d of %d tiles", 3, 9)
	if !strings.Contains(buf.String(), "kept 3 of 9 tiles") {
		t.Errorf("sugared output missing formatted message: %s", buf.String())
	}
}
