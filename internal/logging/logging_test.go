package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger_WritesConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "scraper.log")

	logger, closer, err := newLogger(&console, "debug", path)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Str("name", "Ann Lee").Msg("saved attendee")
	logger.Debug().Msg("texts before scroll")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(console.String(), "saved attendee") {
		t.Fatalf("console: %q", console.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file lines: %d", len(lines))
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if entry["name"] != "Ann Lee" || entry["level"] != "info" {
		t.Fatalf("entry: %v", entry)
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := newLogger(&console, "warn", "")
	if err != nil {
		t.Fatal(err)
	}
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	if strings.Contains(console.String(), "hidden") || !strings.Contains(console.String(), "shown") {
		t.Fatalf("console: %q", console.String())
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, _, err := newLogger(&bytes.Buffer{}, "loud", ""); err == nil {
		t.Fatal("expected error")
	}
}
