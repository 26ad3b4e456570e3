package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "tariff-api", "info", "json")
	logger.Info("quote_calculated", "hts8", "64039900")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "tariff-api" || entry["hts8"] != "64039900" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewTextAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "tariffctl", "warn", "TEXT")
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "msg=shown") {
		t.Fatalf("expected text handler output, got %s", out)
	}
}
