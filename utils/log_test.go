package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"trace":    TRACE,
		"DEBUG":    DEBUG,
		" info ":   INFO,
		"warning":  WARN,
		"warn":     WARN,
		"error":    ERROR,
		"critical": CRITICAL,
		"bogus":    INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConsoleLoggerFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewConsoleLogger(&buf, WARN)

	log.Info("hidden %d", 1)
	log.Warn("shown %d", 2)
	if log.Enabled(DEBUG) || !log.Enabled(ERROR) {
		t.Fatalf("Enabled mismatch at WARN")
	}

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("INFO written at WARN: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown 2") {
		t.Fatalf("missing WARN line: %q", out)
	}

	log.SetMinLevel(TRACE)
	log.Trace("now visible")
	if !strings.Contains(buf.String(), "[TRACE] now visible") {
		t.Fatalf("SetMinLevel ignored: %q", buf.String())
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node.log")
	var console bytes.Buffer
	log, err := NewFileLogger(path, INFO, &console)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	log.Error("tx id=0x%X failed", 0x100)
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[ERROR] tx id=0x100 failed") {
		t.Fatalf("file log = %q", data)
	}
	if console.String() != string(data) {
		t.Fatalf("console and file differ: %q vs %q", console.String(), data)
	}
}
