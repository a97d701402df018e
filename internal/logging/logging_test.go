package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Tiliavir/diary-migrate/internal/logging"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{" WARN ", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"chatty", zapcore.InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := logging.ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "migrate.log")

	logger, closeFn, err := logging.New(logging.Options{Level: "warn", Console: &console, File: file})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("hidden on console", zap.String("date", "2022-01-01"))
	logger.Warn("image missing", zap.String("name", "20220101_a.jpg"))
	closeFn()

	out := console.String()
	if strings.Contains(out, "hidden on console") {
		t.Errorf("console shows debug output: %q", out)
	}
	if !strings.Contains(out, "image missing") || !strings.Contains(out, "20220101_a.jpg") {
		t.Errorf("console = %q", out)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("file lines = %d, want 2: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("file line is not JSON: %v", err)
	}
	if rec["msg"] != "image missing" || rec["name"] != "20220101_a.jpg" {
		t.Errorf("record = %v", rec)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, _, err := logging.New(logging.Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestShouldColorize(t *testing.T) {
	if logging.ShouldColorize(&bytes.Buffer{}) {
		t.Error("buffers are never terminals")
	}
	f, err := os.Create(filepath.Join(t.TempDir(), "out.log"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if logging.ShouldColorize(f) {
		t.Error("regular files are never terminals")
	}
}
