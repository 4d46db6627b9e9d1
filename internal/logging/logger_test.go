package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rickgao/bidask-recorder/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "recorder.log")

	logger, closer, err := New(config.LoggingConfig{
		Level:      "info",
		Format:     "json",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("hidden line")
	logger.Info("snapshot stored", "symbol", "HASH-USD")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"snapshot stored"`) {
		t.Errorf("log file missing info line: %s", out)
	}
	if !strings.Contains(out, `"symbol":"HASH-USD"`) {
		t.Errorf("log file missing attribute: %s", out)
	}
	if strings.Contains(out, "hidden line") {
		t.Errorf("debug line written at info level: %s", out)
	}
}

func TestNew_NoFile(t *testing.T) {
	logger, closer, err := New(config.LoggingConfig{Format: "text"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
	if err := closer.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}
