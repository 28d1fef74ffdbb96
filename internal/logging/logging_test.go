package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerWithConfig_PhaseFile(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2025, 3, 15, 17, 15, 0, 0, time.UTC)
	path := PhaseLogPath(dir, "exit", at)
	if filepath.Base(path) != "trade_exit_2025-03-15_17-15-00.log" {
		t.Fatalf("PhaseLogPath() = %s", path)
	}

	logger := NewLoggerWithConfig(LogConfig{Level: "info", File: true, Dir: dir, MaxSize: 1}, path)
	phaseLogger := WithPhase(logger, "exit")
	phaseLogger.Info().Msg("snapshot evaluated")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	for _, want := range []string{`"phase":"exit"`, "snapshot evaluated"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("log file missing %s: %s", want, data)
		}
	}
}
