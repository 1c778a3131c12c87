package ffmpeg

import (
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[error] Conversion failed!", "error", "Conversion failed!"},
		{"[h264_nvenc @ 0x55d1] [error] OpenEncodeSessionEx failed: out of memory", "error", "[h264_nvenc @ 0x55d1] OpenEncodeSessionEx failed: out of memory"},
		{"[warning] deprecated pixel format", "warning", "deprecated pixel format"},
		{"plain text", "info", "plain text"},
		{"[Parsed_geq_5 @ 0x1] not a level", "info", "[Parsed_geq_5 @ 0x1] not a level"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = %q, %q; want %q, %q", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	if SlogLevel("fatal") != slog.LevelError || SlogLevel("warning") != slog.LevelWarn ||
		SlogLevel("debug") != slog.LevelDebug || SlogLevel("info") != slog.LevelInfo {
		t.Error("unexpected level mapping")
	}
}

func TestLogLine(t *testing.T) {
	level, msg := LogLine("[h264_nvenc @ 0x55] [error] No capable devices found")
	if level != slog.LevelError || msg != "[h264_nvenc @ 0x55] No capable devices found" {
		t.Errorf("LogLine = %v %q", level, msg)
	}
	if level, _ := LogLine("Stream mapping:"); level != slog.LevelInfo {
		t.Errorf("plain line level = %v", level)
	}
}

func TestIsProgressLine(t *testing.T) {
	for line, want := range map[string]bool{
		"frame=10":                 true,
		"stream_0_0_q=28.0":        true,
		"progress=end":             true,
		"[error] bad=thing":        false,
		"Conversion failed!":       false,
		"Press [q] to stop, x=1":   false,
		"out_time=00:00:01.000000": true,
	} {
		if got := IsProgressLine(line); got != want {
			t.Errorf("IsProgressLine(%q) = %v, want %v", line, got, want)
		}
	}
}
