package logging

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func resetState(t *testing.T) {
	t.Helper()
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	moduleSinks = make(map[string]*sinkRef)
	isInitialized = false
	globalConfig = Config{}
	mutex.Unlock()
	t.Cleanup(func() { _ = Close() })
}

func TestModuleLevelOverride(t *testing.T) {
	resetState(t)

	if err := Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"encode":   "debug",
			"pipeline": "warn",
		},
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"encode", true, true, true},
		{"pipeline", false, false, true},
		{"probe", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
}

type failingHandler struct{ slog.Handler }

func (failingHandler) Handle(context.Context, slog.Record) error { return errors.New("disk full") }

func TestMultiHandlerKeepsGoingAfterSinkError(t *testing.T) {
	rb := NewRingBuffer(4)
	failing := failingHandler{slog.NewTextHandler(io.Discard, nil)}
	h := NewMultiHandler(failing, NewBufferHandler(rb, slog.LevelInfo))

	r := slog.NewRecord(time.Now(), slog.LevelWarn, "output below size floor", 0)
	r.AddAttrs(slog.String("unit", "clip.mp4#9x16"))
	err := h.Handle(context.Background(), r)
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("err = %v, want the sink error", err)
	}
	entries := rb.ReadAll()
	if len(entries) != 1 || entries[0].Unit != "clip.mp4#9x16" {
		t.Errorf("buffer = %+v", entries)
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState(t)

	loggerBefore := GetLogger("encode")
	handlerBefore := loggerBefore.Handler()

	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	if err := Initialize(Config{
		Level:   "info",
		Modules: map[string]string{"encode": "debug"},
	}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if loggerAfter := GetLogger("encode"); loggerBefore != loggerAfter {
		t.Error("Logger should be cached - same pointer before and after Initialize")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Cached logger should have debug enabled after Initialize updates LevelVar")
	}
}

func TestCachedLoggerPicksUpFileSink(t *testing.T) {
	resetState(t)

	logger := GetLogger("scratch").With("unit", "clip.mp4")

	path := filepath.Join(t.TempDir(), "logs", "run.log")
	if err := Initialize(Config{Level: "info", File: path}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	logger.Info("scratch purged")
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	for _, want := range []string{"scratch purged", "module=scratch", "unit=clip.mp4"} {
		if !strings.Contains(out, want) {
			t.Errorf("log file missing %q: %s", want, out)
		}
	}
}

func TestBufferReceivesModuleRecords(t *testing.T) {
	resetState(t)

	if err := Initialize(Config{Level: "debug"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	before := GetBuffer().Count()
	GetLogger("planner").Debug("canvas resolved", "width", 1080)

	entries := GetBuffer().ReadAll()
	if len(entries) != before+1 && len(entries) != defaultBufferSize {
		t.Fatalf("buffer grew from %d to %d, want one entry", before, len(entries))
	}
	last := entries[len(entries)-1]
	if last.Module != "planner" {
		t.Errorf("Module = %q, want planner", last.Module)
	}
	if last.Message != "canvas resolved" {
		t.Errorf("Message = %q", last.Message)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			if tt.isNil {
				if got != nil {
					t.Errorf("parseLevel(%q) = %v, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("parseLevel(%q) = nil, want %v", tt.input, tt.want)
			}
			if *got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, *got, tt.want)
			}
		})
	}
}
