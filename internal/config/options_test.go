package config

import (
	"strings"
	"testing"
	"time"

	"github.com/smazurov/reframer/internal/planner"
)

func TestDefaultOptionsValid(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	presets, err := opts.ParsedPresets()
	if err != nil {
		t.Fatal(err)
	}
	if len(presets) != 1 || presets[0] != planner.DefaultPreset {
		t.Errorf("presets = %+v, want default", presets)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Options)
		wantErr string
	}{
		{"bad preset", func(o *Options) { o.Presets = []string{"nonsense"} }, "preset"},
		{"no presets", func(o *Options) { o.Presets = nil }, "min"},
		{"duplicate labels", func(o *Options) { o.Presets = []string{"9:16", "9:16"} }, "duplicate"},
		{"bad ratio", func(o *Options) { o.Accepted = []string{"tall"} }, "ratio"},
		{"negative workers", func(o *Options) { o.Workers = -1 }, "Workers"},
		{"zero stall timeout", func(o *Options) { o.StallTimeout = 0 }, "StallTimeout"},
		{"bad log level", func(o *Options) { o.LoggingLevel = "loud" }, "LoggingLevel"},
		{"bad status addr", func(o *Options) { o.StatusAddr = "nowhere" }, "StatusAddr"},
		{"missing input", func(o *Options) { o.InputDir = "" }, "InputDir"},
		{"status addr ok", func(o *Options) { o.StatusAddr = "127.0.0.1:8090" }, ""},
		{"feather zero ok", func(o *Options) { o.FeatherWidth = 0 }, ""},
		{"scratch is input", func(o *Options) { o.ScratchDir = o.InputDir }, "scratch-dir"},
		{"scratch above output", func(o *Options) { o.OutputDir = "work/out"; o.ScratchDir = "work" }, "scratch-dir"},
		{"scratch under output ok", func(o *Options) { o.ScratchDir = "output/tmp" }, ""},
		{"scratch elsewhere ok", func(o *Options) { o.ScratchDir = "/var/tmp/reframer" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			err := opts.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.Accepted = []string{"9:16", "4:5"}
	opts.Rotate = false
	opts.TrimSeconds = 10
	opts.FeatherWidth = 12

	policy, err := opts.Policy()
	if err != nil {
		t.Fatal(err)
	}
	if len(policy.Accepted) != 2 || policy.Accepted[1] != 0.8 {
		t.Errorf("Accepted = %v", policy.Accepted)
	}
	if policy.Rotate || !policy.Trim || policy.TrimSeconds != 10 || policy.FeatherWidth != 12 {
		t.Errorf("policy = %+v", policy)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[output]
dir = "/srv/out"

[reframe]
presets = ["9x16=9:16@1080x1920", "4x5=4:5@1080x1350"]

[encode]
encoder = "none"
stall_timeout = "10s"
`)
	opts, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if opts.OutputDir != "/srv/out" || opts.Encoder != "none" || opts.StallTimeout != 10*time.Second {
		t.Errorf("opts = %+v", opts)
	}
	if opts.InputDir != "input" {
		t.Errorf("default input dir lost: %q", opts.InputDir)
	}
	if len(opts.Presets) != 2 {
		t.Errorf("presets = %v", opts.Presets)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "[reframe]\npresets = [\"9:0\"]\n")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected validation error")
	}
}
