package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type fakeRunner struct {
	out  []byte
	err  error
	name string
	args []string
}

func (f *fakeRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	f.name = name
	f.args = args
	return f.out, f.err
}

func TestProberInvokesFFprobe(t *testing.T) {
	runner := &fakeRunner{out: []byte(`{"streams":[{"codec_type":"video","width":1000,"height":1000}],"format":{"duration":"90"}}`)}
	p := NewProberWithRunner("/opt/ffmpeg/bin/ffprobe", runner)

	meta, err := p.Probe(context.Background(), "/videos/square.mp4")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if runner.name != "/opt/ffmpeg/bin/ffprobe" {
		t.Errorf("ran %q", runner.name)
	}
	want := []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", "/videos/square.mp4"}
	if !slices.Equal(runner.args, want) {
		t.Errorf("args = %v, want %v", runner.args, want)
	}
	if meta.Duration != 90 || meta.Path != "/videos/square.mp4" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestProberRunFailure(t *testing.T) {
	runner := &fakeRunner{err: &runError{err: errors.New("exit status 1"), stderr: "moov atom not found"}}
	p := NewProberWithRunner("ffprobe", runner)

	_, err := p.Probe(context.Background(), "broken.mp4")
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *probe.Error, got %v", err)
	}
	if perr.Output != "moov atom not found" {
		t.Errorf("Output = %q", perr.Output)
	}
}

func TestProberCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProberWithRunner("ffprobe", &fakeRunner{err: errors.New("signal: killed")})

	if _, err := p.Probe(ctx, "a.mp4"); !errors.Is(err, context.Canceled) {
		t.Errorf("Probe() error = %v, want context.Canceled", err)
	}
}

func TestProberWithScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\necho '{\"streams\":[{\"codec_type\":\"video\",\"width\":1920,\"height\":1080}],\"format\":{}}'\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	meta, err := NewProber(script).Probe(context.Background(), "clip.mov")
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if meta.Width != 1920 || meta.Height != 1080 {
		t.Errorf("dims = %dx%d", meta.Width, meta.Height)
	}
}

func TestProberScriptFailureCapturesStderr(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "ffprobe")
	body := "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := NewProber(script).Probe(context.Background(), "junk.avi")
	var perr *Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected *probe.Error, got %v", err)
	}
	if perr.Output != "Invalid data found when processing input" {
		t.Errorf("Output = %q", perr.Output)
	}
}
