// Package probe reads stream metadata from media files with ffprobe.
package probe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/smazurov/reframer/internal/logging"
)

// CommandRunner executes a command and returns its stdout.
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &runError{err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return out, nil
}

type runError struct {
	err    error
	stderr string
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

// Prober probes files with a fixed ffprobe binary.
type Prober struct {
	ffprobe string
	runner  CommandRunner
}

// NewProber returns a Prober that executes the given ffprobe binary.
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobe: ffprobePath, runner: execRunner{}}
}

// NewProberWithRunner returns a Prober backed by a custom runner.
func NewProberWithRunner(ffprobePath string, runner CommandRunner) *Prober {
	return &Prober{ffprobe: ffprobePath, runner: runner}
}

// Args returns the ffprobe arguments used for path.
func Args(path string) []string {
	return []string{"-v", "error", "-print_format", "json", "-show_format", "-show_streams", path}
}

// Probe runs ffprobe on path and parses the result.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoMetadata, error) {
	logger := logging.GetLogger("probe")

	out, err := p.runner.Output(ctx, p.ffprobe, Args(path)...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		perr := &Error{Path: path, Err: err}
		var re *runError
		if errors.As(err, &re) {
			perr.Output = re.stderr
		}
		return nil, perr
	}

	meta, err := Parse(path, out)
	if err != nil {
		return nil, err
	}
	logger.Debug("Probed source",
		"path", path,
		"width", meta.Width,
		"height", meta.Height,
		"fps", meta.FrameRate,
		"duration", meta.Duration,
		"audio", meta.AudioCodec)
	return meta, nil
}
