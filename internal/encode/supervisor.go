package encode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/metrics"
	"github.com/smazurov/reframer/internal/process"
)

const (
	DefaultStallTimeout   = 25 * time.Second
	DefaultTickInterval   = time.Second
	DefaultGracePeriod    = 5 * time.Second
	DefaultMinOutputBytes = 100 * 1024

	tailLines = 20
)

// Options tune a Supervisor. Zero values select the defaults.
type Options struct {
	StallTimeout   time.Duration
	TickInterval   time.Duration
	GracePeriod    time.Duration
	MinOutputBytes int64

	// Budget bounds concurrent hardware encodes by estimated GPU memory.
	Budget *encoders.Budget

	// OnSnapshot receives every complete -progress block.
	OnSnapshot func(jobID string, s ffmpeg.Snapshot)
}

// Supervisor runs encode jobs with stall detection and encoder fallback.
type Supervisor struct {
	launcher process.Launcher
	opts     Options
	logger   *slog.Logger
}

// NewSupervisor creates a supervisor that starts processes via launcher.
func NewSupervisor(launcher process.Launcher, opts Options) *Supervisor {
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = DefaultStallTimeout
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.TickInterval > opts.StallTimeout {
		opts.TickInterval = opts.StallTimeout
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	if opts.MinOutputBytes <= 0 {
		opts.MinOutputBytes = DefaultMinOutputBytes
	}
	return &Supervisor{
		launcher: launcher,
		opts:     opts,
		logger:   logging.GetLogger("encode"),
	}
}

// Execute runs job to completion. Hardware failures and stalls fall back to
// the software profile once; cancellation and output validation failures
// are never retried. On failure the partial output is removed.
func (s *Supervisor) Execute(ctx context.Context, job *Job, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	logger := s.logger.With("job", job.ID)

	hardware := job.Hardware
	if hardware != nil && s.opts.Budget != nil && !s.opts.Budget.Fits(job.GPUEstimate) {
		logger.Info("GPU estimate exceeds budget, using software encoder",
			"estimate", job.GPUEstimate, "limit", s.opts.Budget.Limit())
		hardware = nil
	}

	state := NewRetryState(hardware, job.Software)
	var delivered int64 = -1
	forward := func(p Progress) {
		if p.Frame <= delivered {
			return
		}
		delivered = p.Frame
		if onProgress != nil {
			onProgress(p)
		}
	}

	for {
		profile := state.Profile()
		logger.Info("Starting encode", "encoder", profile.Encoder, "stage", state.Stage, "output", job.Output)

		frames, err := s.runStage(ctx, job, state.Stage, profile, forward)
		if err == nil {
			result, verr := s.validate(job, profile, frames, start, state.FellBack())
			if verr != nil {
				removeOutput(job.Output)
				logger.Error("Encode produced invalid output", "error", verr)
				return nil, verr
			}
			logger.Info("Encode finished", "encoder", profile.Encoder,
				"frames", frames, "bytes", result.OutputBytes, "elapsed", result.Elapsed, "fallback", result.UsedFallback)
			return result, nil
		}

		var stall *StallError
		if errors.As(err, &stall) {
			metrics.Stall(profile.Encoder)
		}
		if !state.Fail(err) {
			removeOutput(job.Output)
			if errors.Is(err, ErrCancelled) {
				logger.Info("Encode cancelled", "encoder", profile.Encoder)
			} else {
				logger.Error("Encode failed", "encoder", profile.Encoder, "attempts", state.Attempts,
					"error", err, "history", errors.Join(state.Failures...))
			}
			return nil, err
		}
		metrics.Fallback(profile.Encoder)
		logger.Warn("Encode failed, falling back", "encoder", profile.Encoder,
			"next", state.Profile().Encoder, "error", err)
	}
}

// runStage runs one attempt, holding GPU budget for hardware stages.
func (s *Supervisor) runStage(ctx context.Context, job *Job, stage Stage, profile ffmpeg.Profile, forward ProgressFunc) (int64, error) {
	if stage == StageHardware && s.opts.Budget != nil {
		release, err := s.opts.Budget.Acquire(ctx, job.GPUEstimate)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		defer release()
	}
	return s.attempt(ctx, job, stage, profile, forward)
}

func (s *Supervisor) attempt(ctx context.Context, job *Job, stage Stage, profile ffmpeg.Profile, forward ProgressFunc) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	args := job.Args(profile)
	s.logger.Debug("Launching ffmpeg", "job", job.ID, "command", ffmpeg.CommandLine("ffmpeg", args))

	child, err := s.launcher.Launch(ctx, job.ID, args)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return 0, &EncodeError{JobID: job.ID, Encoder: profile.Encoder, ExitCode: -1, Err: err}
	}

	var (
		last        int64 = -1
		lastAdvance       = time.Now()
		tail              = make([]string, 0, tailLines)
		parser            = ffmpeg.NewProgressParser()
		lines             = child.Lines()
	)

	handle := func(line string) {
		if snap, done := parser.Feed(line); done && s.opts.OnSnapshot != nil {
			s.opts.OnSnapshot(job.ID, snap)
		}
		if ffmpeg.IsProgressLine(line) {
			// Repeated or lower frame numbers do not count as progress.
			if n, ok := ffmpeg.ParseFrame(line); ok && n > last {
				last = n
				lastAdvance = time.Now()
				forward(Progress{
					JobID:       job.ID,
					Frame:       n,
					TotalFrames: job.TotalFrames,
					Encoder:     profile.Encoder,
					Stage:       stage,
				})
			}
			return
		}
		if len(tail) == tailLines {
			tail = tail[1:]
		}
		tail = append(tail, line)
	}

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			handle(line)

		case err := <-child.Done():
			// Lines is closed before Done fires; buffered output still
			// holds the last progress block and diagnostics.
			if lines != nil {
				for line := range lines {
					handle(line)
				}
			}
			if err != nil {
				return max(last, 0), &EncodeError{
					JobID:    job.ID,
					Encoder:  profile.Encoder,
					ExitCode: process.ExitCode(err),
					Tail:     tail,
					Err:      err,
				}
			}
			return max(last, 0), nil

		case <-ticker.C:
			if time.Since(lastAdvance) < s.opts.StallTimeout {
				continue
			}
			child.Kill()
			process.WaitTimeout(child, s.opts.GracePeriod)
			return max(last, 0), &StallError{
				JobID:     job.ID,
				Encoder:   profile.Encoder,
				LastFrame: max(last, 0),
				Timeout:   s.opts.StallTimeout,
			}

		case <-ctx.Done():
			child.Terminate()
			if exited, _ := process.WaitTimeout(child, s.opts.GracePeriod); !exited {
				s.logger.Warn("ffmpeg ignored termination, killed", "job", job.ID)
			}
			return max(last, 0), fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
	}
}

func (s *Supervisor) validate(job *Job, profile ffmpeg.Profile, frames int64, start time.Time, fellBack bool) (*Result, error) {
	info, err := os.Stat(job.Output)
	if err != nil {
		return nil, &ValidationError{Path: job.Output, Reason: "output missing"}
	}
	if info.Size() == 0 {
		return nil, &ValidationError{Path: job.Output, Reason: "output is empty"}
	}

	result := &Result{
		Success:      true,
		OutputPath:   job.Output,
		OutputBytes:  info.Size(),
		Elapsed:      time.Since(start),
		UsedFallback: fellBack,
		Encoder:      profile.Encoder,
		Frames:       frames,
	}
	if info.Size() < s.opts.MinOutputBytes {
		result.Anomalous = true
		s.logger.Warn("Output smaller than expected", "job", job.ID,
			"bytes", info.Size(), "minimum", s.opts.MinOutputBytes)
	}
	return result, nil
}

func removeOutput(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.GetLogger("encode").Warn("Failed to remove partial output", "path", path, "error", err)
	}
}
