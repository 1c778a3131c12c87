package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/smazurov/reframer/internal/encode"
	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/planner"
	"github.com/smazurov/reframer/internal/probe"
	"github.com/smazurov/reframer/internal/scratch"
)

// prepare runs the trim and rotate pre-steps for a source. A failed trim
// is logged and the full source is used; a failed rotation is an error.
func (r *Runner) prepare(ctx context.Context, session *scratch.Session, u Unit, meta *probe.VideoMetadata) (*probe.VideoMetadata, planner.Decision, error) {
	policy := r.cfg.Policy
	logger := r.logger.With("source", u.Rel)

	work := meta
	var decision planner.Decision
	if meta.HasDuration() {
		if trim := policy.DecideTrim(meta.Duration); trim != nil {
			logger.Info("Trimming overlong source", "duration", meta.Duration, "seconds", *trim)
			trimmed, err := r.preStep(ctx, session, u, work, "trim", "", *trim)
			switch {
			case err == nil:
				work = trimmed
				decision.TrimToSeconds = trim
			case ctx.Err() != nil:
				return nil, decision, err
			default:
				logger.Warn("Trim failed, continuing with full source", "error", err)
			}
		}
	}
	if policy.DecideRotation(work.DisplayRatio()) {
		logger.Info("Rotating source clockwise", "ratio", work.DisplayRatio())
		rotated, err := r.preStep(ctx, session, u, work, "rotate", "transpose=1", 0)
		if err != nil {
			return nil, decision, err
		}
		work = rotated
		decision.Rotate = true
	}
	return work, decision, nil
}

// preStep re-encodes src into a scratch intermediate, applying filter (if
// any) and cutting to duration seconds (if positive), then probes the
// result. The intermediate belongs to session and is removed with it.
func (r *Runner) preStep(ctx context.Context, session *scratch.Session, u Unit, src *probe.VideoMetadata, name, filter string, duration float64) (*probe.VideoMetadata, error) {
	stem := strings.TrimSuffix(filepath.Base(u.Source), filepath.Ext(u.Source))
	ext := filepath.Ext(u.Source)
	if ext == "" {
		ext = ".mp4"
	}
	out := session.File(name+"_"+stem, ext)

	job := &encode.Job{
		ID:          u.Rel + ":" + name,
		Input:       src.Path,
		Output:      out,
		VideoFilter: filter,
		Duration:    duration,
		Software:    encoders.PreStep,
		Audio:       ffmpeg.AudioFor(src.HasAudio, src.AudioCodec),
	}
	if _, err := r.encoder.Execute(ctx, job, nil); err != nil {
		return nil, fmt.Errorf("%s pre-step: %w", name, err)
	}

	meta, err := r.prober.Probe(ctx, out)
	if err != nil {
		return nil, fmt.Errorf("%s pre-step: %w", name, err)
	}
	return meta, nil
}

// sourceCache runs the pre-steps of each source once per batch, however
// many presets it is rendered to. Intermediates stay until the last unit
// of the source has finished.
type sourceCache struct {
	mu      sync.Mutex
	entries map[string]*preparedSource
}

type preparedSource struct {
	once     sync.Once
	session  *scratch.Session
	pending  int
	work     *probe.VideoMetadata
	decision planner.Decision
	err      error
}

func (c *sourceCache) reset(dir *scratch.Dir, units []Unit) {
	entries := make(map[string]*preparedSource)
	for _, u := range units {
		e, ok := entries[u.Source]
		if !ok {
			e = &preparedSource{session: dir.Session()}
			entries[u.Source] = e
		}
		e.pending++
	}
	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
}

func (c *sourceCache) get(source string, prepare func(*scratch.Session) (*probe.VideoMetadata, planner.Decision, error)) (*probe.VideoMetadata, planner.Decision, error) {
	c.mu.Lock()
	e, ok := c.entries[source]
	c.mu.Unlock()
	if !ok {
		return nil, planner.Decision{}, fmt.Errorf("source %s not registered for this batch", source)
	}
	e.once.Do(func() {
		e.work, e.decision, e.err = prepare(e.session)
	})
	return e.work, e.decision, e.err
}

// release drops one unit's hold on source. It returns the session to
// clean up when that unit was the last one.
func (c *sourceCache) release(source string) *scratch.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[source]
	if !ok {
		return nil
	}
	e.pending--
	if e.pending > 0 {
		return nil
	}
	return e.session
}
