package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/smazurov/reframer/internal/display"
	"github.com/smazurov/reframer/internal/encode"
	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/events"
	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/graph"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/metrics"
	"github.com/smazurov/reframer/internal/planner"
	"github.com/smazurov/reframer/internal/probe"
	"github.com/smazurov/reframer/internal/resources"
	"github.com/smazurov/reframer/internal/scratch"
	"github.com/smazurov/reframer/internal/storage"
)

// Prober reads stream metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.VideoMetadata, error)
}

// Encoder runs one encode job to completion.
type Encoder interface {
	Execute(ctx context.Context, job *encode.Job, onProgress encode.ProgressFunc) (*encode.Result, error)
}

// Config is the resolved configuration of a batch.
type Config struct {
	InputDir   string
	Recursive  bool
	OutputDir  string
	ScratchDir string // defaults to <OutputDir>/.reframer-tmp

	Presets []planner.Preset
	Policy  planner.Policy

	Workers  int
	Hardware *ffmpeg.Profile
	Software ffmpeg.Profile

	// MinFreeDisk is checked on the scratch volume before a batch; 0 disables.
	MinFreeDisk uint64
}

// Option configures a Runner.
type Option func(*Runner)

// WithEvents publishes unit and batch events on bus.
func WithEvents(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithSink publishes finished outputs through sink.
func WithSink(sink storage.Sink) Option {
	return func(r *Runner) { r.sink = sink }
}

// WithProgressBar draws unit progress on bar.
func WithProgressBar(bar *display.ProgressBar) Option {
	return func(r *Runner) {
		if bar != nil {
			r.bar = bar
		}
	}
}

// Runner executes batches of units.
type Runner struct {
	cfg     Config
	prober  Prober
	encoder Encoder
	bus     *events.Bus
	sink    storage.Sink
	bar     *display.ProgressBar
	layout  Layout
	logger  *slog.Logger

	mu       sync.RWMutex
	statuses map[string]*UnitStatus
	order    []string

	probes  probeCache
	sources sourceCache
}

// NewRunner creates a runner. Zero Workers runs one unit at a time.
func NewRunner(cfg Config, prober Prober, encoder Encoder, opts ...Option) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = filepath.Join(cfg.OutputDir, scratch.DirName)
	}
	if len(cfg.Presets) == 0 {
		cfg.Presets = []planner.Preset{planner.DefaultPreset}
	}
	if cfg.Software.Encoder == "" {
		cfg.Software = encoders.Software
	}

	r := &Runner{
		cfg:      cfg,
		prober:   prober,
		encoder:  encoder,
		bar:      display.NewProgressBar(io.Discard, false),
		layout:   Layout{Root: cfg.OutputDir, MultiPreset: len(cfg.Presets) > 1},
		logger:   logging.GetLogger("pipeline"),
		statuses: make(map[string]*UnitStatus),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the runner configuration with defaults applied.
func (r *Runner) Config() Config { return r.cfg }

// Run discovers the input directory and processes every unit.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	files, err := Discover(r.cfg.InputDir, r.cfg.Recursive, r.cfg.OutputDir, r.cfg.ScratchDir)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}
	r.logger.Info("Discovered sources", "count", len(files), "input", r.cfg.InputDir)
	return r.RunFiles(ctx, files)
}

// RunFiles processes files x presets on the worker pool. Unit failures are
// recorded in the summary; the returned error is non-nil only when the
// batch could not start or ctx was cancelled. The scratch directory is
// purged before returning on every path.
func (r *Runner) RunFiles(ctx context.Context, files []string) (*Summary, error) {
	start := time.Now()

	if err := os.MkdirAll(r.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	dir, err := scratch.New(r.cfg.ScratchDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := dir.Purge(); err != nil {
			r.logger.Warn("Failed to purge scratch directory", "error", err)
		}
	}()

	if r.cfg.MinFreeDisk > 0 {
		if err := resources.CheckDisk(ctx, dir.Path(), r.cfg.MinFreeDisk); err != nil {
			return nil, err
		}
	}

	r.probes.reset()
	units := Units(r.cfg.InputDir, files, r.cfg.Presets)
	r.sources.reset(dir, units)
	r.register(units)
	r.bar.SetTotal(len(units))

	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)
	for _, u := range units {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			r.runUnit(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	r.bar.Clear()

	summary := Summarize(r.cfg.OutputDir, r.statusesOf(units), time.Since(start))
	r.bus.Publish(events.BatchFinishedEvent{
		Processed: summary.Processed,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		Anomalous: summary.Anomalous,
		Fallbacks: summary.Fallbacks,
		OutputDir: summary.OutputDir,
		Timestamp: time.Now().Format(time.RFC3339),
	})
	r.logger.Info("Batch finished",
		"processed", summary.Processed,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"anomalous", summary.Anomalous,
		"fallbacks", summary.Fallbacks,
		"elapsed", summary.Elapsed.Round(time.Millisecond),
		"output", summary.OutputDir)

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// runUnit processes one unit and records its final state. The scratch
// files of a source are removed on every path once its last unit is done.
func (r *Runner) runUnit(ctx context.Context, u Unit) {
	start := time.Now()
	logger := r.logger.With("unit", u.ID)
	defer func() {
		if session := r.sources.release(u.Source); session != nil {
			if err := session.Cleanup(); err != nil {
				logger.Warn("Failed to remove scratch files", "error", err)
			}
		}
	}()

	st := UnitStatus{ID: u.ID, Source: u.Source, Preset: u.Preset.Label, Status: StatusRunning}
	status, err := r.process(ctx, u, &st, logger)
	st.Status = status
	st.Elapsed = time.Since(start)
	if err != nil {
		st.Error = err.Error()
	}

	switch status {
	case StatusProcessed:
		if st.Anomalous {
			logger.Warn("Unit processed with suspiciously small output", "output", st.Output)
		} else {
			logger.Info("Unit processed", "output", st.Output, "encoder", st.Encoder, "elapsed", st.Elapsed.Round(time.Millisecond))
		}
	case StatusSkipped:
		logger.Info("Unit skipped, source already has target ratio")
	case StatusCancelled:
		logger.Info("Unit cancelled")
	default:
		logger.Error("Unit failed", "error", err)
	}

	r.update(u.ID, func(s *UnitStatus) {
		frame, total := s.Frame, s.TotalFrames
		*s = st
		s.Frame, s.TotalFrames = max(frame, st.Frame), max(total, st.TotalFrames)
	})
	metrics.UnitFinished(string(status))
	r.bar.UnitDone()
	r.bus.Publish(events.UnitFinishedEvent{
		UnitID:       u.ID,
		Status:       string(status),
		Output:       st.Output,
		Encoder:      st.Encoder,
		UsedFallback: st.UsedFallback,
		Anomalous:    st.Anomalous,
		Error:        st.Error,
		Seconds:      st.Elapsed.Seconds(),
		Timestamp:    time.Now().Format(time.RFC3339),
	})
}

// process runs probe, pre-steps, planning and the final encode. It fills
// st and returns the final status.
func (r *Runner) process(ctx context.Context, u Unit, st *UnitStatus, logger *slog.Logger) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusCancelled, err
	}

	meta, err := r.probes.get(ctx, r.prober, u.Source)
	if err != nil {
		return failure(ctx, err)
	}
	policy := r.cfg.Policy
	if policy.Classify(meta.DisplayRatio()) == planner.Skip || policy.SkipUnit(meta, u.Preset) {
		return StatusSkipped, nil
	}
	r.update(u.ID, func(s *UnitStatus) { s.Status = StatusRunning })

	work, decision, err := r.sources.get(u.Source, func(session *scratch.Session) (*probe.VideoMetadata, planner.Decision, error) {
		return r.prepare(ctx, session, u, meta)
	})
	if err != nil {
		return failure(ctx, err)
	}
	st.Rotated = decision.Rotate
	st.Trimmed = decision.TrimToSeconds != nil

	plan, err := policy.Plan(work, u.Preset, decision)
	if err != nil {
		return StatusFailed, err
	}

	output := r.layout.Output(u)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return StatusFailed, fmt.Errorf("create output directory: %w", err)
	}

	r.bus.Publish(events.UnitStartedEvent{
		UnitID:    u.ID,
		Source:    u.Source,
		Preset:    u.Preset.Label,
		Rotate:    decision.Rotate,
		Trimmed:   st.Trimmed,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	job := &encode.Job{
		ID:          u.ID,
		Input:       work.Path,
		Output:      output,
		Hardware:    r.cfg.Hardware,
		Software:    r.cfg.Software,
		Audio:       ffmpeg.AudioFor(work.HasAudio, work.AudioCodec),
		TotalFrames: totalFrames(work),
		GPUEstimate: encoders.EstimateBytes(work.DisplayWidth(), work.Height, work.FrameRate),
	}
	st.TotalFrames = job.TotalFrames

	metrics.EncodeStarted()
	encodeStart := time.Now()
	result, method, err := r.encode(ctx, job, plan, r.progressFunc(u), logger)
	metrics.EncodeFinished(u.ID)
	st.Feather = method.String()
	if err != nil {
		return failure(ctx, err)
	}
	metrics.EncodeDuration(result.Encoder, time.Since(encodeStart).Seconds())

	st.Output = result.OutputPath
	st.Encoder = result.Encoder
	st.UsedFallback = result.UsedFallback
	st.Anomalous = result.Anomalous
	st.Frame = result.Frames

	if r.sink != nil {
		location, err := r.sink.Publish(ctx, result.OutputPath, r.layout.Key(u))
		if err != nil {
			logger.Warn("Failed to publish output", "output", result.OutputPath, "error", err)
		} else {
			st.Location = location
		}
	}
	return StatusProcessed, nil
}

// encode builds the graph and runs the job. The gradient feather is tried
// first; when it cannot be built, or the encode fails with it, the job is
// rebuilt with the mask feather.
func (r *Runner) encode(ctx context.Context, job *encode.Job, plan *planner.ReframePlan, onProgress encode.ProgressFunc, logger *slog.Logger) (*encode.Result, planner.FeatherMethod, error) {
	method := plan.Feather
	g, err := graph.Build(plan)
	if errors.Is(err, graph.ErrFeatherUnsupported) {
		logger.Info("Gradient feather does not fit, using mask", "error", err)
		method = planner.FeatherMask
		g, err = graph.Build(plan.WithFeather(method))
	}
	if err != nil {
		return nil, method, err
	}

	job.Graph = g
	result, err := r.encoder.Execute(ctx, job, onProgress)
	if err == nil || method != planner.FeatherGradient || !encode.Retryable(err) || ctx.Err() != nil {
		return result, method, err
	}

	logger.Warn("Encode with gradient feather failed, retrying with mask", "error", err)
	method = planner.FeatherMask
	g, berr := graph.Build(plan.WithFeather(method))
	if berr != nil {
		return nil, method, errors.Join(err, berr)
	}
	retry := *job
	retry.Graph = g
	result, err = r.encoder.Execute(ctx, &retry, onProgress)
	return result, method, err
}

// progressFunc records progress in the unit status and fans it out to the
// bus and the terminal line.
func (r *Runner) progressFunc(u Unit) encode.ProgressFunc {
	name := filepath.Base(u.Source)
	if r.layout.MultiPreset {
		name += " [" + u.Preset.Label + "]"
	}
	return func(p encode.Progress) {
		r.update(u.ID, func(s *UnitStatus) {
			s.Frame = p.Frame
			s.TotalFrames = p.TotalFrames
			s.Encoder = p.Encoder
		})
		r.bar.Update(name, p.Frame, p.TotalFrames, p.Percent(), p.Encoder)
		r.bus.Publish(events.UnitProgressEvent{
			UnitID:      u.ID,
			Frame:       p.Frame,
			TotalFrames: p.TotalFrames,
			Percent:     p.Percent(),
			Encoder:     p.Encoder,
		})
	}
}

// failure maps an error to Cancelled when ctx is done, Failed otherwise.
func failure(ctx context.Context, err error) (Status, error) {
	if ctx.Err() != nil || errors.Is(err, encode.ErrCancelled) || errors.Is(err, context.Canceled) {
		return StatusCancelled, err
	}
	return StatusFailed, err
}

// totalFrames prefers the declared frame count and falls back to
// duration x frame rate.
func totalFrames(m *probe.VideoMetadata) int64 {
	if m.FrameCount > 0 {
		return m.FrameCount
	}
	if m.Duration > 0 && m.FrameRate > 0 {
		return int64(math.Round(m.Duration * m.FrameRate))
	}
	return 0
}

// Statuses returns every known unit in registration order.
func (r *Runner) Statuses() []UnitStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UnitStatus, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.statuses[id])
	}
	return out
}

// Status returns one unit by ID.
func (r *Runner) Status(id string) (UnitStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.statuses[id]
	if !ok {
		return UnitStatus{}, false
	}
	return *s, true
}

func (r *Runner) statusesOf(units []Unit) []UnitStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]UnitStatus, 0, len(units))
	for _, u := range units {
		out = append(out, *r.statuses[u.ID])
	}
	return out
}

// register adds units as pending. A unit seen before is reset.
func (r *Runner) register(units []Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range units {
		if _, ok := r.statuses[u.ID]; !ok {
			r.order = append(r.order, u.ID)
		}
		r.statuses[u.ID] = &UnitStatus{ID: u.ID, Source: u.Source, Preset: u.Preset.Label, Status: StatusPending}
	}
}

func (r *Runner) update(id string, fn func(*UnitStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.statuses[id]; ok {
		fn(s)
	}
}

// probeCache probes each file at most once per batch, even when several
// units of the same file run concurrently.
type probeCache struct {
	mu      sync.Mutex
	entries map[string]*probeEntry
}

type probeEntry struct {
	once sync.Once
	meta *probe.VideoMetadata
	err  error
}

func (c *probeCache) reset() {
	c.mu.Lock()
	c.entries = make(map[string]*probeEntry)
	c.mu.Unlock()
}

func (c *probeCache) get(ctx context.Context, p Prober, path string) (*probe.VideoMetadata, error) {
	c.mu.Lock()
	if c.entries == nil {
		c.entries = make(map[string]*probeEntry)
	}
	e, ok := c.entries[path]
	if !ok {
		e = &probeEntry{}
		c.entries[path] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		e.meta, e.err = p.Probe(ctx, path)
	})
	return e.meta, e.err
}
