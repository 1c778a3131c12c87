package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/smazurov/reframer/internal/api"
	"github.com/smazurov/reframer/internal/config"
	"github.com/smazurov/reframer/internal/display"
	"github.com/smazurov/reframer/internal/encode"
	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/events"
	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/metrics"
	"github.com/smazurov/reframer/internal/pipeline"
	"github.com/smazurov/reframer/internal/probe"
	"github.com/smazurov/reframer/internal/process"
	"github.com/smazurov/reframer/internal/resources"
	"github.com/smazurov/reframer/internal/scratch"
	"github.com/smazurov/reframer/internal/storage"
	"github.com/smazurov/reframer/internal/tools"
	"github.com/smazurov/reframer/internal/version"
)

// app holds the long-lived collaborators shared by run and watch.
type app struct {
	prober     *probe.Prober
	registry   *process.Registry
	supervisor *encode.Supervisor
	store      *encoders.Store
	hardware   *ffmpeg.Profile
	bus        *events.Bus
	sink       storage.Sink
	logger     *slog.Logger
}

// resolveTools finds ffmpeg and ffprobe next to the working directory, the
// executable, or on PATH.
func resolveTools(o *config.Options) (*tools.Tools, error) {
	var dirs []string
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return tools.Resolve(tools.Options{
		FFmpeg:          o.FFmpegPath,
		FFprobe:         o.FFprobePath,
		DiagnosticsFile: o.DiagnosticsFile,
		SearchDirs:      dirs,
	})
}

// selectHardware picks the hardware profile for o.Encoder, skipping
// encoders that failed a previous validation run.
func selectHardware(ctx context.Context, o *config.Options, t *tools.Tools, store *encoders.Store, logger *slog.Logger) (*ffmpeg.Profile, error) {
	if o.Encoder == encoders.ModeNone {
		return nil, nil
	}
	if _, err := store.Load(); err != nil && !errors.Is(err, encoders.ErrNoValidation) {
		logger.Warn("Failed to load encoder validation results", "path", store.Path(), "error", err)
	}
	list, err := encoders.ListEncoders(ctx, t.FFmpeg)
	if err != nil {
		logger.Warn("Failed to list ffmpeg encoders, using software encoding", "error", err)
		return nil, nil
	}
	profile, ok, err := encoders.Select(o.Encoder, list, store.Current())
	if err != nil {
		return nil, err
	}
	if !ok {
		logger.Info("No hardware encoder available, using software encoding", "encoder", encoders.Software.Encoder)
		return nil, nil
	}
	logger.Info("Selected hardware encoder", "encoder", profile.Encoder, "fallback", encoders.Software.Encoder)
	return &profile, nil
}

func newApp(ctx context.Context, o *config.Options) (*app, error) {
	logger := logging.GetLogger("main")

	t, err := resolveTools(o)
	if err != nil {
		return nil, err
	}

	store := encoders.NewStore(o.ValidationFile)
	hardware, err := selectHardware(ctx, o, t, store, logger)
	if err != nil {
		return nil, err
	}

	registry := process.NewRegistry(func(id string, oldState, newState process.State, err error) {
		logger.Debug("ffmpeg state changed", "job_id", id, "from", oldState, "to", newState, "error", err)
	})
	launcher := &process.Exec{
		Binary:        t.FFmpeg,
		Logger:        logging.GetLogger("process"),
		ProcessLogger: logging.GetLogger("ffmpeg"),
		LogParser:     ffmpeg.LogLine,
		Registry:      registry,
	}
	supervisor := encode.NewSupervisor(launcher, encode.Options{
		StallTimeout:   o.StallTimeout,
		MinOutputBytes: o.MinOutputBytes,
		Budget:         encoders.NewBudget(o.GPUBudget),
		OnSnapshot:     metrics.ObserveSnapshot,
	})

	a := &app{
		prober:     probe.NewProber(t.FFprobe),
		registry:   registry,
		supervisor: supervisor,
		store:      store,
		hardware:   hardware,
		bus:        events.New(),
		logger:     logger,
	}

	if o.UploadBucket != "" {
		sink, err := storage.NewS3Sink(ctx, storage.S3Config{
			Bucket:   o.UploadBucket,
			Region:   o.UploadRegion,
			Prefix:   o.UploadPrefix,
			Endpoint: o.UploadEndpoint,
		})
		if err != nil {
			return nil, err
		}
		a.sink = sink
		logger.Info("Uploading outputs", "bucket", o.UploadBucket, "prefix", o.UploadPrefix)
	}
	return a, nil
}

// scratchDir returns the effective scratch directory.
func scratchDir(o *config.Options) string {
	if o.ScratchDir != "" {
		return o.ScratchDir
	}
	return filepath.Join(o.OutputDir, scratch.DirName)
}

// runnerConfig maps options onto a batch configuration.
func runnerConfig(ctx context.Context, o *config.Options, hardware *ffmpeg.Profile) (pipeline.Config, error) {
	presets, err := o.ParsedPresets()
	if err != nil {
		return pipeline.Config{}, err
	}
	policy, err := o.Policy()
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		InputDir:    o.InputDir,
		Recursive:   o.Recursive,
		OutputDir:   o.OutputDir,
		ScratchDir:  o.ScratchDir,
		Presets:     presets,
		Policy:      policy,
		Workers:     resources.Workers(ctx, o.Workers),
		Hardware:    hardware,
		Software:    encoders.Software,
		MinFreeDisk: uint64(o.MinFreeMB) * 1024 * 1024,
	}, nil
}

func (a *app) newRunner(ctx context.Context, o *config.Options) (*pipeline.Runner, error) {
	cfg, err := runnerConfig(ctx, o, a.hardware)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{
		pipeline.WithEvents(a.bus),
		pipeline.WithProgressBar(display.NewStdoutProgressBar()),
	}
	if a.sink != nil {
		opts = append(opts, pipeline.WithSink(a.sink))
	}
	return pipeline.NewRunner(cfg, a.prober, a.supervisor, opts...), nil
}

// runnerStatus serves the status of whichever runner is current. Watch
// mode swaps runners when the config file changes.
type runnerStatus struct {
	mu     sync.RWMutex
	runner *pipeline.Runner
}

func (s *runnerStatus) set(r *pipeline.Runner) {
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
}

func (s *runnerStatus) get() *pipeline.Runner {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runner
}

func (s *runnerStatus) Statuses() []pipeline.UnitStatus {
	if r := s.get(); r != nil {
		return r.Statuses()
	}
	return nil
}

func (s *runnerStatus) Status(id string) (pipeline.UnitStatus, bool) {
	if r := s.get(); r != nil {
		return r.Status(id)
	}
	return pipeline.UnitStatus{}, false
}

// startStatusServer serves the status API when an address is configured.
// The returned stop function is always safe to call.
func (a *app) startStatusServer(o *config.Options, status api.StatusProvider) func() {
	if o.StatusAddr == "" {
		return func() {}
	}
	server := api.NewServer(&api.Options{
		AuthUsername:      o.StatusUsername,
		AuthPassword:      o.StatusPassword,
		Version:           version.Version,
		OutputDir:         o.OutputDir,
		Status:            status,
		Registry:          a.registry,
		EventBus:          a.bus,
		Encoders:          a.store,
		Hardware:          a.hardware,
		Software:          encoders.Software,
		PrometheusHandler: metrics.Handler(),
	})
	go func() {
		if err := server.Start(o.StatusAddr); err != nil {
			a.logger.Error("Status API server failed", "error", err)
		}
	}()
	return func() {
		if err := server.Stop(); err != nil {
			a.logger.Error("Error stopping status API server", "error", err)
		}
	}
}

// printSummary writes the end-of-batch report.
func printSummary(w io.Writer, s *pipeline.Summary) {
	fmt.Fprintf(w, "\nBatch finished in %s: %d units\n", display.FormatDuration(s.Elapsed), s.Total())
	fmt.Fprintf(w, "  processed: %d\n", s.Processed)
	fmt.Fprintf(w, "  skipped:   %d\n", s.Skipped)
	fmt.Fprintf(w, "  failed:    %d\n", s.Failed)
	if s.Cancelled > 0 {
		fmt.Fprintf(w, "  cancelled: %d\n", s.Cancelled)
	}
	if s.Fallbacks > 0 {
		fmt.Fprintf(w, "  software fallbacks: %d\n", s.Fallbacks)
	}
	for _, u := range s.Units {
		switch {
		case u.Status == pipeline.StatusFailed:
			fmt.Fprintf(w, "  FAILED %s: %s\n", u.ID, u.Error)
		case u.Anomalous:
			fmt.Fprintf(w, "  WARNING %s: output is suspiciously small\n", u.ID)
		}
	}
	fmt.Fprintf(w, "Outputs in %s\n", s.OutputDir)
}
