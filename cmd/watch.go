package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/reframer/internal/config"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/pipeline"
)

func newWatchCmd(o *config.Options) *cobra.Command {
	var settle time.Duration
	var skipExisting bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Reframe videos as they appear in the input directory",
		Long: `Processes the input directory once, then keeps watching it and reframes new ` +
			`sources after their size has stopped changing. Edits to the config file apply ` +
			`to the next batch; input and output directories, tools and the encoder are fixed ` +
			`at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, cmd, o, settle, skipExisting)
		},
	}
	cmd.Flags().DurationVar(&settle, "settle", pipeline.DefaultSettle, "How long a new file must stay unchanged before it is processed")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Do not process files already present at startup")
	return cmd
}

// liveOptions holds the options for the next batch.
type liveOptions struct {
	mu   sync.Mutex
	opts config.Options
}

func (l *liveOptions) get() config.Options {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opts
}

func (l *liveOptions) set(o config.Options) {
	l.mu.Lock()
	l.opts = o
	l.mu.Unlock()
}

func watch(ctx context.Context, cmd *cobra.Command, o *config.Options, settle time.Duration, skipExisting bool) error {
	a, err := newApp(ctx, o)
	if err != nil {
		return err
	}
	logger := logging.GetLogger("watch")

	live := &liveOptions{opts: *o}
	status := &runnerStatus{}
	stopServer := a.startStatusServer(o, status)
	defer stopServer()

	// Flags keep their precedence over the reloaded file.
	base := *o
	reload := config.NewConfigWatcher(o.Config, func(path string) (config.Options, error) {
		next := base
		next.Config = path
		if err := config.LoadConfig(&next, cmd); err != nil {
			return config.Options{}, err
		}
		if err := next.Validate(); err != nil {
			return config.Options{}, err
		}
		return next, nil
	}, logger)
	reload.OnReload(func(next config.Options) {
		if err := logging.Initialize(loggingConfig(&next)); err != nil {
			logger.Warn("Failed to apply logging config", "error", err)
		}
		live.set(next)
		logger.Info("Configuration reloaded, applies to the next batch", "presets", next.Presets, "workers", next.Workers)
	})
	if _, statErr := os.Stat(o.Config); statErr == nil {
		if err := reload.Start(); err != nil {
			logger.Warn("Config reload disabled", "error", err)
		}
		defer reload.Stop()
	}

	// Batches from startup and from the watcher never overlap.
	var batchMu sync.Mutex
	handle := func(ctx context.Context, files []string) {
		batchMu.Lock()
		defer batchMu.Unlock()
		opts := live.get()
		runner, err := a.newRunner(ctx, &opts)
		if err != nil {
			logger.Error("Failed to prepare batch", "error", err)
			return
		}
		status.set(runner)

		summary, err := runner.RunFiles(ctx, files)
		if summary != nil {
			printSummary(os.Stdout, summary)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Batch failed", "error", err)
		}
	}

	existing, err := pipeline.Discover(o.InputDir, o.Recursive, o.OutputDir, scratchDir(o))
	if err != nil {
		return err
	}

	watcher := pipeline.NewDirWatcher(pipeline.WatchConfig{
		Dir:       o.InputDir,
		Recursive: o.Recursive,
		Settle:    settle,
		Exclude:   []string{o.OutputDir, scratchDir(o)},
		Bus:       a.bus,
	}, handle)
	watcher.MarkSeen(existing)

	errc := make(chan error, 1)
	go func() { errc <- watcher.Run(ctx) }()

	if !skipExisting && len(existing) > 0 {
		handle(ctx, existing)
	}
	return <-errc
}
