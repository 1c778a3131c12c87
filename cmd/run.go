package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/reframer/internal/config"
)

// ErrUnitsFailed is returned by run when at least one unit failed, so the
// process exits non-zero.
var ErrUnitsFailed = errors.New("some units failed")

func newRunCmd(o *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reframe every video in the input directory",
		Long: `Discovers the input directory, probes each source and encodes one output per ` +
			`preset. Sources that already match an accepted ratio are skipped. Failed units ` +
			`do not stop the batch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, o)
		},
	}
}

func runBatch(ctx context.Context, o *config.Options) error {
	a, err := newApp(ctx, o)
	if err != nil {
		return err
	}
	runner, err := a.newRunner(ctx, o)
	if err != nil {
		return err
	}

	status := &runnerStatus{}
	status.set(runner)
	stopServer := a.startStatusServer(o, status)
	defer stopServer()

	summary, err := runner.Run(ctx)
	if summary != nil {
		printSummary(os.Stdout, summary)
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Warn("Batch interrupted")
		}
		return err
	}
	if summary.Failed > 0 {
		return ErrUnitsFailed
	}
	return nil
}
