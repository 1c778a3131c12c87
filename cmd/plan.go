package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/reframer/internal/config"
	"github.com/smazurov/reframer/internal/pipeline"
	"github.com/smazurov/reframer/internal/probe"
)

func newPlanCmd(o *config.Options) *cobra.Command {
	var showGraph bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the reframe plan of every unit without encoding",
		Long: `Probes the input directory and prints, per source and preset, whether the unit ` +
			`would be skipped, rotated or trimmed, the canvas geometry and the ffmpeg filter graph.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			t, err := resolveTools(o)
			if err != nil {
				return err
			}
			cfg, err := runnerConfig(ctx, o, nil)
			if err != nil {
				return err
			}
			runner := pipeline.NewRunner(cfg, probe.NewProber(t.FFprobe), nil)

			files, err := pipeline.Discover(o.InputDir, o.Recursive, o.OutputDir, scratchDir(o))
			if err != nil {
				return err
			}
			planned, err := runner.Plan(ctx, files)
			if err != nil {
				return err
			}
			printPlan(os.Stdout, planned, showGraph)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showGraph, "graph", "g", true, "Print the filter graph of each unit")
	return cmd
}

func printPlan(w io.Writer, planned []pipeline.PlannedUnit, showGraph bool) {
	if len(planned) == 0 {
		fmt.Fprintln(w, "No sources found")
		return
	}
	for _, pu := range planned {
		fmt.Fprintf(w, "%s -> %s\n", pu.Unit.ID, pu.Output)
		switch {
		case pu.Err != nil:
			fmt.Fprintf(w, "  error: %v\n", pu.Err)
			continue
		case pu.Skip:
			fmt.Fprintln(w, "  skip: source already has an accepted ratio")
			continue
		}

		p := pu.Plan
		fmt.Fprintf(w, "  source %dx%d, canvas %dx%d, feather %s\n",
			p.SourceWidth, p.SourceHeight, p.TargetWidth, p.TargetHeight, p.Feather)
		if p.Rotate {
			fmt.Fprintln(w, "  rotate: 90 degrees clockwise")
		}
		if p.TrimToSeconds != nil {
			fmt.Fprintf(w, "  trim: first %gs\n", *p.TrimToSeconds)
		}
		fmt.Fprintf(w, "  background: scale %dx%d crop %dx%d+%d+%d blur %g\n",
			p.Background.ScaleW, p.Background.ScaleH,
			p.Background.CropW, p.Background.CropH, p.Background.CropX, p.Background.CropY,
			p.Background.BlurSigma)
		fmt.Fprintf(w, "  foreground: scale %dx%d at %d,%d feather %dpx\n",
			p.Foreground.ScaleW, p.Foreground.ScaleH,
			p.Foreground.OffsetX, p.Foreground.OffsetY, p.Foreground.FeatherWidth)
		if showGraph && pu.Graph != nil {
			fmt.Fprintf(w, "  graph: %s\n", pu.Graph.String())
		}
	}
}
