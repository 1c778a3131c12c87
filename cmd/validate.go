package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/reframer/internal/config"
	"github.com/smazurov/reframer/internal/encoders"
)

func newValidateEncodersCmd(o *config.Options) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "validate-encoders",
		Short: "Test which hardware encoders work on this host",
		Long: `Runs a short test encode with every hardware encoder compiled into ffmpeg and ` +
			`saves the results. Encoders that fail are skipped by --encoder auto.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			t, err := resolveTools(o)
			if err != nil {
				return err
			}
			list, err := encoders.ListEncoders(ctx, t.FFmpeg)
			if err != nil {
				return err
			}
			results, err := encoders.NewValidator(t.FFmpeg).ValidateAll(ctx, list)
			if err != nil {
				return err
			}
			store := encoders.NewStore(o.ValidationFile)
			if err := store.Save(results); err != nil {
				return err
			}
			if !quiet {
				printValidation(os.Stdout, results, store.Path())
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print the results")
	return cmd
}

func printValidation(w io.Writer, r *encoders.ValidationResults, path string) {
	fmt.Fprintf(w, "ffmpeg %s\n", r.FFmpegVersion)
	if len(r.Working) == 0 && len(r.Failed) == 0 {
		fmt.Fprintln(w, "No hardware encoders compiled into ffmpeg")
	}
	if len(r.Working) > 0 {
		fmt.Fprintf(w, "working: %s\n", strings.Join(r.Working, ", "))
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "failed:  %s\n", strings.Join(r.Failed, ", "))
	}
	fmt.Fprintf(w, "Results saved to %s\n", path)
}
