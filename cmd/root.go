// Package cmd holds the reframer command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/smazurov/reframer/internal/config"
	"github.com/smazurov/reframer/internal/logging"
	"github.com/smazurov/reframer/internal/version"
)

// NewRootCmd creates the root command. Flags are shared by every
// subcommand and override REFRAMER_ env vars, which override the config
// file.
func NewRootCmd() *cobra.Command {
	opts := config.DefaultOptions()

	root := &cobra.Command{
		Use:   "reframer",
		Short: "Reframe landscape videos onto vertical canvases",
		Long: `Reframer converts videos to fixed aspect ratio presets by layering the ` +
			`scaled source over a blurred, cropped copy of itself, using ffmpeg for all media work.`,
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadOptions(cmd, &opts)
		},
	}

	bindFlags(root.PersistentFlags(), &opts)

	root.AddCommand(
		newRunCmd(&opts),
		newWatchCmd(&opts),
		newPlanCmd(&opts),
		newValidateEncodersCmd(&opts),
		newSelfUpdateCmd(),
	)
	return root
}

// bindFlags registers one flag per option. Names must match the field
// names ("InputDir" -> "input-dir") or their flag tags so LoadConfig can
// tell which were set.
func bindFlags(fs *pflag.FlagSet, o *config.Options) {
	fs.StringVarP(&o.Config, "config", "c", o.Config, "Path to configuration file")

	fs.StringVarP(&o.InputDir, "input-dir", "i", o.InputDir, "Directory with source videos")
	fs.BoolVarP(&o.Recursive, "recursive", "r", o.Recursive, "Descend into subdirectories of the input directory")
	fs.StringVarP(&o.OutputDir, "output-dir", "o", o.OutputDir, "Directory for reframed outputs")
	fs.StringVar(&o.ScratchDir, "scratch-dir", o.ScratchDir, "Directory for intermediates (default <output-dir>/.reframer-tmp)")
	fs.Int64Var(&o.MinFreeMB, "min-free-mb", o.MinFreeMB, "Refuse to start a batch with less free scratch space (0 disables)")

	fs.StringSliceVarP(&o.Presets, "presets", "p", o.Presets, "Target presets, label=W:H or label=W:H@WxH")
	fs.StringSliceVar(&o.Accepted, "accepted", o.Accepted, "Source ratios that are copied through unchanged")
	fs.BoolVar(&o.Rotate, "rotate", o.Rotate, "Rotate square-ish sources to portrait before reframing")
	fs.BoolVar(&o.Trim, "trim", o.Trim, "Trim long sources")
	fs.Float64Var(&o.TrimThreshold, "trim-threshold", o.TrimThreshold, "Duration in seconds above which sources are trimmed")
	fs.Float64Var(&o.TrimSeconds, "trim-seconds", o.TrimSeconds, "Length of trimmed sources in seconds")
	fs.IntVar(&o.FeatherWidth, "feather-width", o.FeatherWidth, "Foreground edge feather in pixels (0 disables)")
	fs.Float64Var(&o.BlurSigma, "blur-sigma", o.BlurSigma, "Background gaussian blur sigma")

	fs.StringVarP(&o.Encoder, "encoder", "e", o.Encoder, "Hardware encoder: auto, none or an encoder name")
	fs.IntVarP(&o.Workers, "workers", "w", o.Workers, "Concurrent units (0 sizes from host CPUs)")
	fs.DurationVar(&o.StallTimeout, "stall-timeout", o.StallTimeout, "Kill ffmpeg after this long without progress")
	fs.Int64Var(&o.MinOutputBytes, "min-output-bytes", o.MinOutputBytes, "Outputs below this size are reported as anomalous")
	fs.Int64Var(&o.GPUBudget, "gpu-budget", o.GPUBudget, "Estimated GPU memory shared by concurrent hardware encodes (0 disables)")
	fs.StringVar(&o.ValidationFile, "validation-file", o.ValidationFile, "Hardware encoder validation results")

	fs.StringVar(&o.FFmpegPath, "ffmpeg", o.FFmpegPath, "Path to ffmpeg")
	fs.StringVar(&o.FFprobePath, "ffprobe", o.FFprobePath, "Path to ffprobe")
	fs.StringVar(&o.DiagnosticsFile, "diagnostics-file", o.DiagnosticsFile, "JSON file naming the ffmpeg and ffprobe binaries")

	fs.StringVar(&o.StatusAddr, "status-addr", o.StatusAddr, "Serve the status API on this address, e.g. :8090")
	fs.StringVar(&o.StatusUsername, "status-username", o.StatusUsername, "Status API basic auth username")
	fs.StringVar(&o.StatusPassword, "status-password", o.StatusPassword, "Status API basic auth password")

	fs.StringVar(&o.UploadBucket, "upload-bucket", o.UploadBucket, "Upload finished outputs to this S3 bucket")
	fs.StringVar(&o.UploadPrefix, "upload-prefix", o.UploadPrefix, "Key prefix for uploads")
	fs.StringVar(&o.UploadRegion, "upload-region", o.UploadRegion, "S3 region")
	fs.StringVar(&o.UploadEndpoint, "upload-endpoint", o.UploadEndpoint, "S3-compatible endpoint URL")

	fs.StringVar(&o.LoggingLevel, "logging-level", o.LoggingLevel, "Logging level (debug, info, warn, error)")
	fs.StringVar(&o.LoggingFormat, "logging-format", o.LoggingFormat, "Logging format (text, json)")
	fs.StringVar(&o.LogFile, "log-file", o.LogFile, "Also write logs to this file")
}

// loadOptions layers the config file and environment under the flags,
// validates the result and sets up logging.
func loadOptions(cmd *cobra.Command, o *config.Options) error {
	if err := config.LoadConfig(o, cmd); err != nil {
		return err
	}
	if err := o.Validate(); err != nil {
		return err
	}
	if err := logging.Initialize(loggingConfig(o)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

// loggingConfig merges per-module levels from the config file into the
// resolved global settings.
func loggingConfig(o *config.Options) logging.Config {
	cfg := config.LoadLoggingConfig(o.Config)
	cfg.Level = o.LoggingLevel
	cfg.Format = o.LoggingFormat
	cfg.File = o.LogFile
	return cfg
}
