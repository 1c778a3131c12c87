package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/smazurov/reframer/internal/encode"
	"github.com/smazurov/reframer/internal/encoders"
	"github.com/smazurov/reframer/internal/planner"
)

// DefaultConfigFile is read when --config is not given.
const DefaultConfigFile = "reframer.toml"

// DefaultPresetSpec is the 1080x1920 vertical canvas.
const DefaultPresetSpec = "9x16=9:16@1080x1920"

// DefaultValidationFile holds the results of validate-encoders.
const DefaultValidationFile = "validated_encoders.toml"

// Options is the full runtime configuration. Tags drive LoadConfig
// (toml path, REFRAMER_ env key, CLI flag name) and Validate.
type Options struct {
	Config string

	InputDir  string `toml:"input.dir" env:"INPUT_DIR" validate:"required"`
	Recursive bool   `toml:"input.recursive" env:"INPUT_RECURSIVE"`

	OutputDir  string `toml:"output.dir" env:"OUTPUT_DIR" validate:"required"`
	ScratchDir string `toml:"output.scratch_dir" env:"SCRATCH_DIR"`
	MinFreeMB  int64  `toml:"output.min_free_mb" env:"MIN_FREE_MB" flag:"min-free-mb" validate:"gte=0"`

	Presets       []string `toml:"reframe.presets" env:"PRESETS" validate:"min=1,dive,preset"`
	Accepted      []string `toml:"reframe.accepted" env:"ACCEPTED" validate:"dive,ratio"`
	Rotate        bool     `toml:"reframe.rotate" env:"ROTATE"`
	Trim          bool     `toml:"reframe.trim" env:"TRIM"`
	TrimThreshold float64  `toml:"reframe.trim_threshold" env:"TRIM_THRESHOLD" validate:"gte=0"`
	TrimSeconds   float64  `toml:"reframe.trim_seconds" env:"TRIM_SECONDS" validate:"gt=0"`
	FeatherWidth  int      `toml:"reframe.feather_width" env:"FEATHER_WIDTH" validate:"gte=0"`
	BlurSigma     float64  `toml:"reframe.blur_sigma" env:"BLUR_SIGMA" validate:"gt=0"`

	Encoder        string        `toml:"encode.encoder" env:"ENCODER" validate:"required"`
	Workers        int           `toml:"encode.workers" env:"WORKERS" validate:"gte=0"` // 0 sizes from host CPUs
	StallTimeout   time.Duration `toml:"encode.stall_timeout" env:"STALL_TIMEOUT" validate:"gt=0"`
	MinOutputBytes int64         `toml:"encode.min_output_bytes" env:"MIN_OUTPUT_BYTES" validate:"gte=0"`
	GPUBudget      int64         `toml:"encode.gpu_budget" env:"GPU_BUDGET" flag:"gpu-budget" validate:"gte=0"`
	ValidationFile string        `toml:"encode.validation_file" env:"VALIDATION_FILE"`

	FFmpegPath      string `toml:"tools.ffmpeg" env:"FFMPEG" flag:"ffmpeg"`
	FFprobePath     string `toml:"tools.ffprobe" env:"FFPROBE" flag:"ffprobe"`
	DiagnosticsFile string `toml:"tools.diagnostics" env:"DIAGNOSTICS_FILE"`

	StatusAddr     string `toml:"status.addr" env:"STATUS_ADDR" validate:"omitempty,hostname_port"`
	StatusUsername string `toml:"status.username" env:"STATUS_USERNAME"`
	StatusPassword string `toml:"status.password" env:"STATUS_PASSWORD"`

	UploadBucket   string `toml:"upload.bucket" env:"UPLOAD_BUCKET"`
	UploadPrefix   string `toml:"upload.prefix" env:"UPLOAD_PREFIX"`
	UploadRegion   string `toml:"upload.region" env:"UPLOAD_REGION"`
	UploadEndpoint string `toml:"upload.endpoint" env:"UPLOAD_ENDPOINT" validate:"omitempty,url"`

	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT" validate:"omitempty,oneof=text json"`
	LogFile       string `toml:"logging.file" env:"LOG_FILE"`
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Config:         DefaultConfigFile,
		InputDir:       "input",
		OutputDir:      "output",
		Presets:        []string{DefaultPresetSpec},
		Accepted:       []string{"9:16", "9:18", "9:15"},
		Rotate:         true,
		Trim:           true,
		TrimThreshold:  planner.DefaultTrimThreshold,
		TrimSeconds:    planner.DefaultTrimSeconds,
		FeatherWidth:   planner.DefaultFeatherWidth,
		BlurSigma:      planner.DefaultBlurSigma,
		Encoder:        "auto",
		Workers:        1,
		StallTimeout:   encode.DefaultStallTimeout,
		MinOutputBytes: encode.DefaultMinOutputBytes,
		GPUBudget:      encoders.DefaultGPUBudget,
		ValidationFile: DefaultValidationFile,
		LoggingLevel:   "info",
		LoggingFormat:  "text",
	}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("preset", func(fl validator.FieldLevel) bool {
			_, err := planner.ParsePreset(fl.Field().String())
			return err == nil
		})
		_ = validate.RegisterValidation("ratio", func(fl validator.FieldLevel) bool {
			_, err := planner.ParseRatio(fl.Field().String())
			return err == nil
		})
	})
	return validate
}

// Validate checks field constraints and preset uniqueness.
func (o *Options) Validate() error {
	if err := getValidator().Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := o.ParsedPresets(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := o.checkScratchDir(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// checkScratchDir rejects a scratch directory that is, or contains, the
// input or output directory.
func (o *Options) checkScratchDir() error {
	if o.ScratchDir == "" {
		return nil
	}
	scratch, err := filepath.Abs(o.ScratchDir)
	if err != nil {
		return fmt.Errorf("scratch-dir: %w", err)
	}
	for _, d := range []struct{ name, path string }{{"input-dir", o.InputDir}, {"output-dir", o.OutputDir}} {
		abs, err := filepath.Abs(d.path)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		if within(abs, scratch) {
			return fmt.Errorf("scratch-dir %s must not be or contain %s %s", o.ScratchDir, d.name, d.path)
		}
	}
	return nil
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ParsedPresets parses the preset strings.
func (o *Options) ParsedPresets() ([]planner.Preset, error) {
	return planner.ParsePresets(o.Presets)
}

// Policy builds the planner policy from the options.
func (o *Options) Policy() (planner.Policy, error) {
	policy := planner.DefaultPolicy()
	if len(o.Accepted) > 0 {
		accepted, err := planner.ParseRatios(o.Accepted)
		if err != nil {
			return planner.Policy{}, err
		}
		policy.Accepted = accepted
	}
	policy.Rotate = o.Rotate
	policy.Trim = o.Trim
	policy.TrimThreshold = o.TrimThreshold
	policy.TrimSeconds = o.TrimSeconds
	policy.FeatherWidth = o.FeatherWidth
	policy.BlurSigma = o.BlurSigma
	return policy, nil
}

// LoadFile loads options from path over the defaults, applies env
// overrides and validates the result. It serves as the Watcher loader.
func LoadFile(path string) (Options, error) {
	opts := DefaultOptions()
	opts.Config = path
	if err := LoadConfig(&opts, nil); err != nil {
		return Options{}, err
	}
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
