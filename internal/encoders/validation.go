package encoders

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/logging"
)

const (
	testDuration   = 2
	testResolution = "640x480"
	testTimeout    = 20 * time.Second
	// minTestOutput is the smallest test encode accepted as working.
	minTestOutput = 1000
)

// ValidationResults records which hardware encoders produced output on
// this host.
type ValidationResults struct {
	Timestamp      string   `toml:"timestamp" json:"timestamp"`
	FFmpegVersion  string   `toml:"ffmpeg_version" json:"ffmpeg_version"`
	TestDuration   int      `toml:"test_duration" json:"test_duration"`
	TestResolution string   `toml:"test_resolution" json:"test_resolution"`
	Working        []string `toml:"working" json:"working"`
	Failed         []string `toml:"failed" json:"failed"`
}

// IsFailed reports whether encoder failed its last validation.
func (r *ValidationResults) IsFailed(encoder string) bool {
	return r != nil && slices.Contains(r.Failed, encoder)
}

// IsWorking reports whether encoder passed its last validation.
func (r *ValidationResults) IsWorking(encoder string) bool {
	return r != nil && slices.Contains(r.Working, encoder)
}

// ErrNoValidation is returned by Store.Load when nothing was saved yet.
var ErrNoValidation = errors.New("no validation results")

// Store persists ValidationResults as a TOML file.
type Store struct {
	path string
	mu   sync.RWMutex
	last *ValidationResults
}

// NewStore returns a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Save writes results atomically.
func (s *Store) Save(results *ValidationResults) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode validation results: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create validation directory: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write validation results: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace validation results: %w", err)
	}
	s.last = results
	return nil
}

// Load reads results from disk. It returns ErrNoValidation when the file
// does not exist.
func (s *Store) Load() (*ValidationResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoValidation
	}
	if err != nil {
		return nil, fmt.Errorf("read validation results: %w", err)
	}
	var results ValidationResults
	if err := toml.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse validation results: %w", err)
	}
	s.last = &results
	return &results, nil
}

// Current returns the last loaded or saved results, or nil.
func (s *Store) Current() *ValidationResults {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// TestArgs returns the arguments of a short synthetic test encode.
func TestArgs(profile ffmpeg.Profile, output string) []string {
	args := []string{
		"-hide_banner", "-nostats", "-loglevel", "error",
		"-f", "lavfi",
		"-i", fmt.Sprintf("testsrc2=duration=%d:size=%s:rate=30", testDuration, testResolution),
		"-t", fmt.Sprint(testDuration),
		"-c:v", profile.Encoder,
	}
	if profile.Preset != "" {
		args = append(args, "-preset", profile.Preset)
	}
	if profile.Bitrate != "" {
		args = append(args, "-b:v", profile.Bitrate)
	}
	args = append(args, profile.ExtraArgs...)
	return append(args, "-y", output)
}

// Validator runs test encodes against compiled hardware encoders.
type Validator struct {
	ffmpegPath string
	logger     logging.Logger
}

// NewValidator creates a validator using the given ffmpeg binary.
func NewValidator(ffmpegPath string) *Validator {
	return &Validator{ffmpegPath: ffmpegPath, logger: logging.GetLogger("encoders")}
}

// ValidateAll tests every known hardware profile that ffmpeg reports as
// compiled in.
func (v *Validator) ValidateAll(ctx context.Context, list *EncoderList) (*ValidationResults, error) {
	results := &ValidationResults{
		Timestamp:      time.Now().Format(time.RFC3339),
		FFmpegVersion:  FFmpegVersion(ctx, v.ffmpegPath),
		TestDuration:   testDuration,
		TestResolution: testResolution,
		Working:        []string{},
		Failed:         []string{},
	}

	tempDir, err := os.MkdirTemp("", "reframer-encoder-validate")
	if err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for _, profile := range hardwareProfiles {
		if !list.Has(profile.Encoder) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v.logger.Info("Testing encoder", "encoder", profile.Encoder)
		if err := v.Validate(ctx, profile, tempDir); err != nil {
			v.logger.Warn("Encoder failed validation", "encoder", profile.Encoder, "error", err)
			results.Failed = append(results.Failed, profile.Encoder)
			continue
		}
		v.logger.Info("Encoder working", "encoder", profile.Encoder)
		results.Working = append(results.Working, profile.Encoder)
	}
	return results, nil
}

// Validate runs one test encode into dir.
func (v *Validator) Validate(ctx context.Context, profile ffmpeg.Profile, dir string) error {
	ctx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()

	output := filepath.Join(dir, fmt.Sprintf("test_%s.mp4", profile.Encoder))
	cmd := exec.CommandContext(ctx, v.ffmpegPath, TestArgs(profile, output)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("test encode timed out after %s", testTimeout)
		}
		return fmt.Errorf("test encode: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	info, err := os.Stat(output)
	if err != nil || info.Size() <= minTestOutput {
		return fmt.Errorf("output file missing or too small")
	}
	return nil
}
