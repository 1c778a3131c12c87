package ffmpeg

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// ProgressPipe writes machine-readable progress to stdout.
	ProgressPipe = "pipe:1"
	// DefaultLogLevel prefixes every diagnostic with its level.
	DefaultLogLevel = "level+warning"
)

// BuildArgs builds the ffmpeg argument list (without the binary) for p.
func BuildArgs(p *Params) []string {
	args := []string{"-y", "-hide_banner", "-nostats"}

	if p.Progress != "" {
		args = append(args, "-progress", p.Progress)
	}
	logLevel := p.LogLevel
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	args = append(args, "-loglevel", logLevel)

	args = append(args, "-i", p.Input)

	if p.Duration > 0 {
		args = append(args, "-t", strconv.FormatFloat(p.Duration, 'f', -1, 64))
	}

	switch {
	case p.FilterComplex != "":
		args = append(args, "-filter_complex", p.FilterComplex)
		label := p.OutputLabel
		if label == "" {
			label = "out"
		}
		args = append(args, "-map", "["+label+"]")
	case p.VideoFilter != "":
		args = append(args, "-vf", p.VideoFilter, "-map", "0:v:0")
	default:
		args = append(args, "-map", "0:v:0")
	}

	args = append(args, profileArgs(p.Profile)...)

	switch p.Audio {
	case AudioCopy:
		args = append(args, "-map", "0:a?", "-c:a", "copy")
	case AudioAAC:
		bitrate := p.AudioBitrate
		if bitrate == "" {
			bitrate = DefaultAudioBitrate
		}
		args = append(args, "-map", "0:a?", "-c:a", "aac", "-b:a", bitrate)
	}

	if SupportsFastStart(p.Output) {
		args = append(args, "-movflags", "+faststart")
	}

	return append(args, p.Output)
}

func profileArgs(pr Profile) []string {
	args := []string{"-c:v", pr.Encoder}
	if pr.Preset != "" {
		args = append(args, "-preset", pr.Preset)
	}
	if pr.Tune != "" {
		args = append(args, "-tune", pr.Tune)
	}
	if pr.RCMode != "" {
		args = append(args, "-rc:v", pr.RCMode)
	}
	if pr.Bitrate != "" {
		args = append(args, "-b:v", pr.Bitrate)
	}
	if pr.MaxRate != "" {
		args = append(args, "-maxrate:v", pr.MaxRate)
	}
	if pr.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(pr.CRF))
	}
	return append(args, pr.ExtraArgs...)
}

// SupportsFastStart reports whether the output container takes +faststart.
func SupportsFastStart(output string) bool {
	switch strings.ToLower(filepath.Ext(output)) {
	case ".mp4", ".mov", ".m4v":
		return true
	}
	return false
}

// CommandLine renders args for logging, quoting anything with spaces or
// filter punctuation.
func CommandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " ;'[]") {
			parts = append(parts, fmt.Sprintf("%q", a))
			continue
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
