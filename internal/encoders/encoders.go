// Package encoders detects the video encoders compiled into ffmpeg,
// chooses the hardware and software profiles used for an encode, and
// budgets GPU memory across concurrent hardware encodes.
package encoders

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// EncoderType represents the type of encoder (video, audio, subtitle).
type EncoderType string

const (
	VideoEncoder    EncoderType = "V"
	AudioEncoder    EncoderType = "A"
	SubtitleEncoder EncoderType = "S"
	Unknown         EncoderType = "?"
)

// Encoder represents an FFmpeg encoder.
type Encoder struct {
	Type        EncoderType `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	HWAccel     bool        `json:"hwaccel"`
}

// EncoderList holds the video encoders reported by ffmpeg.
type EncoderList struct {
	VideoEncoders []Encoder `json:"video_encoders"`
}

// Has reports whether a video encoder is compiled in.
func (l *EncoderList) Has(name string) bool {
	if l == nil {
		return false
	}
	for _, e := range l.VideoEncoders {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Hardware returns the hardware accelerated video encoders.
func (l *EncoderList) Hardware() []Encoder {
	var out []Encoder
	for _, e := range l.VideoEncoders {
		if e.HWAccel {
			out = append(out, e)
		}
	}
	return out
}

var (
	encoderRegex = regexp.MustCompile(`^\s*([VASF\.]{6})\s+(\w+)\s+(.+)$`)
	hwaccelRegex = regexp.MustCompile(`(?i)(nvenc|qsv|amf|vaapi|videotoolbox|vdpau|cuda|dxva2|d3d11va|opencl|vulkan)`)
)

// ListEncoders runs `ffmpeg -hide_banner -encoders` and parses the result.
func ListEncoders(ctx context.Context, ffmpegPath string) (*EncoderList, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("list encoders: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return ParseEncoderOutput(string(output))
}

// ParseEncoderOutput processes the output of `ffmpeg -encoders`.
func ParseEncoderOutput(output string) (*EncoderList, error) {
	result := &EncoderList{VideoEncoders: []Encoder{}}

	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false
	for scanner.Scan() {
		line := scanner.Text()

		// The legend ends with a dashed separator; some builds print
		// "Encoders:" first.
		if !started {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "------") {
				started = true
			}
			continue
		}

		matches := encoderRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		flags, name, description := matches[1], matches[2], matches[3]
		if flags[0] != 'V' {
			continue
		}
		result.VideoEncoders = append(result.VideoEncoders, Encoder{
			Type:        VideoEncoder,
			Name:        name,
			Description: description,
			HWAccel:     hwaccelRegex.MatchString(name) || hwaccelRegex.MatchString(description),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read encoder list: %w", err)
	}
	return result, nil
}

// FFmpegVersion returns the version token of `ffmpeg -version`.
func FFmpegVersion(ctx context.Context, ffmpegPath string) string {
	output, err := exec.CommandContext(ctx, ffmpegPath, "-version").Output()
	if err != nil {
		return "unknown"
	}
	line, _, _ := strings.Cut(string(output), "\n")
	// "ffmpeg version 7.1.1 Copyright ..."
	if parts := strings.Fields(line); len(parts) >= 3 {
		return parts[2]
	}
	return "unknown"
}
