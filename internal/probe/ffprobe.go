package probe

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	defaultFrameRate = 30.0
	notAvailable     = "N/A"
)

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	CodecType         string `json:"codec_type"`
	CodecName         string `json:"codec_name"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	SampleAspectRatio string `json:"sample_aspect_ratio"`
	AvgFrameRate      string `json:"avg_frame_rate"`
	RFrameRate        string `json:"r_frame_rate"`
	Duration          string `json:"duration"`
	NbFrames          string `json:"nb_frames"`
	BitRate           string `json:"bit_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
	BitRate  string `json:"bit_rate"`
}

// Parse converts ffprobe's JSON report into VideoMetadata.
func Parse(path string, data []byte) (*VideoMetadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("decode ffprobe json: %w", err)}
	}

	var video *ffprobeStream
	var audio *ffprobeStream
	for i := range out.Streams {
		s := &out.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}
	if video == nil {
		return nil, &Error{Path: path, Err: ErrNoVideoStream}
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, video.Width, video.Height)}
	}

	meta := &VideoMetadata{
		Path:              path,
		Width:             video.Width,
		Height:            video.Height,
		VideoCodec:        video.CodecName,
		SampleAspectRatio: parseSAR(video.SampleAspectRatio),
		FrameRate:         parseFrameRate(video.AvgFrameRate, video.RFrameRate),
	}

	meta.Duration = parseSeconds(video.Duration)
	if meta.Duration == 0 {
		meta.Duration = parseSeconds(out.Format.Duration)
	}

	if n, err := strconv.ParseInt(video.NbFrames, 10, 64); err == nil && n > 0 {
		meta.FrameCount = n
	} else if meta.Duration > 0 {
		meta.FrameCount = int64(math.Round(meta.Duration * meta.FrameRate))
	}

	meta.BitRate = parseInt(video.BitRate)
	if meta.BitRate == 0 {
		meta.BitRate = parseInt(out.Format.BitRate)
	}

	if audio != nil {
		meta.HasAudio = true
		meta.AudioCodec = audio.CodecName
	}

	return meta, nil
}

// parseSAR reads "N:D"; anything unusable means square pixels.
func parseSAR(s string) float64 {
	num, den, ok := splitRatio(s, ":")
	if !ok || num <= 0 || den <= 0 {
		return 1
	}
	return num / den
}

// parseFrameRate tries each "N/D" candidate in order.
func parseFrameRate(candidates ...string) float64 {
	for _, c := range candidates {
		num, den, ok := splitRatio(c, "/")
		if ok && num > 0 && den > 0 {
			return num / den
		}
	}
	return defaultFrameRate
}

func splitRatio(s, sep string) (float64, float64, bool) {
	if s == "" || s == notAvailable {
		return 0, 0, false
	}
	a, b, found := strings.Cut(s, sep)
	if !found {
		return 0, 0, false
	}
	num, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, false
	}
	den, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, false
	}
	return num, den, true
}

func parseSeconds(s string) float64 {
	if s == "" || s == notAvailable {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
