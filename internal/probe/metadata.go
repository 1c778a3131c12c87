package probe

import "math"

// VideoMetadata describes one probed source. Values are immutable once
// returned by Probe; callers derive modified copies with Rotated.
type VideoMetadata struct {
	Path              string
	Width             int
	Height            int
	Duration          float64 // seconds, 0 when unknown
	FrameRate         float64
	FrameCount        int64
	HasAudio          bool
	AudioCodec        string
	VideoCodec        string
	SampleAspectRatio float64
	BitRate           int64
}

// DisplayWidth is the width after applying the sample aspect ratio.
func (m VideoMetadata) DisplayWidth() int {
	sar := m.SampleAspectRatio
	if sar <= 0 {
		sar = 1
	}
	return int(math.Round(float64(m.Width) * sar))
}

// DisplayRatio returns width*SAR/height.
func (m VideoMetadata) DisplayRatio() float64 {
	if m.Height <= 0 {
		return 0
	}
	sar := m.SampleAspectRatio
	if sar <= 0 {
		sar = 1
	}
	return float64(m.Width) * sar / float64(m.Height)
}

// HasDuration reports whether the container or stream declared a duration.
func (m VideoMetadata) HasDuration() bool {
	return m.Duration > 0
}

// Rotated returns the metadata a 90 degree transpose would produce.
func (m VideoMetadata) Rotated() VideoMetadata {
	r := m
	r.Width, r.Height = m.Height, m.Width
	if m.SampleAspectRatio > 0 {
		r.SampleAspectRatio = 1 / m.SampleAspectRatio
	}
	return r
}
