// Package ffmpeg turns typed transcode parameters into ffmpeg argument
// lists and parses the progress and log lines ffmpeg emits.
package ffmpeg

// AudioMode selects how the source audio track is carried to the output.
type AudioMode int

const (
	// AudioNone drops audio (source has none).
	AudioNone AudioMode = iota
	// AudioCopy passes the audio stream through untouched.
	AudioCopy
	// AudioAAC re-encodes audio to AAC.
	AudioAAC
)

func (m AudioMode) String() string {
	switch m {
	case AudioCopy:
		return "copy"
	case AudioAAC:
		return "aac"
	default:
		return "none"
	}
}

// DefaultAudioBitrate is used when audio must be re-encoded.
const DefaultAudioBitrate = "128k"

// AudioFor decides the audio policy for a source track.
func AudioFor(hasAudio bool, codec string) AudioMode {
	if !hasAudio {
		return AudioNone
	}
	switch codec {
	case "aac", "mp3", "opus", "ac3":
		return AudioCopy
	default:
		return AudioAAC
	}
}

// Profile carries the video encoder settings of one attempt.
type Profile struct {
	Name      string // display name, e.g. "nvenc"
	Encoder   string // h264_nvenc, libx264, ...
	Hardware  bool
	Preset    string
	Tune      string
	RCMode    string
	Bitrate   string
	MaxRate   string
	CRF       int // 0 = not set
	ExtraArgs []string
}

// Params represents everything needed to generate one ffmpeg invocation.
// Exactly one of FilterComplex or VideoFilter is normally set.
type Params struct {
	Input    string
	Output   string
	Duration float64 // seconds for -t, 0 = whole input

	FilterComplex string
	OutputLabel   string // label mapped from FilterComplex
	VideoFilter   string

	Profile Profile

	Audio        AudioMode
	AudioBitrate string

	// Progress target for -progress; empty disables progress reporting.
	Progress string
	LogLevel string
}
