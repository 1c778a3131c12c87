package encoders

import (
	"fmt"

	"github.com/smazurov/reframer/internal/ffmpeg"
)

// Hardware modes accepted by Select.
const (
	ModeAuto = "auto"
	ModeNone = "none"
)

// Software is the fallback profile for the final encode.
var Software = ffmpeg.Profile{
	Name:    "software",
	Encoder: "libx264",
	Preset:  "veryfast",
	CRF:     23,
}

// PreStep is used for the trim and rotate intermediates.
var PreStep = ffmpeg.Profile{
	Name:    "prestep",
	Encoder: "libx264",
	Preset:  "fast",
	CRF:     23,
}

// hardwareProfiles lists supported accelerators in preference order.
var hardwareProfiles = []ffmpeg.Profile{
	{
		Name:     "nvenc",
		Encoder:  "h264_nvenc",
		Hardware: true,
		Preset:   "p4",
		Tune:     "hq",
		RCMode:   "vbr",
		Bitrate:  "10M",
		MaxRate:  "15M",
	},
	{
		Name:      "qsv",
		Encoder:   "h264_qsv",
		Hardware:  true,
		Preset:    "veryfast",
		Bitrate:   "10M",
		MaxRate:   "15M",
		ExtraArgs: []string{"-pix_fmt", "nv12"},
	},
	{
		Name:     "videotoolbox",
		Encoder:  "h264_videotoolbox",
		Hardware: true,
		Bitrate:  "10M",
		MaxRate:  "15M",
	},
}

// HardwareProfiles returns a copy of the known hardware profiles.
func HardwareProfiles() []ffmpeg.Profile {
	out := make([]ffmpeg.Profile, len(hardwareProfiles))
	copy(out, hardwareProfiles)
	return out
}

// ProfileFor returns the hardware profile for an encoder name.
func ProfileFor(encoder string) (ffmpeg.Profile, bool) {
	for _, p := range hardwareProfiles {
		if p.Encoder == encoder || p.Name == encoder {
			return p, true
		}
	}
	return ffmpeg.Profile{}, false
}

// Select picks the hardware profile for mode: "none" disables hardware,
// "auto" takes the first compiled accelerator not marked failed by a
// previous validation run, and any other value names a profile or encoder
// explicitly. The boolean is false when no hardware profile applies.
func Select(mode string, list *EncoderList, validated *ValidationResults) (ffmpeg.Profile, bool, error) {
	switch mode {
	case ModeNone:
		return ffmpeg.Profile{}, false, nil
	case "", ModeAuto:
		for _, p := range hardwareProfiles {
			if !list.Has(p.Encoder) {
				continue
			}
			if validated != nil && validated.IsFailed(p.Encoder) {
				continue
			}
			return p, true, nil
		}
		return ffmpeg.Profile{}, false, nil
	default:
		p, ok := ProfileFor(mode)
		if !ok {
			return ffmpeg.Profile{}, false, fmt.Errorf("unknown hardware encoder %q", mode)
		}
		if list != nil && !list.Has(p.Encoder) {
			return ffmpeg.Profile{}, false, fmt.Errorf("encoder %s is not compiled into ffmpeg", p.Encoder)
		}
		return p, true, nil
	}
}
