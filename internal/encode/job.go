package encode

import (
	"time"

	"github.com/smazurov/reframer/internal/ffmpeg"
	"github.com/smazurov/reframer/internal/graph"
)

// Job describes a single transcode. It is consumed once by Execute.
type Job struct {
	ID     string
	Input  string
	Output string

	// Graph is the compositing graph; VideoFilter is used for simple
	// pre-steps instead.
	Graph       *graph.Graph
	VideoFilter string

	Duration float64 // seconds for -t, 0 = whole input

	Hardware *ffmpeg.Profile
	Software ffmpeg.Profile

	Audio       ffmpeg.AudioMode
	TotalFrames int64
	GPUEstimate int64 // bytes; 0 skips budgeting
}

// Params returns the ffmpeg parameters of this job for one profile.
func (j *Job) Params(profile ffmpeg.Profile) *ffmpeg.Params {
	p := &ffmpeg.Params{
		Input:       j.Input,
		Output:      j.Output,
		Duration:    j.Duration,
		VideoFilter: j.VideoFilter,
		Profile:     profile,
		Audio:       j.Audio,
		Progress:    ffmpeg.ProgressPipe,
	}
	if j.Graph != nil {
		p.FilterComplex = j.Graph.String()
		p.OutputLabel = j.Graph.Output()
		p.VideoFilter = ""
	}
	return p
}

// Args returns the ffmpeg argument list for one profile.
func (j *Job) Args(profile ffmpeg.Profile) []string {
	return ffmpeg.BuildArgs(j.Params(profile))
}

// Progress is delivered whenever the frame counter of a unit advances.
type Progress struct {
	JobID       string
	Frame       int64
	TotalFrames int64
	Encoder     string
	Stage       Stage
}

// Percent returns completion in [0, 100], or 0 when the total is unknown.
func (p Progress) Percent() float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	return min(100, float64(p.Frame)*100/float64(p.TotalFrames))
}

// ProgressFunc receives progress updates. It runs on the supervisor's
// goroutine and must not block.
type ProgressFunc func(Progress)

// Result summarises a successful encode.
type Result struct {
	Success      bool
	OutputPath   string
	OutputBytes  int64
	Elapsed      time.Duration
	UsedFallback bool
	Encoder      string
	Anomalous    bool
	Frames       int64
}
