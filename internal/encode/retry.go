package encode

import "github.com/smazurov/reframer/internal/ffmpeg"

// Stage is a state of the encoder retry machine.
type Stage int

const (
	StageHardware Stage = iota
	StageSoftware
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageHardware:
		return "hardware"
	case StageSoftware:
		return "software"
	default:
		return "failed"
	}
}

// RetryState walks Hardware -> Software -> Failed. Each failed attempt
// advances one stage; there is no other transition.
type RetryState struct {
	Stage    Stage
	Attempts int
	hardware *ffmpeg.Profile
	software ffmpeg.Profile
	Failures []error
}

// NewRetryState starts at the hardware stage when a hardware profile is
// given, otherwise directly at software.
func NewRetryState(hardware *ffmpeg.Profile, software ffmpeg.Profile) *RetryState {
	s := &RetryState{Stage: StageSoftware, software: software}
	if hardware != nil {
		s.Stage = StageHardware
		s.hardware = hardware
	}
	return s
}

// Profile returns the encoder profile of the current stage.
func (s *RetryState) Profile() ffmpeg.Profile {
	if s.Stage == StageHardware {
		return *s.hardware
	}
	return s.software
}

// Fail records a failed attempt and advances. It returns false once the
// machine has reached StageFailed or err must not be retried.
func (s *RetryState) Fail(err error) bool {
	s.Attempts++
	s.Failures = append(s.Failures, err)
	if !Retryable(err) {
		s.Stage = StageFailed
		return false
	}
	switch s.Stage {
	case StageHardware:
		s.Stage = StageSoftware
		return true
	default:
		s.Stage = StageFailed
		return false
	}
}

// FellBack reports whether a hardware attempt failed before the current one.
func (s *RetryState) FellBack() bool {
	return s.hardware != nil && s.Stage == StageSoftware
}
