package planner

import "math"

const (
	// ClassifyTolerance is the absolute ratio distance treated as a match.
	ClassifyTolerance = 0.01

	rotateMin     = 1.0
	rotateMax     = 16.0 / 9.0
	rotateEpsilon = 1e-9

	// DefaultTrimThreshold is the duration above which sources are trimmed.
	DefaultTrimThreshold = 60.0
	// DefaultTrimSeconds is the length trimmed sources are cut to.
	DefaultTrimSeconds = 14.0
)

// DefaultAccepted is the single-target set of ratios left untouched.
var DefaultAccepted = []float64{9.0 / 16.0, 9.0 / 18.0, 9.0 / 15.0}

// Classification is the outcome of comparing a source ratio to the accepted set.
type Classification int

const (
	Process Classification = iota
	Skip
)

func (c Classification) String() string {
	if c == Skip {
		return "skip"
	}
	return "process"
}

// Classify returns Skip when ratio lies within ClassifyTolerance of any
// accepted ratio.
func Classify(ratio float64, accepted []float64) Classification {
	for _, r := range accepted {
		if RatioMatches(ratio, r) {
			return Skip
		}
	}
	return Process
}

// RatioMatches compares two ratios with ClassifyTolerance.
func RatioMatches(a, b float64) bool {
	return math.Abs(a-b) < ClassifyTolerance
}

// DecideRotation reports whether a source of this display ratio should be
// transposed clockwise before reframing: near-square through 16:9.
func DecideRotation(ratio float64) bool {
	return ratio >= rotateMin-rotateEpsilon && ratio <= rotateMax+rotateEpsilon
}

// DecideTrim returns the trim length for an overlong source, or nil.
// A zero duration means unknown and never trims.
func DecideTrim(duration float64) *float64 {
	return decideTrim(duration, DefaultTrimThreshold, DefaultTrimSeconds)
}

func decideTrim(duration, threshold, seconds float64) *float64 {
	if duration > threshold {
		s := seconds
		return &s
	}
	return nil
}
