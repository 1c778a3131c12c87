// Package planner decides how a source is reframed: whether it is skipped,
// rotated or trimmed, and the geometry of the background and foreground
// layers on the target canvas. Everything here is pure computation.
package planner

import (
	"fmt"

	"github.com/smazurov/reframer/internal/probe"
)

// FeatherMethod selects how the foreground edge alpha ramp is produced.
type FeatherMethod int

const (
	// FeatherGradient computes alpha analytically per pixel with geq.
	FeatherGradient FeatherMethod = iota
	// FeatherMask blurs a bordered white canvas and merges it as alpha.
	FeatherMask
)

func (m FeatherMethod) String() string {
	switch m {
	case FeatherGradient:
		return "gradient"
	case FeatherMask:
		return "mask"
	default:
		return fmt.Sprintf("feather(%d)", int(m))
	}
}

// ReframePlan carries every decision needed to build the filter graph for
// one (source, preset) unit.
type ReframePlan struct {
	Source        string
	Preset        Preset
	Rotate        bool
	TrimToSeconds *float64
	SourceWidth   int
	SourceHeight  int
	TargetWidth   int
	TargetHeight  int
	Background    BackgroundSpec
	Foreground    ForegroundSpec
	Feather       FeatherMethod
}

// WithFeather returns a copy of the plan using method m.
func (p ReframePlan) WithFeather(m FeatherMethod) *ReframePlan {
	p.Feather = m
	return &p
}

// PlanError reports a unit that cannot be planned.
type PlanError struct {
	Source string
	Preset string
	Reason string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("plan %s [%s]: %s", e.Source, e.Preset, e.Reason)
}

// Decision records the pre-steps that were applied to the working source.
type Decision struct {
	Rotate        bool
	TrimToSeconds *float64
}

// Policy holds the tunable parameters of the planner.
type Policy struct {
	Accepted      []float64
	TrimThreshold float64
	TrimSeconds   float64
	FeatherWidth  int
	BlurSigma     float64
	Rotate        bool
	Trim          bool
}

// DefaultPolicy returns the stock parameters.
func DefaultPolicy() Policy {
	return Policy{
		Accepted:      append([]float64(nil), DefaultAccepted...),
		TrimThreshold: DefaultTrimThreshold,
		TrimSeconds:   DefaultTrimSeconds,
		FeatherWidth:  DefaultFeatherWidth,
		BlurSigma:     DefaultBlurSigma,
		Rotate:        true,
		Trim:          true,
	}
}

// Classify applies Classify with the policy's accepted set.
func (p Policy) Classify(ratio float64) Classification {
	return Classify(ratio, p.Accepted)
}

// SkipUnit reports whether the source already has the preset's ratio.
func (p Policy) SkipUnit(meta *probe.VideoMetadata, preset Preset) bool {
	ratio := preset.Ratio
	if preset.Fixed() {
		ratio = float64(preset.Width) / float64(preset.Height)
	}
	return RatioMatches(meta.DisplayRatio(), ratio)
}

// DecideRotation applies DecideRotation unless rotation is disabled.
func (p Policy) DecideRotation(ratio float64) bool {
	return p.Rotate && DecideRotation(ratio)
}

// DecideTrim applies the policy's threshold unless trimming is disabled.
func (p Policy) DecideTrim(duration float64) *float64 {
	if !p.Trim {
		return nil
	}
	return decideTrim(duration, p.TrimThreshold, p.TrimSeconds)
}

// Plan lays out one unit. meta describes the working source after any
// pre-steps named in decision have run.
func (p Policy) Plan(meta *probe.VideoMetadata, preset Preset, decision Decision) (*ReframePlan, error) {
	fail := func(format string, args ...any) error {
		return &PlanError{Source: meta.Path, Preset: preset.Label, Reason: fmt.Sprintf(format, args...)}
	}

	sw, sh := meta.DisplayWidth(), meta.Height
	if sw <= 0 || sh <= 0 {
		return nil, fail("source has zero area (%dx%d)", sw, sh)
	}

	tw, th := TargetCanvas(sw, preset)
	if tw <= 0 || th <= 0 {
		return nil, fail("target canvas has zero area (%dx%d)", tw, th)
	}

	bg, err := Background(sw, sh, tw, th, p.BlurSigma)
	if err != nil {
		return nil, fail("%v", err)
	}
	fg, err := Foreground(sw, sh, tw, th, p.FeatherWidth)
	if err != nil {
		return nil, fail("%v", err)
	}

	return &ReframePlan{
		Source:        meta.Path,
		Preset:        preset,
		Rotate:        decision.Rotate,
		TrimToSeconds: decision.TrimToSeconds,
		SourceWidth:   sw,
		SourceHeight:  sh,
		TargetWidth:   tw,
		TargetHeight:  th,
		Background:    bg,
		Foreground:    fg,
		Feather:       FeatherGradient,
	}, nil
}

// Plan lays out one unit with DefaultPolicy.
func Plan(meta *probe.VideoMetadata, preset Preset, decision Decision) (*ReframePlan, error) {
	return DefaultPolicy().Plan(meta, preset, decision)
}
