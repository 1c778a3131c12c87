package graph

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/smazurov/reframer/internal/planner"
)

// SourceLabel is the ffmpeg label of the first input's video stream.
const SourceLabel = "0:v"

var (
	// ErrFeatherUnsupported is returned when the gradient ramp cannot fit
	// the foreground; callers rebuild with planner.FeatherMask.
	ErrFeatherUnsupported = errors.New("gradient feather does not fit foreground")
	// ErrInvalidPlan is returned for plans with non-positive geometry.
	ErrInvalidPlan = errors.New("invalid reframe plan")
)

// Build produces the compositing graph for plan. It performs no I/O and is
// deterministic for equal plans.
func Build(plan *planner.ReframePlan) (*Graph, error) {
	if err := checkPlan(plan); err != nil {
		return nil, err
	}
	fg := plan.Foreground
	if plan.Feather == planner.FeatherGradient && !gradientFits(fg) {
		return nil, fmt.Errorf("%w: feather %d on %dx%d", ErrFeatherUnsupported, fg.FeatherWidth, fg.ScaleW, fg.ScaleH)
	}

	b := &builder{}
	bgSrc, fgSrc := b.newLabel("bgsrc"), b.newLabel("fgsrc")
	b.add("split", []Arg{pos(2)}, []string{SourceLabel}, bgSrc, fgSrc)

	bgOut := background(b, bgSrc, plan.Background)

	var fgOut string
	switch plan.Feather {
	case planner.FeatherGradient:
		fgOut = gradientForeground(b, fgSrc, fg)
	case planner.FeatherMask:
		fgOut = maskForeground(b, fgSrc, fg)
	default:
		return nil, fmt.Errorf("%w: unknown feather method %v", ErrInvalidPlan, plan.Feather)
	}

	composed := b.newLabel("comp")
	b.add("overlay", []Arg{
		kv("x", fg.OffsetX),
		kv("y", fg.OffsetY),
		kv("shortest", 1),
		kv("format", "auto"),
	}, []string{bgOut, fgOut}, composed)

	formatted := b.chain(composed, "fmt", "format", pos("yuv420p"))
	out := b.newLabel("out")
	b.add("setsar", []Arg{pos(1)}, []string{formatted}, out)

	return b.graph(out), nil
}

func background(b *builder, in string, bg planner.BackgroundSpec) string {
	scaled := b.chain(in, "bgscale", "scale", pos(bg.ScaleW), pos(bg.ScaleH))
	cropped := b.chain(scaled, "bgcrop", "crop", pos(bg.CropW), pos(bg.CropH), pos(bg.CropX), pos(bg.CropY))
	return b.chain(cropped, "bg", "gblur", kv("sigma", formatFloat(bg.BlurSigma)))
}

// gradientForeground ramps alpha linearly from 0 at each edge to 1 at
// FeatherWidth pixels inside.
func gradientForeground(b *builder, in string, fg planner.ForegroundSpec) string {
	scaled := b.chain(in, "fgscale", "scale", pos(fg.ScaleW), pos(fg.ScaleH))
	rgba := b.chain(scaled, "fgrgba", "format", pos("rgba"))
	return b.chain(rgba, "fg", "geq",
		kv("r", "'r(X,Y)'"),
		kv("g", "'g(X,Y)'"),
		kv("b", "'b(X,Y)'"),
		kv("a", "'"+alphaRamp(fg.FeatherWidth)+"*255'"),
	)
}

func alphaRamp(f int) string {
	return fmt.Sprintf("if(lt(X,%[1]d),X/%[1]d,if(gt(X,W-%[1]d),(W-X)/%[1]d,if(lt(Y,%[1]d),Y/%[1]d,if(gt(Y,H-%[1]d),(H-Y)/%[1]d,1))))", f)
}

// maskForeground draws black borders on a white canvas, blurs them into a
// soft edge and merges the result as the foreground alpha plane.
func maskForeground(b *builder, in string, fg planner.ForegroundSpec) string {
	scaled := b.chain(in, "fgscale", "scale", pos(fg.ScaleW), pos(fg.ScaleH))
	withAlpha := b.chain(scaled, "fgyuva", "format", pos("yuva420p"))

	f := fg.FeatherWidth
	canvas := b.newLabel("mask")
	b.add("color", []Arg{
		kv("c", "white"),
		kv("s", fmt.Sprintf("%dx%d", fg.ScaleW, fg.ScaleH)),
	}, nil, canvas)

	mask := canvas
	if f > 0 {
		borders := [][4]string{
			{"0", "0", "iw", strconv.Itoa(f)},
			{"0", "ih-" + strconv.Itoa(f), "iw", strconv.Itoa(f)},
			{"0", "0", strconv.Itoa(f), "ih"},
			{"iw-" + strconv.Itoa(f), "0", strconv.Itoa(f), "ih"},
		}
		for _, box := range borders {
			mask = b.chain(mask, "mask", "drawbox",
				kv("x", box[0]),
				kv("y", box[1]),
				kv("w", box[2]),
				kv("h", box[3]),
				kv("t", "fill"),
				kv("c", "black"),
			)
		}
		mask = b.chain(mask, "mask", "boxblur", pos(f), pos(1))
	}
	gray := b.chain(mask, "alpha", "format", pos("gray"))

	out := b.newLabel("fg")
	b.add("alphamerge", nil, []string{withAlpha, gray}, out)
	return out
}

func gradientFits(fg planner.ForegroundSpec) bool {
	f := fg.FeatherWidth
	return f > 0 && 2*f < fg.ScaleW && 2*f < fg.ScaleH
}

func checkPlan(plan *planner.ReframePlan) error {
	if plan == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidPlan)
	}
	bg, fg := plan.Background, plan.Foreground
	switch {
	case plan.TargetWidth <= 0 || plan.TargetHeight <= 0:
		return fmt.Errorf("%w: target %dx%d", ErrInvalidPlan, plan.TargetWidth, plan.TargetHeight)
	case bg.ScaleW <= 0 || bg.ScaleH <= 0 || bg.CropW <= 0 || bg.CropH <= 0:
		return fmt.Errorf("%w: background %+v", ErrInvalidPlan, bg)
	case fg.ScaleW <= 0 || fg.ScaleH <= 0:
		return fmt.Errorf("%w: foreground %+v", ErrInvalidPlan, fg)
	case fg.OffsetX < 0 || fg.OffsetY < 0:
		return fmt.Errorf("%w: negative foreground offset", ErrInvalidPlan)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
