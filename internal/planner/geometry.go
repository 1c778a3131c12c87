package planner

import (
	"fmt"
	"math"
)

const (
	// DefaultFeatherWidth is the foreground edge ramp in pixels.
	DefaultFeatherWidth = 30
	// DefaultBlurSigma is the gblur sigma of the background layer.
	DefaultBlurSigma = 20.0
)

// BackgroundSpec is the full-bleed blurred layer: scale to cover, then crop.
type BackgroundSpec struct {
	ScaleW, ScaleH int
	CropW, CropH   int
	CropX, CropY   int
	BlurSigma      float64
}

// ForegroundSpec is the aspect-preserving layer placed over the background.
type ForegroundSpec struct {
	ScaleW, ScaleH   int
	OffsetX, OffsetY int
	FeatherWidth     int
}

// TargetCanvas resolves the output canvas for a source width.
func TargetCanvas(width int, preset Preset) (int, int) {
	if preset.Fixed() {
		return preset.Width, preset.Height
	}
	if preset.Ratio <= 0 {
		return 0, 0
	}
	w := floorEven(float64(width))
	h := floorEven(math.Round(float64(width) / preset.Ratio))
	return w, h
}

// Background computes the cover layer for a source of sw x sh on a tw x th canvas.
func Background(sw, sh, tw, th int, sigma float64) (BackgroundSpec, error) {
	if err := checkArea(sw, sh, tw, th); err != nil {
		return BackgroundSpec{}, err
	}
	factor := math.Max(float64(tw)/float64(sw), float64(th)/float64(sh))
	w := max(ceilEven(float64(sw)*factor), tw)
	h := max(ceilEven(float64(sh)*factor), th)
	return BackgroundSpec{
		ScaleW:    w,
		ScaleH:    h,
		CropW:     tw,
		CropH:     th,
		CropX:     (w - tw) / 2,
		CropY:     (h - th) / 2,
		BlurSigma: sigma,
	}, nil
}

// Foreground computes the fit layer and clamps the feather width so the
// ramp never covers more than half of the canvas or the layer itself.
func Foreground(sw, sh, tw, th, feather int) (ForegroundSpec, error) {
	if err := checkArea(sw, sh, tw, th); err != nil {
		return ForegroundSpec{}, err
	}
	factor := math.Min(float64(tw)/float64(sw), float64(th)/float64(sh))
	w := min(floorEven(float64(sw)*factor), tw)
	h := min(floorEven(float64(sh)*factor), th)
	if w <= 0 || h <= 0 {
		return ForegroundSpec{}, fmt.Errorf("foreground collapses to %dx%d", w, h)
	}
	return ForegroundSpec{
		ScaleW:       w,
		ScaleH:       h,
		OffsetX:      (tw - w) / 2,
		OffsetY:      (th - h) / 2,
		FeatherWidth: ClampFeather(feather, tw, th, w, h),
	}, nil
}

// ClampFeather keeps feather strictly below half of both the smaller
// canvas dimension and the smaller foreground dimension.
func ClampFeather(feather, tw, th, fw, fh int) int {
	if feather <= 0 {
		return 0
	}
	limit := min(halfBelow(min(tw, th)), halfBelow(min(fw, fh)))
	return max(0, min(feather, limit))
}

// halfBelow is the largest integer strictly less than n/2.
func halfBelow(n int) int {
	return (n - 1) / 2
}

func checkArea(sw, sh, tw, th int) error {
	if sw <= 0 || sh <= 0 {
		return fmt.Errorf("source has zero area (%dx%d)", sw, sh)
	}
	if tw <= 0 || th <= 0 {
		return fmt.Errorf("target has zero area (%dx%d)", tw, th)
	}
	return nil
}

func floorEven(v float64) int {
	n := int(math.Floor(v))
	return n - n%2
}

func ceilEven(v float64) int {
	n := int(math.Ceil(v - 1e-9))
	return n + n%2
}
