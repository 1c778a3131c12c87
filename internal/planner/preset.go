package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// Preset names a target canvas. A fixed preset carries explicit dimensions;
// otherwise the canvas is derived from the source width and Ratio.
type Preset struct {
	Label  string
	Ratio  float64 // width / height
	Width  int
	Height int
}

// Fixed reports whether the preset has explicit canvas dimensions.
func (p Preset) Fixed() bool {
	return p.Width > 0 && p.Height > 0
}

func (p Preset) String() string {
	if p.Fixed() {
		return fmt.Sprintf("%s (%dx%d)", p.Label, p.Width, p.Height)
	}
	return fmt.Sprintf("%s (%.4f)", p.Label, p.Ratio)
}

// DefaultPreset is the 1080x1920 vertical canvas.
var DefaultPreset = Preset{Label: "9x16", Ratio: 9.0 / 16.0, Width: 1080, Height: 1920}

// ParsePreset reads "[label=]W:H[@CWxCH]". Examples:
//
//	9:16               ratio-derived, label "9x16"
//	wall=9:20          ratio-derived, label "wall"
//	9x16=9:16@1080x1920 fixed canvas
func ParsePreset(s string) (Preset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Preset{}, fmt.Errorf("empty preset")
	}

	label, body, hasLabel := strings.Cut(s, "=")
	if !hasLabel {
		body = label
		label = ""
	}
	body = strings.TrimSpace(body)

	ratioPart, canvasPart, hasCanvas := strings.Cut(body, "@")
	w, h, err := parsePair(ratioPart, ":")
	if err != nil {
		return Preset{}, fmt.Errorf("preset %q: ratio: %w", s, err)
	}

	p := Preset{Label: strings.TrimSpace(label), Ratio: float64(w) / float64(h)}
	if p.Label == "" {
		p.Label = fmt.Sprintf("%dx%d", w, h)
	}

	if hasCanvas {
		cw, ch, err := parsePair(canvasPart, "x")
		if err != nil {
			return Preset{}, fmt.Errorf("preset %q: canvas: %w", s, err)
		}
		if cw%2 != 0 || ch%2 != 0 {
			return Preset{}, fmt.Errorf("preset %q: canvas dimensions must be even", s)
		}
		p.Width, p.Height = cw, ch
	}
	return p, nil
}

// ParsePresets parses every entry, rejecting duplicate labels.
func ParsePresets(specs []string) ([]Preset, error) {
	presets := make([]Preset, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		p, err := ParsePreset(s)
		if err != nil {
			return nil, err
		}
		if seen[p.Label] {
			return nil, fmt.Errorf("duplicate preset label %q", p.Label)
		}
		seen[p.Label] = true
		presets = append(presets, p)
	}
	return presets, nil
}

// ParseRatio accepts "W:H", "W/H" or a decimal.
func ParseRatio(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, sep := range []string{":", "/"} {
		if strings.Contains(s, sep) {
			w, h, err := parsePair(s, sep)
			if err != nil {
				return 0, fmt.Errorf("ratio %q: %w", s, err)
			}
			return float64(w) / float64(h), nil
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("ratio %q: not a positive number", s)
	}
	return v, nil
}

// ParseRatios parses a list of ratios.
func ParseRatios(specs []string) ([]float64, error) {
	out := make([]float64, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRatio(s)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parsePair(s, sep string) (int, int, error) {
	a, b, ok := strings.Cut(strings.TrimSpace(s), sep)
	if !ok {
		return 0, 0, fmt.Errorf("expected two values separated by %q", sep)
	}
	x, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.Atoi(strings.TrimSpace(b))
	if err != nil {
		return 0, 0, err
	}
	if x <= 0 || y <= 0 {
		return 0, 0, fmt.Errorf("values must be positive")
	}
	return x, y, nil
}
