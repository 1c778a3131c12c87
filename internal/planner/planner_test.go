package planner

import (
	"errors"
	"testing"

	"github.com/smazurov/reframer/internal/probe"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		ratio    float64
		accepted []float64
		want     Classification
	}{
		{"exact 9:16", 9.0 / 16, DefaultAccepted, Skip},
		{"within tolerance", 0.5625 + 0.009, DefaultAccepted, Skip},
		{"outside tolerance", 0.5625 + 0.011, DefaultAccepted, Process},
		{"9:18", 0.5, DefaultAccepted, Skip},
		{"9:15", 0.6, DefaultAccepted, Skip},
		{"landscape default set", 16.0 / 9, DefaultAccepted, Process},
		{"landscape dual set", 1920.0 / 1080, []float64{9.0 / 16, 16.0 / 9}, Skip},
		{"empty set", 9.0 / 16, nil, Process},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.ratio, tt.accepted); got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.ratio, got, tt.want)
			}
		})
	}
}

func TestDecideRotation(t *testing.T) {
	tests := []struct {
		ratio float64
		want  bool
	}{
		{1.0, true},
		{1.0 - 1e-12, true},
		{0.999, false},
		{4.0 / 3, true},
		{16.0 / 9, true},
		{16.0/9 + 1e-12, true},
		{1.78, false},
		{2.35, false},
		{9.0 / 16, false},
	}
	for _, tt := range tests {
		if got := DecideRotation(tt.ratio); got != tt.want {
			t.Errorf("DecideRotation(%v) = %v, want %v", tt.ratio, got, tt.want)
		}
	}
}

func TestDecideTrim(t *testing.T) {
	if got := DecideTrim(90); got == nil || *got != 14 {
		t.Errorf("DecideTrim(90) = %v, want 14", got)
	}
	for _, d := range []float64{0, 30, 60} {
		if got := DecideTrim(d); got != nil {
			t.Errorf("DecideTrim(%v) = %v, want nil", d, *got)
		}
	}

	p := DefaultPolicy()
	p.Trim = false
	if p.DecideTrim(600) != nil {
		t.Error("disabled policy should never trim")
	}
}

func TestTargetCanvas(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		preset Preset
		wantW  int
		wantH  int
	}{
		{"fixed", 640, DefaultPreset, 1080, 1920},
		{"9:20 derived", 1080, Preset{Label: "9x20", Ratio: 9.0 / 20}, 1080, 2400},
		{"5:11 derived", 1080, Preset{Label: "5x11", Ratio: 5.0 / 11}, 1080, 2376},
		{"odd width", 1081, Preset{Label: "9x16", Ratio: 9.0 / 16}, 1080, 1922},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetCanvas(tt.width, tt.preset)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("TargetCanvas() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if w%2 != 0 || h%2 != 0 {
				t.Errorf("canvas %dx%d is not even", w, h)
			}
		})
	}
}

func TestSquareSourceScenario(t *testing.T) {
	bg, err := Background(1000, 1000, 1080, 1920, DefaultBlurSigma)
	if err != nil {
		t.Fatal(err)
	}
	if bg.ScaleW != 1920 || bg.ScaleH != 1920 {
		t.Errorf("background scale = %dx%d, want 1920x1920", bg.ScaleW, bg.ScaleH)
	}
	if bg.CropX != 420 || bg.CropY != 0 || bg.CropW != 1080 || bg.CropH != 1920 {
		t.Errorf("background crop = %+v", bg)
	}

	fg, err := Foreground(1000, 1000, 1080, 1920, DefaultFeatherWidth)
	if err != nil {
		t.Fatal(err)
	}
	if fg.ScaleW != 1080 || fg.ScaleH != 1080 || fg.OffsetX != 0 || fg.OffsetY != 420 {
		t.Errorf("foreground = %+v", fg)
	}
	if fg.FeatherWidth != 30 {
		t.Errorf("feather = %d, want 30", fg.FeatherWidth)
	}
}

func TestGeometryInvariants(t *testing.T) {
	sources := [][2]int{{1920, 1080}, {1080, 1920}, {1000, 1000}, {1279, 719}, {3840, 1600}, {641, 479}, {16, 9}}
	canvases := [][2]int{{1080, 1920}, {1080, 2400}, {720, 1280}, {1080, 2376}}

	for _, s := range sources {
		for _, c := range canvases {
			bg, err := Background(s[0], s[1], c[0], c[1], 20)
			if err != nil {
				t.Fatal(err)
			}
			if bg.ScaleW < c[0] || bg.ScaleH < c[1] || bg.ScaleW%2 != 0 || bg.ScaleH%2 != 0 {
				t.Errorf("%v on %v: background %dx%d breaks cover", s, c, bg.ScaleW, bg.ScaleH)
			}
			if bg.CropX < 0 || bg.CropY < 0 || bg.CropX+c[0] > bg.ScaleW || bg.CropY+c[1] > bg.ScaleH {
				t.Errorf("%v on %v: crop out of bounds %+v", s, c, bg)
			}

			fg, err := Foreground(s[0], s[1], c[0], c[1], 500)
			if err != nil {
				t.Fatal(err)
			}
			if fg.ScaleW > c[0] || fg.ScaleH > c[1] || fg.ScaleW%2 != 0 || fg.ScaleH%2 != 0 {
				t.Errorf("%v on %v: foreground %dx%d breaks fit", s, c, fg.ScaleW, fg.ScaleH)
			}
			if fg.OffsetX < 0 || fg.OffsetY < 0 {
				t.Errorf("%v on %v: negative offset %+v", s, c, fg)
			}
			if 2*fg.FeatherWidth >= min(c[0], c[1]) || 2*fg.FeatherWidth >= min(fg.ScaleW, fg.ScaleH) {
				t.Errorf("%v on %v: feather %d too wide for %dx%d", s, c, fg.FeatherWidth, fg.ScaleW, fg.ScaleH)
			}
		}
	}
}

func TestClampFeather(t *testing.T) {
	tests := []struct {
		feather, tw, th, fw, fh int
		want                    int
	}{
		{30, 1080, 1920, 1080, 608, 30},
		{600, 1080, 1920, 1080, 1080, 539},
		{30, 1080, 1920, 40, 20, 9},
		{0, 1080, 1920, 1080, 1080, 0},
		{-5, 1080, 1920, 1080, 1080, 0},
	}
	for _, tt := range tests {
		if got := ClampFeather(tt.feather, tt.tw, tt.th, tt.fw, tt.fh); got != tt.want {
			t.Errorf("ClampFeather(%d, %dx%d, %dx%d) = %d, want %d", tt.feather, tt.tw, tt.th, tt.fw, tt.fh, got, tt.want)
		}
	}
}

func TestPlan(t *testing.T) {
	meta := &probe.VideoMetadata{Path: "sq.mp4", Width: 1000, Height: 1000, SampleAspectRatio: 1}
	trim := 14.0
	plan, err := Plan(meta, DefaultPreset, Decision{Rotate: true, TrimToSeconds: &trim})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.TargetWidth != 1080 || plan.TargetHeight != 1920 {
		t.Errorf("target = %dx%d", plan.TargetWidth, plan.TargetHeight)
	}
	if !plan.Rotate || plan.TrimToSeconds == nil || *plan.TrimToSeconds != 14 {
		t.Errorf("decision not recorded: %+v", plan)
	}
	if plan.Feather != FeatherGradient {
		t.Errorf("Feather = %v, want gradient", plan.Feather)
	}
	if plan.WithFeather(FeatherMask).Feather != FeatherMask || plan.Feather != FeatherGradient {
		t.Error("WithFeather must copy")
	}
}

func TestPlanRejectsZeroArea(t *testing.T) {
	meta := &probe.VideoMetadata{Path: "empty.mp4", Width: 0, Height: 720}
	_, err := Plan(meta, DefaultPreset, Decision{})
	var perr *PlanError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PlanError, got %v", err)
	}

	_, err = Plan(&probe.VideoMetadata{Path: "a.mp4", Width: 1, Height: 1000}, Preset{Label: "tiny", Ratio: 9.0 / 16}, Decision{})
	if !errors.As(err, &perr) {
		t.Fatalf("expected *PlanError for collapsed canvas, got %v", err)
	}
}

func TestSkipUnit(t *testing.T) {
	p := DefaultPolicy()
	vertical := &probe.VideoMetadata{Width: 1080, Height: 1920, SampleAspectRatio: 1}
	if !p.SkipUnit(vertical, DefaultPreset) {
		t.Error("9:16 source should skip the 9x16 preset")
	}
	if p.SkipUnit(vertical, Preset{Label: "9x20", Ratio: 9.0 / 20}) {
		t.Error("9:16 source should not skip the 9x20 preset")
	}
}

func TestParsePreset(t *testing.T) {
	tests := []struct {
		in      string
		want    Preset
		wantErr bool
	}{
		{in: "9:16", want: Preset{Label: "9x16", Ratio: 9.0 / 16}},
		{in: "wall=9:20", want: Preset{Label: "wall", Ratio: 9.0 / 20}},
		{in: "9x16=9:16@1080x1920", want: Preset{Label: "9x16", Ratio: 9.0 / 16, Width: 1080, Height: 1920}},
		{in: "", wantErr: true},
		{in: "9:0", wantErr: true},
		{in: "x=9:16@1081x1920", wantErr: true},
		{in: "x=nine:16", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePreset(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParsePreset(%q) expected error, got %+v", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePreset(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePreset(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParsePresets([]string{"a=9:16", "a=9:20"}); err == nil {
		t.Error("duplicate labels should be rejected")
	}
}

func TestParseRatio(t *testing.T) {
	for in, want := range map[string]float64{"9:16": 0.5625, "16/9": 16.0 / 9, "0.5": 0.5} {
		got, err := ParseRatio(in)
		if err != nil || got != want {
			t.Errorf("ParseRatio(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseRatio("-1"); err == nil {
		t.Error("negative ratio should fail")
	}
}
