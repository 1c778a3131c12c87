package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/smazurov/reframer/internal/planner"
	"github.com/smazurov/reframer/internal/probe"
)

func squarePlan(t *testing.T) *planner.ReframePlan {
	t.Helper()
	meta := &probe.VideoMetadata{Path: "sq.mp4", Width: 1000, Height: 1000, SampleAspectRatio: 1}
	plan, err := planner.Plan(meta, planner.DefaultPreset, planner.Decision{})
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	return plan
}

func TestBuildGradient(t *testing.T) {
	g, err := Build(squarePlan(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := "[0:v]split=2[bgsrc1][fgsrc2];" +
		"[bgsrc1]scale=1920:1920[bgscale3];" +
		"[bgscale3]crop=1080:1920:420:0[bgcrop4];" +
		"[bgcrop4]gblur=sigma=20[bg5];" +
		"[fgsrc2]scale=1080:1080[fgscale6];" +
		"[fgscale6]format=rgba[fgrgba7];" +
		"[fgrgba7]geq=r='r(X,Y)':g='g(X,Y)':b='b(X,Y)':" +
		"a='if(lt(X,30),X/30,if(gt(X,W-30),(W-X)/30,if(lt(Y,30),Y/30,if(gt(Y,H-30),(H-Y)/30,1))))*255'[fg8];" +
		"[bg5][fg8]overlay=x=0:y=420:shortest=1:format=auto[comp9];" +
		"[comp9]format=yuv420p[fmt10];" +
		"[fmt10]setsar=1[out11]"

	if got := g.String(); got != want {
		t.Errorf("String() =\n%s\nwant\n%s", got, want)
	}
	if g.Output() != "out11" {
		t.Errorf("Output() = %q", g.Output())
	}
}

func TestBuildMask(t *testing.T) {
	g, err := Build(squarePlan(t).WithFeather(planner.FeatherMask))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	s := g.String()

	for _, want := range []string{
		"color=c=white:s=1080x1080",
		"drawbox=x=0:y=0:w=iw:h=30:t=fill:c=black",
		"drawbox=x=0:y=ih-30:w=iw:h=30:t=fill:c=black",
		"drawbox=x=0:y=0:w=30:h=ih:t=fill:c=black",
		"drawbox=x=iw-30:y=0:w=30:h=ih:t=fill:c=black",
		"boxblur=30:1",
		"format=gray",
		"format=yuva420p",
		"alphamerge",
		"overlay=x=0:y=420:shortest=1:format=auto",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("graph missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "geq") {
		t.Error("mask graph should not use geq")
	}

	nodes := g.Nodes()
	merge := nodes[len(nodes)-4]
	if merge.Filter != "alphamerge" || len(merge.Inputs) != 2 {
		t.Fatalf("expected alphamerge with two inputs, got %+v", merge)
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(squarePlan(t))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(squarePlan(t))
	if err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Error("Build() is not deterministic")
	}
}

func TestBuildLabelsConnect(t *testing.T) {
	for _, m := range []planner.FeatherMethod{planner.FeatherGradient, planner.FeatherMask} {
		g, err := Build(squarePlan(t).WithFeather(m))
		if err != nil {
			t.Fatal(err)
		}
		produced := map[string]bool{SourceLabel: true}
		consumed := map[string]int{}
		for _, n := range g.Nodes() {
			for _, in := range n.Inputs {
				if !produced[in] {
					t.Errorf("%v: node %d (%s) consumes %q before it is produced", m, n.ID, n.Filter, in)
				}
				consumed[in]++
			}
			for _, out := range n.Outputs {
				if produced[out] {
					t.Errorf("%v: label %q produced twice", m, out)
				}
				produced[out] = true
			}
		}
		for label := range produced {
			if label == SourceLabel || label == g.Output() {
				continue
			}
			if consumed[label] != 1 {
				t.Errorf("%v: label %q consumed %d times", m, label, consumed[label])
			}
		}
	}
}

func TestBuildFeatherUnsupported(t *testing.T) {
	plan := squarePlan(t)
	plan.Foreground.FeatherWidth = 0

	if _, err := Build(plan); !errors.Is(err, ErrFeatherUnsupported) {
		t.Fatalf("Build() error = %v, want ErrFeatherUnsupported", err)
	}

	g, err := Build(plan.WithFeather(planner.FeatherMask))
	if err != nil {
		t.Fatalf("mask build error = %v", err)
	}
	if strings.Contains(g.String(), "drawbox") {
		t.Error("zero feather mask should have no borders")
	}
}

func TestBuildInvalidPlan(t *testing.T) {
	plan := squarePlan(t)
	plan.Foreground.ScaleW = 0
	if _, err := Build(plan); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("Build() error = %v, want ErrInvalidPlan", err)
	}
	if _, err := Build(nil); !errors.Is(err, ErrInvalidPlan) {
		t.Errorf("Build(nil) error = %v, want ErrInvalidPlan", err)
	}
}
