package pipeline

import (
	"context"
	"errors"

	"github.com/smazurov/reframer/internal/graph"
	"github.com/smazurov/reframer/internal/planner"
)

// PlannedUnit is the dry-run outcome of one unit.
type PlannedUnit struct {
	Unit   Unit
	Output string
	Skip   bool
	Plan   *planner.ReframePlan
	Graph  *graph.Graph
	Err    error
}

// Plan computes the plan and filter graph of every unit without encoding.
// Pre-steps are not run; their effect is predicted from the source
// metadata (a rotation swaps the dimensions).
func (r *Runner) Plan(ctx context.Context, files []string) ([]PlannedUnit, error) {
	units := Units(r.cfg.InputDir, files, r.cfg.Presets)
	out := make([]PlannedUnit, 0, len(units))
	policy := r.cfg.Policy
	r.probes.reset()

	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		pu := PlannedUnit{Unit: u, Output: r.layout.Output(u)}
		meta, err := r.probes.get(ctx, r.prober, u.Source)
		if err != nil {
			pu.Err = err
			out = append(out, pu)
			continue
		}
		if policy.Classify(meta.DisplayRatio()) == planner.Skip || policy.SkipUnit(meta, u.Preset) {
			pu.Skip = true
			out = append(out, pu)
			continue
		}

		work := *meta
		decision := planner.Decision{TrimToSeconds: policy.DecideTrim(meta.Duration)}
		if decision.TrimToSeconds != nil {
			work.Duration = *decision.TrimToSeconds
		}
		if policy.DecideRotation(work.DisplayRatio()) {
			work = work.Rotated()
			decision.Rotate = true
		}

		plan, err := policy.Plan(&work, u.Preset, decision)
		if err != nil {
			pu.Err = err
			out = append(out, pu)
			continue
		}
		g, err := graph.Build(plan)
		if errors.Is(err, graph.ErrFeatherUnsupported) {
			plan = plan.WithFeather(planner.FeatherMask)
			g, err = graph.Build(plan)
		}
		pu.Plan, pu.Graph, pu.Err = plan, g, err
		out = append(out, pu)
	}
	return out, nil
}
