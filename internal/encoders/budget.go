package encoders

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultGPUBudget is the hardware encoder memory budget (4 GiB).
const DefaultGPUBudget int64 = 4 << 30

// EstimateBytes approximates the frame buffer memory a hardware encode of
// a w x h canvas needs: RGB frames for up to two seconds of lookahead
// (capped at 60 frames), doubled for encoder surfaces.
func EstimateBytes(width, height int, fps float64) int64 {
	frames := min(60, int(fps*2))
	if frames < 1 {
		frames = 1
	}
	return int64(width) * int64(height) * 3 * int64(frames) * 2
}

// Budget shares a fixed amount of GPU memory between concurrent units.
type Budget struct {
	limit int64
	sem   *semaphore.Weighted
}

// NewBudget creates a budget of limit bytes. A non-positive limit uses
// DefaultGPUBudget.
func NewBudget(limit int64) *Budget {
	if limit <= 0 {
		limit = DefaultGPUBudget
	}
	return &Budget{limit: limit, sem: semaphore.NewWeighted(limit)}
}

// Limit returns the budget size in bytes.
func (b *Budget) Limit() int64 { return b.limit }

// Fits reports whether an estimate can ever be admitted.
func (b *Budget) Fits(estimate int64) bool {
	return estimate <= b.limit
}

// Acquire blocks until estimate bytes are available or ctx is done.
// The returned release function must be called exactly once.
func (b *Budget) Acquire(ctx context.Context, estimate int64) (func(), error) {
	if estimate <= 0 {
		return func() {}, nil
	}
	if err := b.sem.Acquire(ctx, estimate); err != nil {
		return nil, err
	}
	return func() { b.sem.Release(estimate) }, nil
}
