package resources

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestWorkersExplicit(t *testing.T) {
	if got := Workers(context.Background(), 3); got != 3 {
		t.Errorf("Workers(3) = %d", got)
	}
}

func TestWorkersAuto(t *testing.T) {
	got := Workers(context.Background(), 0)
	if got < 1 || got > MaxAutoWorkers {
		t.Errorf("Workers(0) = %d, want 1..%d", got, MaxAutoWorkers)
	}
}

func TestCheckDisk(t *testing.T) {
	dir := t.TempDir()
	if err := CheckDisk(context.Background(), dir, 1); err != nil {
		t.Fatalf("CheckDisk(1 byte): %v", err)
	}
	err := CheckDisk(context.Background(), dir, math.MaxUint64)
	if !errors.Is(err, ErrLowDisk) {
		t.Fatalf("err = %v, want ErrLowDisk", err)
	}
}

func TestSample(t *testing.T) {
	s := Sample(context.Background(), t.TempDir())
	if s.LogicalCPUs <= 0 {
		t.Errorf("LogicalCPUs = %d", s.LogicalCPUs)
	}
	if s.DiskFree == 0 {
		t.Error("DiskFree not sampled")
	}
}
