// Package resources inspects the host to size the worker pool and guard
// scratch disk space.
package resources

import (
	"context"
	"errors"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// cpusPerWorker is how many logical CPUs one software encode keeps busy.
const cpusPerWorker = 4

// MaxAutoWorkers caps the automatically chosen pool size.
const MaxAutoWorkers = 4

// ErrLowDisk is returned when free space is below the requested minimum.
var ErrLowDisk = errors.New("insufficient free disk space")

// Snapshot is a point-in-time view of host load.
type Snapshot struct {
	LogicalCPUs   int     `json:"logical_cpus"`
	MemoryPercent float64 `json:"memory_percent"`
	Load1         float64 `json:"load1"`
	DiskFree      uint64  `json:"disk_free_bytes"`
}

// Workers returns requested when positive, otherwise a pool size derived
// from the logical CPU count.
func Workers(ctx context.Context, requested int) int {
	if requested > 0 {
		return requested
	}
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil || n <= 0 {
		return 1
	}
	return max(1, min(MaxAutoWorkers, n/cpusPerWorker))
}

// FreeBytes returns the free space of the filesystem holding path.
func FreeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("disk usage of %s: %w", path, err)
	}
	return usage.Free, nil
}

// CheckDisk fails with ErrLowDisk when path has less than minFree bytes.
func CheckDisk(ctx context.Context, path string, minFree uint64) error {
	free, err := FreeBytes(ctx, path)
	if err != nil {
		return err
	}
	if free < minFree {
		return fmt.Errorf("%w: %s has %d bytes free, need %d", ErrLowDisk, path, free, minFree)
	}
	return nil
}

// Sample collects a Snapshot. Fields whose source fails stay zero.
func Sample(ctx context.Context, diskPath string) Snapshot {
	var s Snapshot
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemoryPercent = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
	}
	if diskPath != "" {
		if free, err := FreeBytes(ctx, diskPath); err == nil {
			s.DiskFree = free
		}
	}
	return s
}
