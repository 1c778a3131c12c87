// Package display renders terminal progress for batch runs.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	barWidth  = 30
	lineWidth = 100
	maxName   = 36
)

// Bar renders a fixed-width bar for percent in [0, 100].
func Bar(percent float64) string {
	percent = max(0, min(100, percent))
	filled := int(percent / 100 * barWidth)
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", barWidth-filled) + "]"
}

// BatchPercent combines finished units and the running unit's progress
// into one batch percentage.
func BatchPercent(done, total int, current float64) float64 {
	if total <= 0 {
		return 0
	}
	return min(100, (float64(done)+max(0, min(100, current))/100)*100/float64(total))
}

// FormatBytes returns a human-readable size (B, KiB, MiB, GiB, TiB).
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), []string{"KiB", "MiB", "GiB", "TiB"}[exp])
}

// FormatDuration prints d as h:mm:ss or m:ss.
func FormatDuration(d time.Duration) string {
	s := int(d.Round(time.Second).Seconds())
	if s >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", s/3600, s%3600/60, s%60)
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

// ProgressBar prints an inline, carriage-return updated progress line.
// When the writer is not a terminal it stays silent.
type ProgressBar struct {
	mu      sync.Mutex
	w       io.Writer
	enabled bool
	done    int
	total   int
	dirty   bool
}

// NewProgressBar writes to w; enabled should reflect whether w is a TTY.
func NewProgressBar(w io.Writer, enabled bool) *ProgressBar {
	return &ProgressBar{w: w, enabled: enabled}
}

// NewStdoutProgressBar writes to stdout when it is a terminal.
func NewStdoutProgressBar() *ProgressBar {
	return NewProgressBar(os.Stdout, IsTerminal(os.Stdout))
}

// SetTotal sets the number of units in the batch.
func (p *ProgressBar) SetTotal(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
}

// UnitDone advances the finished-unit count and clears the line.
func (p *ProgressBar) UnitDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done++
	p.clearLocked()
}

// Update redraws the line for one running unit.
func (p *ProgressBar) Update(name string, frame, totalFrames int64, percent float64, encoder string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return
	}
	p.dirty = true
	fmt.Fprintf(p.w, "\r%s", Line(name, frame, totalFrames, percent, encoder,
		BatchPercent(p.done, p.total, percent), p.done, p.total))
}

// Clear erases the progress line.
func (p *ProgressBar) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

func (p *ProgressBar) clearLocked() {
	if !p.enabled || !p.dirty {
		return
	}
	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", lineWidth))
	p.dirty = false
}

// Line formats one progress line padded to a fixed width.
func Line(name string, frame, totalFrames int64, percent float64, encoder string, batch float64, done, total int) string {
	if len([]rune(name)) > maxName {
		r := []rune(name)
		name = string(r[:maxName-1]) + "…"
	}
	counter := fmt.Sprintf("%d", frame)
	if totalFrames > 0 {
		counter = fmt.Sprintf("%d/%d", frame, totalFrames)
	}
	line := fmt.Sprintf("%s %5.1f%% %s %s [%s] batch %d/%d %.0f%%",
		Bar(percent), percent, name, counter, encoder, done, total, batch)
	if n := len([]rune(line)); n < lineWidth {
		line += strings.Repeat(" ", lineWidth-n)
	}
	return line
}

// IsTerminal reports whether f is attached to a TTY (character device).
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
