package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestBar(t *testing.T) {
	tests := []struct {
		percent float64
		filled  int
	}{
		{0, 0},
		{50, 15},
		{100, 30},
		{150, 30},
		{-5, 0},
	}
	for _, tt := range tests {
		bar := Bar(tt.percent)
		if len(bar) != barWidth+2 {
			t.Errorf("Bar(%v) width = %d", tt.percent, len(bar))
		}
		if got := strings.Count(bar, "#"); got != tt.filled {
			t.Errorf("Bar(%v) filled = %d, want %d", tt.percent, got, tt.filled)
		}
	}
}

func TestBatchPercent(t *testing.T) {
	tests := []struct {
		done, total int
		current     float64
		want        float64
	}{
		{0, 4, 0, 0},
		{1, 4, 0, 25},
		{1, 4, 50, 37.5},
		{4, 4, 0, 100},
		{0, 0, 50, 0},
	}
	for _, tt := range tests {
		if got := BatchPercent(tt.done, tt.total, tt.current); got != tt.want {
			t.Errorf("BatchPercent(%d, %d, %v) = %v, want %v", tt.done, tt.total, tt.current, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		512:            "512 B",
		2048:           "2.0 KiB",
		5 << 20:        "5.0 MiB",
		3 << 30:        "3.0 GiB",
		int64(2) << 50: "2048.0 TiB",
	}
	for in, want := range tests {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(75 * time.Second); got != "1:15" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(time.Hour + 2*time.Minute + 3*time.Second); got != "1:02:03" {
		t.Errorf("got %q", got)
	}
}

func TestLineTruncatesName(t *testing.T) {
	line := Line(strings.Repeat("x", 80)+".mp4", 10, 100, 10, "libx264", 5, 0, 2)
	if strings.Contains(line, ".mp4") || !strings.Contains(line, "…") {
		t.Errorf("name not truncated: %q", line)
	}
	if !strings.Contains(line, "10/100") || !strings.Contains(line, "[libx264]") {
		t.Errorf("line = %q", line)
	}
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf, true)
	p.SetTotal(2)
	p.Update("clip.mp4", 50, 100, 50, "h264_nvenc")
	if !strings.HasPrefix(buf.String(), "\r[") || !strings.Contains(buf.String(), "batch 0/2 25%") {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	p.UnitDone()
	if !strings.HasPrefix(buf.String(), "\r ") {
		t.Errorf("expected clear, got %q", buf.String())
	}

	buf.Reset()
	p.Clear()
	if buf.Len() != 0 {
		t.Errorf("clearing a clean line wrote %q", buf.String())
	}
}

func TestProgressBarDisabled(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf, false)
	p.SetTotal(1)
	p.Update("clip.mp4", 1, 10, 10, "libx264")
	p.UnitDone()
	if buf.Len() != 0 {
		t.Errorf("disabled bar wrote %q", buf.String())
	}
}
