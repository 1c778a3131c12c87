package pipeline

import (
	"path/filepath"
	"time"

	"github.com/smazurov/reframer/internal/planner"
)

// Status is the outcome of a unit.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusProcessed Status = "processed"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Unit is one (source file, preset) pair.
type Unit struct {
	ID     string
	Source string
	Rel    string // source path relative to the input root
	Preset planner.Preset
}

// UnitStatus is the externally visible state of a unit.
type UnitStatus struct {
	ID           string        `json:"id"`
	Source       string        `json:"source"`
	Preset       string        `json:"preset"`
	Status       Status        `json:"status"`
	Output       string        `json:"output,omitempty"`
	Location     string        `json:"location,omitempty"`
	Encoder      string        `json:"encoder,omitempty"`
	Feather      string        `json:"feather,omitempty"`
	Rotated      bool          `json:"rotated"`
	Trimmed      bool          `json:"trimmed"`
	UsedFallback bool          `json:"used_fallback"`
	Anomalous    bool          `json:"anomalous"`
	Frame        int64         `json:"frame"`
	TotalFrames  int64         `json:"total_frames"`
	Error        string        `json:"error,omitempty"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Done reports whether the unit reached a final state.
func (s UnitStatus) Done() bool {
	switch s.Status {
	case StatusProcessed, StatusSkipped, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Layout maps sources to output paths: <root>/<label>/<rel> when several
// presets are configured, <root>/<rel> otherwise. The extension is kept.
type Layout struct {
	Root        string
	MultiPreset bool
}

// Output returns the output path of a unit.
func (l Layout) Output(u Unit) string {
	if l.MultiPreset {
		return filepath.Join(l.Root, u.Preset.Label, u.Rel)
	}
	return filepath.Join(l.Root, u.Rel)
}

// Key returns the slash-separated output path relative to the root.
func (l Layout) Key(u Unit) string {
	rel, err := filepath.Rel(l.Root, l.Output(u))
	if err != nil {
		return filepath.ToSlash(u.Rel)
	}
	return filepath.ToSlash(rel)
}

// Units expands files into (file, preset) units in file-major order.
func Units(inputDir string, files []string, presets []planner.Preset) []Unit {
	units := make([]Unit, 0, len(files)*len(presets))
	for _, f := range files {
		rel, err := filepath.Rel(inputDir, f)
		if err != nil || rel == "" || rel[0] == '.' {
			rel = filepath.Base(f)
		}
		for _, p := range presets {
			units = append(units, Unit{
				ID:     filepath.ToSlash(rel) + "#" + p.Label,
				Source: f,
				Rel:    rel,
				Preset: p,
			})
		}
	}
	return units
}
