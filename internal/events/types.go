package events

// Event type constants for kelindar/event.
const (
	TypeUnitStarted uint32 = iota + 1
	TypeUnitProgress
	TypeUnitFinished
	TypeBatchFinished
	TypeFileDiscovered
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// UnitStartedEvent is published when a unit (file x preset) begins encoding.
type UnitStartedEvent struct {
	UnitID    string `json:"unit_id" example:"clip.mp4#9x16" doc:"Unit identifier"`
	Source    string `json:"source" example:"input/clip.mp4" doc:"Source file"`
	Preset    string `json:"preset" example:"9x16" doc:"Preset label"`
	Rotate    bool   `json:"rotate" doc:"Whether the source was rotated"`
	Trimmed   bool   `json:"trimmed" doc:"Whether the source was trimmed"`
	Timestamp string `json:"timestamp" example:"2026-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitStartedEvent.
func (e UnitStartedEvent) Type() uint32 { return TypeUnitStarted }

// UnitProgressEvent carries the frame counter of a running unit.
type UnitProgressEvent struct {
	UnitID      string  `json:"unit_id" doc:"Unit identifier"`
	Frame       int64   `json:"frame" doc:"Frames encoded so far"`
	TotalFrames int64   `json:"total_frames" doc:"Expected frames, 0 if unknown"`
	Percent     float64 `json:"percent" doc:"Completion percentage"`
	Encoder     string  `json:"encoder" example:"h264_nvenc" doc:"Active encoder"`
}

// Type returns the event type identifier for UnitProgressEvent.
func (e UnitProgressEvent) Type() uint32 { return TypeUnitProgress }

// UnitFinishedEvent is published once per unit with its outcome.
type UnitFinishedEvent struct {
	UnitID       string  `json:"unit_id" doc:"Unit identifier"`
	Status       string  `json:"status" example:"processed" doc:"processed, skipped or failed"`
	Output       string  `json:"output,omitempty" doc:"Output path"`
	Encoder      string  `json:"encoder,omitempty" doc:"Encoder that produced the output"`
	UsedFallback bool    `json:"used_fallback" doc:"Software fallback was needed"`
	Anomalous    bool    `json:"anomalous" doc:"Output smaller than expected"`
	Error        string  `json:"error,omitempty" doc:"Failure reason"`
	Seconds      float64 `json:"seconds" doc:"Elapsed wall time"`
	Timestamp    string  `json:"timestamp" doc:"Event timestamp"`
}

// Type returns the event type identifier for UnitFinishedEvent.
func (e UnitFinishedEvent) Type() uint32 { return TypeUnitFinished }

// BatchFinishedEvent summarises a completed batch.
type BatchFinishedEvent struct {
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Anomalous int    `json:"anomalous"`
	Fallbacks int    `json:"fallbacks"`
	OutputDir string `json:"output_dir"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for BatchFinishedEvent.
func (e BatchFinishedEvent) Type() uint32 { return TypeBatchFinished }

// FileDiscoveredEvent is published by the directory watcher.
type FileDiscoveredEvent struct {
	Path      string `json:"path"`
	Timestamp string `json:"timestamp"`
}

// Type returns the event type identifier for FileDiscoveredEvent.
func (e FileDiscoveredEvent) Type() uint32 { return TypeFileDiscovered }
