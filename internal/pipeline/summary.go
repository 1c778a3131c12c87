package pipeline

import "time"

// Summary aggregates a batch.
type Summary struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Anomalous int           `json:"anomalous"`
	Fallbacks int           `json:"fallbacks"`
	OutputDir string        `json:"output_dir"`
	Elapsed   time.Duration `json:"elapsed"`
	Units     []UnitStatus  `json:"units"`
}

// Total returns the number of units in the batch.
func (s *Summary) Total() int { return len(s.Units) }

// Summarize aggregates unit statuses into a Summary.
func Summarize(outputDir string, statuses []UnitStatus, elapsed time.Duration) *Summary {
	s := &Summary{OutputDir: outputDir, Elapsed: elapsed, Units: statuses}
	for _, st := range statuses {
		switch st.Status {
		case StatusProcessed:
			s.Processed++
			if st.Anomalous {
				s.Anomalous++
			}
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		case StatusCancelled, StatusPending, StatusRunning:
			s.Cancelled++
		}
		if st.UsedFallback {
			s.Fallbacks++
		}
	}
	return s
}
