package probe

import (
	"errors"
	"fmt"
)

var (
	// ErrNoVideoStream is returned when the container carries no video stream.
	ErrNoVideoStream = errors.New("no video stream")
	// ErrInvalidDimensions is returned for missing or non-positive width/height.
	ErrInvalidDimensions = errors.New("invalid video dimensions")
)

// Error reports a failed probe of a single file.
type Error struct {
	Path   string
	Output string // stderr of ffprobe, if any
	Err    error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("probe %s: %v: %s", e.Path, e.Err, e.Output)
	}
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
