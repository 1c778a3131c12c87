package encode

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCancelled wraps the context error when an encode is interrupted.
var ErrCancelled = errors.New("encode cancelled")

// EncodeError reports an ffmpeg run that failed to start or exited non-zero.
type EncodeError struct {
	JobID    string
	Encoder  string
	ExitCode int // -1 when the process never ran
	Tail     []string
	Err      error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encode %s with %s failed (exit %d): %v", e.JobID, e.Encoder, e.ExitCode, e.Err)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Diagnostics returns the captured ffmpeg diagnostic lines.
func (e *EncodeError) Diagnostics() string {
	return strings.Join(e.Tail, "\n")
}

// StallError reports an encode whose frame counter stopped advancing.
type StallError struct {
	JobID     string
	Encoder   string
	LastFrame int64
	Timeout   time.Duration
}

func (e *StallError) Error() string {
	return fmt.Sprintf("encode %s with %s stalled at frame %d (no progress for %s)", e.JobID, e.Encoder, e.LastFrame, e.Timeout)
}

// ValidationError reports a finished encode whose output is unusable.
type ValidationError struct {
	Path   string
	Size   int64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output %s invalid: %s", e.Path, e.Reason)
}

// Retryable reports whether err may be retried with the next encoder.
func Retryable(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return false
	}
	var encErr *EncodeError
	var stallErr *StallError
	return errors.As(err, &encErr) || errors.As(err, &stallErr)
}
