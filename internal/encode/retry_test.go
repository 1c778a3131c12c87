package encode

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestRetryStateTransitions(t *testing.T) {
	hw := testHardware
	encErr := &EncodeError{JobID: "a", Encoder: "h264_nvenc", ExitCode: 1, Err: errors.New("exit status 1")}
	stall := &StallError{JobID: "a", Encoder: "h264_nvenc"}
	cancelled := fmt.Errorf("%w: %w", ErrCancelled, context.Canceled)

	tests := []struct {
		name      string
		hardware  bool
		errs      []error
		wantStage Stage
		wantRetry []bool
	}{
		{"hardware exit then software", true, []error{encErr}, StageSoftware, []bool{true}},
		{"stall then software", true, []error{stall}, StageSoftware, []bool{true}},
		{"both fail", true, []error{encErr, encErr}, StageFailed, []bool{true, false}},
		{"software only fails", false, []error{encErr}, StageFailed, []bool{false}},
		{"cancel on hardware", true, []error{cancelled}, StageFailed, []bool{false}},
		{"validation on hardware", true, []error{&ValidationError{Path: "x"}}, StageFailed, []bool{false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s *RetryState
			if tt.hardware {
				s = NewRetryState(&hw, testSoftware)
			} else {
				s = NewRetryState(nil, testSoftware)
			}
			for i, err := range tt.errs {
				if got := s.Fail(err); got != tt.wantRetry[i] {
					t.Errorf("Fail(%v) = %v, want %v", err, got, tt.wantRetry[i])
				}
			}
			if s.Stage != tt.wantStage {
				t.Errorf("stage = %s, want %s", s.Stage, tt.wantStage)
			}
			if s.Attempts != len(tt.errs) {
				t.Errorf("attempts = %d", s.Attempts)
			}
		})
	}
}

func TestRetryStateProfile(t *testing.T) {
	hw := testHardware
	s := NewRetryState(&hw, testSoftware)
	if s.Profile().Encoder != "h264_nvenc" || s.FellBack() {
		t.Fatalf("initial profile = %s", s.Profile().Encoder)
	}
	s.Fail(&StallError{})
	if s.Profile().Encoder != "libx264" || !s.FellBack() {
		t.Errorf("after stall profile = %s, fellBack = %v", s.Profile().Encoder, s.FellBack())
	}

	soft := NewRetryState(nil, testSoftware)
	if soft.Stage != StageSoftware || soft.FellBack() {
		t.Errorf("software-only state = %s", soft.Stage)
	}
}

func TestProgressPercent(t *testing.T) {
	if got := (Progress{Frame: 50, TotalFrames: 200}).Percent(); got != 25 {
		t.Errorf("Percent = %v", got)
	}
	if got := (Progress{Frame: 500, TotalFrames: 200}).Percent(); got != 100 {
		t.Errorf("Percent clamps, got %v", got)
	}
	if got := (Progress{Frame: 5}).Percent(); got != 0 {
		t.Errorf("unknown total = %v", got)
	}
}
