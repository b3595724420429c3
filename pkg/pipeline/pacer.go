package pipeline

import (
	"context"
	"time"

	"github.com/menta2k/banana-grader/pkg/types"
)

// Pacer inserts a cosmetic delay before an analysis starts. Implementations
// must return promptly with a cancellation error when ctx is done.
type Pacer interface {
	Pace(ctx context.Context) error
}

// NoPacing starts immediately
type NoPacing struct{}

// Pace only checks for cancellation
func (NoPacing) Pace(ctx context.Context) error {
	return types.CheckContext(ctx, "pacing")
}

// DelayPacer waits a fixed duration
type DelayPacer struct {
	Delay time.Duration
}

// Pace waits for Delay or until ctx is done
func (p DelayPacer) Pace(ctx context.Context) error {
	if p.Delay <= 0 {
		return types.CheckContext(ctx, "pacing")
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return types.CheckContext(ctx, "pacing")
	case <-timer.C:
		return nil
	}
}

// PacerFromMillis returns NoPacing for ms <= 0 and a DelayPacer otherwise
func PacerFromMillis(ms int) Pacer {
	if ms <= 0 {
		return NoPacing{}
	}
	return DelayPacer{Delay: time.Duration(ms) * time.Millisecond}
}
