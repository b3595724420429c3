package types

import (
	"context"
	"errors"
)

var (
	// ErrDecode means the input bytes could not be interpreted as an image
	ErrDecode = errors.New("decode error")

	// ErrInvalidImage means a zero-dimension or empty pixel buffer reached the analyzer
	ErrInvalidImage = errors.New("invalid image")

	// ErrCancelled means the caller abandoned the analysis before it completed
	ErrCancelled = errors.New("analysis cancelled")
)

// IsCancelled reports whether err is a cancellation rather than a failure
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// CheckContext returns an ErrCancelled-wrapped error when ctx is done
func CheckContext(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return &CancelError{Stage: stage, Cause: err}
	}
	return nil
}

// CancelError records the pipeline stage at which cancellation was observed
type CancelError struct {
	Stage string
	Cause error
}

func (e *CancelError) Error() string {
	return "analysis cancelled during " + e.Stage + ": " + e.Cause.Error()
}

// Is makes errors.Is(err, ErrCancelled) hold
func (e *CancelError) Is(target error) bool {
	return target == ErrCancelled
}

func (e *CancelError) Unwrap() error {
	return e.Cause
}
