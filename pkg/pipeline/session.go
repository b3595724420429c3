package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/menta2k/banana-grader/pkg/types"
)

// Session holds at most one current analysis for one inspection. Submitting a new
// image supersedes the previous one; a superseded or reset job never publishes
// its result.
type Session struct {
	pipeline *Pipeline

	mu       sync.Mutex
	gen      uint64
	cancel   context.CancelFunc
	current  *Outcome
	lastUsed time.Time
}

// Job is a running analysis
type Job struct {
	done    chan struct{}
	outcome *Outcome
	err     error
}

// NewSession creates an empty session bound to a pipeline
func NewSession(p *Pipeline) *Session {
	return &Session{pipeline: p, lastUsed: time.Now()}
}

// Submit starts analyzing data in the background, cancelling any job still running
// for this session and discarding the current result.
func (s *Session) Submit(ctx context.Context, data []byte) *Job {
	jobCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.current = nil
	s.lastUsed = time.Now()
	s.mu.Unlock()

	job := &Job{done: make(chan struct{})}
	go func() {
		defer close(job.done)
		defer cancel()

		out, err := s.pipeline.Run(jobCtx, data)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.gen != gen {
			job.err = &types.CancelError{Stage: "superseded", Cause: context.Canceled}
			return
		}
		s.cancel = nil
		if err != nil {
			job.err = err
			return
		}
		s.current = out
		job.outcome = out
	}()
	return job
}

// Reset abandons any running job and clears the current result
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.current = nil
	s.lastUsed = time.Now()
}

// Current returns the latest completed outcome, if any
func (s *Session) Current() (*Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.current != nil
}

// Busy reports whether a job is running
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// IdleSince returns the time of the last Submit or Reset
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Done is closed when the job finishes
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done
func (j *Job) Wait(ctx context.Context) (*Outcome, error) {
	select {
	case <-j.done:
		return j.outcome, j.err
	case <-ctx.Done():
		return nil, types.CheckContext(ctx, "wait")
	}
}
