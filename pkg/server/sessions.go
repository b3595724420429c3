package server

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/menta2k/banana-grader/pkg/metrics"
	"github.com/menta2k/banana-grader/pkg/pipeline"
)

// SessionStore keeps one pipeline session per inspection id
type SessionStore struct {
	mu         sync.Mutex
	sessions   map[string]*pipeline.Session
	newSession func() *pipeline.Session
	ttl        time.Duration
}

// NewSessionStore creates a store whose idle sessions expire after ttl
func NewSessionStore(newSession func() *pipeline.Session, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions:   make(map[string]*pipeline.Session),
		newSession: newSession,
		ttl:        ttl,
	}
}

// Get returns an existing session
func (s *SessionStore) Get(id string) (*pipeline.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// GetOrCreate returns the session for id, creating it if needed
func (s *SessionStore) GetOrCreate(id string) *pipeline.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = s.newSession()
		s.sessions[id] = sess
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	return sess
}

// Delete resets and removes a session. It reports whether the session existed.
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
	}
	s.mu.Unlock()

	if ok {
		sess.Reset()
	}
	return ok
}

// Len returns the number of sessions
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle since before now-ttl that have no running job
func (s *SessionStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.Busy() || now.Sub(sess.IdleSince()) < s.ttl {
			continue
		}
		sess.Reset()
		delete(s.sessions, id)
		removed++
	}
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// Run sweeps expired sessions every interval until ctx is done
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.WithField("removed", n).Info("expired idle sessions")
			}
		}
	}
}
