package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/banana-grader/pkg/pipeline"
)

func newStore(ttl time.Duration) *SessionStore {
	p := pipeline.New(nil, nil, nil)
	return NewSessionStore(func() *pipeline.Session { return pipeline.NewSession(p) }, ttl)
}

func TestSessionStoreGetOrCreate(t *testing.T) {
	store := newStore(time.Minute)

	a := store.GetOrCreate("a")
	assert.Same(t, a, store.GetOrCreate("a"))
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get("b")
	assert.False(t, ok)
}

func TestSessionStoreSweep(t *testing.T) {
	store := newStore(time.Minute)
	store.GetOrCreate("old")

	assert.Equal(t, 0, store.Sweep(time.Now()))
	assert.Equal(t, 1, store.Sweep(time.Now().Add(2*time.Minute)))
	assert.Equal(t, 0, store.Len())
}

func TestSessionStoreRunStops(t *testing.T) {
	store := newStore(time.Millisecond)
	store.GetOrCreate("x")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
