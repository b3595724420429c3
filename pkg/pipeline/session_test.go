package pipeline

import (
	"context"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/banana-grader/pkg/types"
)

func waitEntered(t *testing.T, g *gatePacer) {
	t.Helper()
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached pacing")
	}
}

func TestSessionSubmit(t *testing.T) {
	s := NewSession(losslessPipeline(nil))
	data := pngBytes(t, 40, 30, color.NRGBA{255, 255, 0, 255})

	_, ok := s.Current()
	assert.False(t, ok)

	out, err := s.Submit(context.Background(), data).Wait(context.Background())
	require.NoError(t, err)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Same(t, out, current)
	assert.False(t, s.Busy())
}

func TestSessionSupersede(t *testing.T) {
	gate := newGatePacer()
	s := NewSession(losslessPipeline(gate))

	first := s.Submit(context.Background(), pngBytes(t, 20, 20, color.NRGBA{255, 255, 0, 255}))
	waitEntered(t, gate)

	second := s.Submit(context.Background(), pngBytes(t, 20, 20, color.NRGBA{100, 200, 50, 255}))
	waitEntered(t, gate)

	out, err := first.Wait(context.Background())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, types.ErrCancelled)

	_, ok := s.Current()
	assert.False(t, ok, "superseded job must not publish a result")

	close(gate.open)
	out, err = second.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.Level3, out.Result.DominantLevel)

	current, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, types.Level3, current.Result.DominantLevel)
}

func TestSessionResetDiscardsRunningJob(t *testing.T) {
	gate := newGatePacer()
	s := NewSession(losslessPipeline(gate))

	job := s.Submit(context.Background(), pngBytes(t, 20, 20, color.NRGBA{255, 255, 0, 255}))
	waitEntered(t, gate)
	assert.True(t, s.Busy())

	s.Reset()
	close(gate.open)

	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("job did not finish after reset")
	}

	out, err := job.Wait(context.Background())
	assert.Nil(t, out)
	assert.True(t, types.IsCancelled(err))

	_, ok := s.Current()
	assert.False(t, ok)
	assert.False(t, s.Busy())
}

func TestSessionResetClearsResult(t *testing.T) {
	s := NewSession(losslessPipeline(nil))
	_, err := s.Submit(context.Background(), pngBytes(t, 10, 10, color.NRGBA{0, 0, 0, 255})).Wait(context.Background())
	require.NoError(t, err)

	before := s.IdleSince()
	s.Reset()

	_, ok := s.Current()
	assert.False(t, ok)
	assert.False(t, s.IdleSince().Before(before))
}

func TestJobWaitContext(t *testing.T) {
	gate := newGatePacer()
	s := NewSession(losslessPipeline(gate))
	job := s.Submit(context.Background(), pngBytes(t, 10, 10, color.NRGBA{0, 0, 0, 255}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := job.Wait(ctx)
	assert.ErrorIs(t, err, types.ErrCancelled)

	s.Reset()
	<-job.Done()
}
