package app

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfel3d/surfel/sim"
)

// recordingBackend captures a copy of the parameter block at every frame.
type recordingBackend struct {
	frames []sim.Params
	failAt int // frame index that returns an error, -1 = never
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{failAt: -1}
}

func (b *recordingBackend) Frame(p *sim.Params) error {
	if b.failAt >= 0 && len(b.frames) == b.failAt {
		return errors.New("device lost")
	}
	b.frames = append(b.frames, *p)
	return nil
}

func TestSchedulerIdleByDefault(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	require.NoError(t, s.Step(0.0))
	require.NoError(t, s.Step(1.0))
	assert.Empty(t, backend.frames, "idle scheduler must not issue frames")
}

func TestSchedulerFirstTickHasZeroDt(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(10.0))
	require.Len(t, backend.frames, 1)
	assert.Zero(t, backend.frames[0].Dt)
	assert.Zero(t, backend.frames[0].Time)
}

func TestSchedulerDtClampAfterStall(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	// Window dragged, process paused for two seconds.
	require.NoError(t, s.Step(2.0))
	require.Len(t, backend.frames, 2)
	assert.InDelta(t, sim.MaxDt, backend.frames[1].Dt, 1e-7)
	assert.LessOrEqual(t, backend.frames[1].Dt, float32(sim.MaxDt))
}

func TestSchedulerNormalDtPassesThrough(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	require.NoError(t, s.Step(1.0/60.0))
	assert.InDelta(t, 1.0/60.0, backend.frames[1].Dt, 1e-6)
	assert.InDelta(t, 1.0/60.0, backend.frames[1].Time, 1e-6)
}

func TestSchedulerOrbitCamera(t *testing.T) {
	backend := newRecordingBackend()
	orbit := Orbit{Radius: 6, Height: 2, AngularSpeed: 0.4}
	s := NewFrameScheduler(backend, &sim.Params{}, orbit, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	require.NoError(t, s.Step(0.5))

	elapsed := backend.frames[1].Time
	theta := float64(elapsed * orbit.AngularSpeed)
	cam := backend.frames[1].CameraPos
	assert.InDelta(t, 6*math.Sin(theta), float64(cam[0]), 1e-5)
	assert.InDelta(t, 2*math.Sin(theta*0.5), float64(cam[1]), 1e-5)
	assert.InDelta(t, 6*math.Cos(theta), float64(cam[2]), 1e-5)

	// The camera stays on the orbit cylinder.
	r := math.Hypot(float64(cam[0]), float64(cam[2]))
	assert.InDelta(t, 6.0, r, 1e-4)
}

func TestSchedulerIdlesOnFrameError(t *testing.T) {
	backend := newRecordingBackend()
	backend.failAt = 1
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	err := s.Step(0.016)
	require.Error(t, err)
	assert.False(t, s.Running())
	assert.ErrorIs(t, s.LastErr(), err)

	// Subsequent steps are no-ops until an explicit restart.
	require.NoError(t, s.Step(0.032))
	assert.Len(t, backend.frames, 1)
}

func TestSchedulerRestartResetsClock(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	s.Stop()

	// A long pause while idle must not leak into the next running dt.
	s.Start()
	require.NoError(t, s.Step(100.0))
	require.Len(t, backend.frames, 2)
	assert.Zero(t, backend.frames[1].Dt)
	assert.Nil(t, s.LastErr())
}

func TestSchedulerDoesNotTouchAspect(t *testing.T) {
	backend := newRecordingBackend()
	params := sim.Params{Aspect: 1.78}
	s := NewFrameScheduler(backend, &params, Orbit{Radius: 3, AngularSpeed: 1}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	require.NoError(t, s.Step(0.016))
	for _, f := range backend.frames {
		assert.InDelta(t, 1.78, f.Aspect, 1e-7)
	}
}

func TestSchedulerElapsedAccumulatesClampedTime(t *testing.T) {
	backend := newRecordingBackend()
	s := NewFrameScheduler(backend, &sim.Params{}, Orbit{}, nil)

	s.Start()
	require.NoError(t, s.Step(0.0))
	require.NoError(t, s.Step(5.0)) // clamped to MaxDt
	require.NoError(t, s.Step(5.0 + 1.0/60.0))
	assert.InDelta(t, float64(sim.MaxDt)+1.0/60.0, float64(s.Elapsed()), 1e-5)
}
