package app

import (
	"math"

	"github.com/surfel3d/surfel/sim"
)

// Backend executes one frame against the current particle generation:
// exactly one kernel dispatch covering all particles followed by one draw.
// The GPU App implements it; tests and the headless runner substitute their
// own.
type Backend interface {
	Frame(p *sim.Params) error
}

// Orbit describes the closed camera path the scheduler advances every tick.
type Orbit struct {
	Radius       float32
	Height       float32
	AngularSpeed float32
}

// FrameScheduler owns the per-frame timing state and the Idle/Running state
// machine. It is re-armed externally once per display refresh (or driven by
// a fixed-step harness); it never schedules itself concurrently.
type FrameScheduler struct {
	log     Logger
	backend Backend
	orbit   Orbit
	params  *sim.Params

	running  bool
	hasTick  bool
	lastTick float64
	elapsed  float32
	lastErr  error
}

func NewFrameScheduler(backend Backend, params *sim.Params, orbit Orbit, log Logger) *FrameScheduler {
	if log == nil {
		log = NewNopLogger()
	}
	return &FrameScheduler{
		log:     log,
		backend: backend,
		orbit:   orbit,
		params:  params,
	}
}

// Start transitions Idle -> Running and resets the tick clock, so the first
// step after a restart sees dt 0 instead of the stop gap.
func (s *FrameScheduler) Start() {
	s.running = true
	s.hasTick = false
	s.lastErr = nil
}

// Stop transitions Running -> Idle. The current tick, if any, has already
// been submitted; nothing in flight is aborted.
func (s *FrameScheduler) Stop() {
	s.running = false
}

func (s *FrameScheduler) Running() bool { return s.running }

// LastErr reports the failure that knocked the scheduler to Idle, if any.
func (s *FrameScheduler) LastErr() error { return s.lastErr }

// Elapsed returns the accumulated simulation time in seconds.
func (s *FrameScheduler) Elapsed() float32 { return s.elapsed }

// Step runs one scheduling tick at wall-clock time now (seconds): clamp the
// delta, advance the orbital camera, write the parameter block, then issue
// one backend frame. A frame failure transitions to Idle and is surfaced;
// the scheduler never retries on its own.
func (s *FrameScheduler) Step(now float64) error {
	if !s.running {
		return nil
	}

	var dt float32
	if s.hasTick {
		dt = sim.ClampDt(float32(now - s.lastTick))
	}
	s.lastTick = now
	s.hasTick = true
	s.elapsed += dt

	theta := s.elapsed * s.orbit.AngularSpeed
	s.params.CameraPos = [3]float32{
		s.orbit.Radius * float32(math.Sin(float64(theta))),
		s.orbit.Height * float32(math.Sin(float64(theta)*0.5)),
		s.orbit.Radius * float32(math.Cos(float64(theta))),
	}
	s.params.Time = s.elapsed
	s.params.Dt = dt

	if err := s.backend.Frame(s.params); err != nil {
		s.running = false
		s.lastErr = err
		s.log.Errorf("frame failed, scheduler idle: %v", err)
		return err
	}
	return nil
}
