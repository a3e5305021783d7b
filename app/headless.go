package app

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/surfel3d/surfel/sim"
)

// CPUBackend runs the reference kernel in-process, with no GPU. It backs the
// headless runner and deterministic tests: drive it through a FrameScheduler
// with synthetic tick times for fixed-step runs.
type CPUBackend struct {
	State *sim.State
	Prims []sim.Cylinder
	Opts  sim.Options
}

func NewCPUBackend(count int, prims []sim.Cylinder, seed int64, opts sim.Options) (*CPUBackend, error) {
	if err := sim.ValidatePrimitives(prims); err != nil {
		return nil, err
	}
	return &CPUBackend{
		State: sim.NewState(count, rand.New(rand.NewSource(seed))),
		Prims: prims,
		Opts:  opts,
	}, nil
}

// Frame advances the particle state by one kernel pass.
func (b *CPUBackend) Frame(p *sim.Params) error {
	sim.Step(b.State, b.Prims, p, b.Opts)
	return nil
}

// MeanAbsDistance reports the population's mean unsigned distance to the
// nearest primitive surface, the headless runner's convergence metric.
func (b *CPUBackend) MeanAbsDistance() float64 {
	if b.State.Len() == 0 {
		return 0
	}
	sum := 0.0
	for _, pos := range b.State.Pos {
		p := mgl32.Vec3(pos)
		best := math.Inf(1)
		for _, c := range b.Prims {
			if d := math.Abs(float64(c.Distance(p))); d < best {
				best = d
			}
		}
		sum += best
	}
	return sum / float64(b.State.Len())
}
