package sim

import (
	"encoding/binary"
	"math"
	"math/rand"
)

// SeedRadius bounds the sphere particles are reseeded into.
const SeedRadius float32 = 2.0

// State holds the particle population as index-aligned SoA arrays. A particle
// is identified solely by its index; the three arrays always have equal length
// for the lifetime of one GPU generation.
type State struct {
	Pos [][3]float32
	Vel [][3]float32
	Col [][3]float32
}

// NewState seeds count particles uniformly inside a sphere of SeedRadius.
// The cube-root scaling of the radial coordinate makes the distribution
// volumetrically uniform rather than center-biased. Velocities get a small
// random kick so the population does not start perfectly symmetric; colors
// are a deterministic function of the seed position.
func NewState(count int, rng *rand.Rand) *State {
	s := &State{
		Pos: make([][3]float32, count),
		Vel: make([][3]float32, count),
		Col: make([][3]float32, count),
	}
	for i := 0; i < count; i++ {
		// Direction from a gaussian triple, radius cube-root scaled.
		x, y, z := rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()
		n := math.Sqrt(x*x + y*y + z*z)
		if n < 1e-9 {
			n = 1
		}
		r := float64(SeedRadius) * math.Cbrt(rng.Float64())
		s.Pos[i] = [3]float32{
			float32(x / n * r),
			float32(y / n * r),
			float32(z / n * r),
		}
		s.Vel[i] = [3]float32{
			(rng.Float32() - 0.5) * 0.1,
			(rng.Float32() - 0.5) * 0.1,
			(rng.Float32() - 0.5) * 0.1,
		}
		s.Col[i] = [3]float32{
			0.5 + 0.5*s.Pos[i][0]/SeedRadius,
			0.5 + 0.5*s.Pos[i][1]/SeedRadius,
			0.5 + 0.5*s.Pos[i][2]/SeedRadius,
		}
	}
	return s
}

// Len returns the particle count.
func (s *State) Len() int { return len(s.Pos) }

// PackVec3Array serializes one SoA array into tightly packed f32 triples.
func PackVec3Array(arr [][3]float32) []byte {
	buf := make([]byte, len(arr)*12)
	for i, v := range arr {
		off := i * 12
		binary.LittleEndian.PutUint32(buf[off+0:], math.Float32bits(v[0]))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(v[1]))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(v[2]))
	}
	return buf
}
