package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Kernel tuning constants, shared verbatim with shaders/relax.wgsl.
const (
	RepulsionCutoff   float32 = 0.6
	MinPairDistance   float32 = 1e-4
	RepulsionSoften   float32 = 0.01
	RecenterRadius    float32 = 5.0
	RecenterStrength  float32 = 0.01
	JitterAmplitude   float32 = 0.01
	VelocityDamping   float32 = 0.98
	ColorBlendFactor  float32 = 0.05
	StandoffDistance  float32 = 0.0
	WorkgroupSize             = 64
)

// Options are the runtime-tunable knobs of the kernel that are not part of
// the per-frame Params block.
type Options struct {
	// NeighborStride subsamples the repulsion scan: 1 visits every neighbor
	// (full O(n^2) pass), k visits every k-th. A performance/quality tradeoff,
	// not a correctness switch.
	NeighborStride int

	// NormalSimilarityK amplifies repulsion between particles whose surface
	// normals are near-parallel, biasing separation along the surface instead
	// of across it. 0 disables the term (weight 1 for every pair).
	NormalSimilarityK float32
}

// DefaultOptions matches the GPU kernel configuration.
func DefaultOptions() Options {
	return Options{NeighborStride: 1, NormalSimilarityK: 0}
}

// Step advances the particle state by one kernel pass on the CPU. It is the
// reference implementation of the relax compute shader: same force terms,
// same constants, same integration order. The GPU path reads neighbor
// positions mixed-epoch (some updated, some not); this implementation updates
// in place, which is one of the schedules the GPU is allowed to produce.
func Step(s *State, prims []Cylinder, p *Params, opt Options) {
	stride := opt.NeighborStride
	if stride < 1 {
		stride = 1
	}
	n := s.Len()

	// Precompute unit surface normals only when the similarity weight is on;
	// the plain kernel never needs a neighbor's gradient.
	var normals []mgl32.Vec3
	if opt.NormalSimilarityK != 0 {
		normals = make([]mgl32.Vec3, n)
		for i := 0; i < n; i++ {
			g := nearestGradient(prims, vec3(s.Pos[i]))
			if l := g.Len(); l > 1e-9 {
				g = g.Mul(1 / l)
			}
			normals[i] = g
		}
	}

	for i := 0; i < n; i++ {
		pos := vec3(s.Pos[i])
		total := mgl32.Vec3{}

		// SDF attraction, tracking the nearest primitive for coloring.
		// Strict less-than keeps the first primitive on exact ties.
		bestIdx := 0
		bestAbs := float32(math.Inf(1))
		var bestDist float32
		for k := range prims {
			d := prims[k].Distance(pos)
			total = total.Add(attractionTerm(prims[k], pos, d, p.AttractionStrength))
			if a := abs32(d); a < bestAbs {
				bestAbs = a
				bestDist = d
				bestIdx = k
			}
		}

		// Pairwise repulsion within the cutoff shell.
		for j := 0; j < n; j += stride {
			if j == i {
				continue
			}
			w := float32(1)
			if normals != nil {
				dot := normals[i].Dot(normals[j])
				w += opt.NormalSimilarityK * dot * dot
			}
			total = total.Add(repulsionTerm(pos, vec3(s.Pos[j]), p.RepulsionStrength, w))
		}

		// Weak re-centering beyond the drift radius.
		if pos.Len() > RecenterRadius {
			total = total.Sub(pos.Mul(RecenterStrength))
		}

		// Deterministic trig jitter keeps the field from freezing into a
		// perfectly static equilibrium.
		fi := float32(i)
		total = total.Add(mgl32.Vec3{
			float32(math.Sin(float64(p.Time*1.7 + fi*12.9898))),
			float32(math.Cos(float64(p.Time*2.3 + fi*78.233))),
			float32(math.Sin(float64(p.Time*1.3 + fi*37.719))),
		}.Mul(JitterAmplitude))

		// Damp, then semi-implicit Euler.
		vel := vec3(s.Vel[i]).Mul(VelocityDamping)
		vel = vel.Add(total.Mul(p.Dt))
		pos = pos.Add(vel.Mul(p.Dt))

		s.Vel[i] = [3]float32{vel.X(), vel.Y(), vel.Z()}
		s.Pos[i] = [3]float32{pos.X(), pos.Y(), pos.Z()}

		// Exponential blend toward the nearest primitive's color.
		target := surfaceColor(bestIdx, bestDist)
		for c := 0; c < 3; c++ {
			s.Col[i][c] += (target[c] - s.Col[i][c]) * ColorBlendFactor
		}
	}
}

// attractionTerm is one primitive's pull toward its surface, given the
// already-evaluated signed distance at pos. Step accumulates through this.
func attractionTerm(c Cylinder, pos mgl32.Vec3, dist, strength float32) mgl32.Vec3 {
	return c.Gradient(pos).Mul(-(dist - StandoffDistance) * strength)
}

// attraction sums attractionTerm over the whole primitive set.
func attraction(prims []Cylinder, pos mgl32.Vec3, strength float32) mgl32.Vec3 {
	total := mgl32.Vec3{}
	for k := range prims {
		total = total.Add(attractionTerm(prims[k], pos, prims[k].Distance(pos), strength))
	}
	return total
}

// repulsionTerm evaluates one neighbor pair's contribution to particle i.
func repulsionTerm(pi, pj mgl32.Vec3, strength, weight float32) mgl32.Vec3 {
	dv := pi.Sub(pj)
	dist := dv.Len()
	if dist < MinPairDistance || dist > RepulsionCutoff {
		return mgl32.Vec3{}
	}
	return dv.Mul(1 / dist).Mul(strength * weight / (dist*dist + RepulsionSoften))
}

func nearestGradient(prims []Cylinder, pos mgl32.Vec3) mgl32.Vec3 {
	bestIdx := 0
	bestAbs := float32(math.Inf(1))
	for k := range prims {
		if a := abs32(prims[k].Distance(pos)); a < bestAbs {
			bestAbs = a
			bestIdx = k
		}
	}
	return prims[bestIdx].Gradient(pos)
}

// surfaceColor assigns each primitive a golden-angle rotated hue, with
// saturation falling off as the particle drifts from the surface.
func surfaceColor(primIdx int, dist float32) [3]float32 {
	hue := float32(math.Mod(float64(primIdx)*0.381966, 1.0))
	sat := 1.0 / (1.0 + 4.0*abs32(dist))
	return hsvToRGB(hue, sat, 1.0)
}

func hsvToRGB(h, s, v float32) [3]float32 {
	i := int(h * 6)
	f := h*6 - float32(i)
	p := v * (1 - s)
	q := v * (1 - f*s)
	t := v * (1 - (1-f)*s)
	switch i % 6 {
	case 0:
		return [3]float32{v, t, p}
	case 1:
		return [3]float32{q, v, p}
	case 2:
		return [3]float32{p, v, t}
	case 3:
		return [3]float32{p, q, v}
	case 4:
		return [3]float32{t, p, v}
	default:
		return [3]float32{v, p, q}
	}
}

func vec3(v [3]float32) mgl32.Vec3 { return mgl32.Vec3{v[0], v[1], v[2]} }

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
