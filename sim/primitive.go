package sim

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// MaxPrimitives is the compile-time cap on the primitive set. The WGSL kernel
// declares a fixed-size array of this length; counts above it are rejected at
// configuration time, never inside the kernel.
const MaxPrimitives = 10

// PrimitiveByteSize is the packed size of one cylinder record: 5 contiguous
// little-endian f32 (center.xyz, radius, height).
const PrimitiveByteSize = 20

// GradientEps is the central-difference step used for SDF gradients.
const GradientEps float32 = 0.01

// Cylinder is a finite cylinder with a fixed vertical axis, described as a
// signed distance function (negative inside, positive outside). Height is the
// full extent along Y.
type Cylinder struct {
	Center mgl32.Vec3
	Radius float32
	Height float32
}

// Distance evaluates the exact signed distance from p to the cylinder surface.
func (c Cylinder) Distance(p mgl32.Vec3) float32 {
	dx := p.X() - c.Center.X()
	dz := p.Z() - c.Center.Z()
	radial := float32(math.Sqrt(float64(dx*dx+dz*dz))) - c.Radius
	axial := float32(math.Abs(float64(p.Y()-c.Center.Y()))) - c.Height*0.5

	outX := float32(math.Max(float64(radial), 0))
	outY := float32(math.Max(float64(axial), 0))
	outside := float32(math.Sqrt(float64(outX*outX + outY*outY)))
	inside := float32(math.Min(math.Max(float64(radial), float64(axial)), 0))
	return outside + inside
}

// Gradient approximates the SDF gradient at p by central finite differences.
// The kernel uses the same stencil, so the CPU and GPU paths agree to within
// floating point noise.
func (c Cylinder) Gradient(p mgl32.Vec3) mgl32.Vec3 {
	e := GradientEps
	return mgl32.Vec3{
		(c.Distance(mgl32.Vec3{p.X() + e, p.Y(), p.Z()}) - c.Distance(mgl32.Vec3{p.X() - e, p.Y(), p.Z()})) / (2 * e),
		(c.Distance(mgl32.Vec3{p.X(), p.Y() + e, p.Z()}) - c.Distance(mgl32.Vec3{p.X(), p.Y() - e, p.Z()})) / (2 * e),
		(c.Distance(mgl32.Vec3{p.X(), p.Y(), p.Z() + e}) - c.Distance(mgl32.Vec3{p.X(), p.Y(), p.Z() - e})) / (2 * e),
	}
}

// ValidatePrimitives rejects primitive sets the GPU kernel cannot represent.
func ValidatePrimitives(prims []Cylinder) error {
	if len(prims) == 0 {
		return fmt.Errorf("primitive set is empty")
	}
	if len(prims) > MaxPrimitives {
		return fmt.Errorf("primitive count %d exceeds cap %d", len(prims), MaxPrimitives)
	}
	for i, c := range prims {
		if c.Radius <= 0 || c.Height <= 0 {
			return fmt.Errorf("primitive %d has non-positive extent (radius=%g height=%g)", i, c.Radius, c.Height)
		}
	}
	return nil
}

// PackPrimitives serializes the primitive set into the flat GPU layout.
func PackPrimitives(prims []Cylinder) []byte {
	buf := make([]byte, len(prims)*PrimitiveByteSize)
	for i, c := range prims {
		off := i * PrimitiveByteSize
		binary.LittleEndian.PutUint32(buf[off+0:], math.Float32bits(c.Center.X()))
		binary.LittleEndian.PutUint32(buf[off+4:], math.Float32bits(c.Center.Y()))
		binary.LittleEndian.PutUint32(buf[off+8:], math.Float32bits(c.Center.Z()))
		binary.LittleEndian.PutUint32(buf[off+12:], math.Float32bits(c.Radius))
		binary.LittleEndian.PutUint32(buf[off+16:], math.Float32bits(c.Height))
	}
	return buf
}
