package sim

import (
	"encoding/binary"
	"math"
)

// MaxDt caps the timestep fed into integration. Wall-clock deltas above this
// (window drags, debugger stalls) would otherwise blow up the Euler step.
const MaxDt float32 = 0.033

// ParamsByteSize is the packed size of Params on the GPU.
const ParamsByteSize = 48

// Params is the per-frame uniform block shared by the relax kernel and the
// point rasterizer. A single instance is mutated in place by the scheduler
// and by user-driven tuning events.
type Params struct {
	CameraPos          [3]float32
	Aspect             float32
	Time               float32
	Dt                 float32
	NumPrimitives      uint32
	RepulsionStrength  float32
	AttractionStrength float32
}

// Pack serializes Params into the fixed 48-byte uniform layout:
//
//	0  camera_pos: vec3<f32>
//	12 aspect: f32
//	16 time: f32
//	20 dt: f32
//	24 num_primitives: u32
//	28 pad
//	32 repulsion: f32
//	36 attraction: f32
//	40 pad (8 bytes)
func (p *Params) Pack() []byte {
	buf := make([]byte, ParamsByteSize)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(p.CameraPos[0]))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(p.CameraPos[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(p.CameraPos[2]))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(p.Aspect))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(p.Time))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(p.Dt))
	binary.LittleEndian.PutUint32(buf[24:], p.NumPrimitives)
	binary.LittleEndian.PutUint32(buf[32:], math.Float32bits(p.RepulsionStrength))
	binary.LittleEndian.PutUint32(buf[36:], math.Float32bits(p.AttractionStrength))
	return buf
}

// ClampDt limits a measured wall-clock delta to the integration cap.
func ClampDt(dt float32) float32 {
	if dt > MaxDt {
		return MaxDt
	}
	if dt < 0 {
		return 0
	}
	return dt
}
