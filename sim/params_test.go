package sim

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestParamsPackLayout(t *testing.T) {
	p := &Params{
		CameraPos:          [3]float32{1.5, -2.25, 3.125},
		Aspect:             16.0 / 9.0,
		Time:               42.5,
		Dt:                 0.016,
		NumPrimitives:      3,
		RepulsionStrength:  0.7,
		AttractionStrength: 1.25,
	}

	buf := p.Pack()
	require.Len(t, buf, ParamsByteSize)

	assert.Equal(t, float32(1.5), f32At(buf, 0))
	assert.Equal(t, float32(-2.25), f32At(buf, 4))
	assert.Equal(t, float32(3.125), f32At(buf, 8))
	assert.Equal(t, float32(16.0/9.0), f32At(buf, 12))
	assert.Equal(t, float32(42.5), f32At(buf, 16))
	assert.Equal(t, float32(0.016), f32At(buf, 20))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(buf[24:]))
	assert.Equal(t, float32(0.7), f32At(buf, 32))
	assert.Equal(t, float32(1.25), f32At(buf, 36))

	// Padding stays zeroed.
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[28:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[40:]))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[44:]))
}

func TestClampDt(t *testing.T) {
	assert.Equal(t, float32(0.016), ClampDt(0.016))
	assert.Equal(t, MaxDt, ClampDt(0.5))
	assert.Equal(t, MaxDt, ClampDt(1e9)) // arbitrarily long stall
	assert.Equal(t, float32(0), ClampDt(-0.01))
}
