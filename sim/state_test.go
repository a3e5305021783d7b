package sim

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateSeeding(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewState(2048, rng)

	require.Equal(t, 2048, s.Len())
	require.Len(t, s.Vel, 2048)
	require.Len(t, s.Col, 2048)

	for i, p := range s.Pos {
		r := math.Sqrt(float64(p[0]*p[0] + p[1]*p[1] + p[2]*p[2]))
		assert.LessOrEqual(t, r, float64(SeedRadius)+1e-6, "particle %d outside seed sphere", i)
	}
	for _, v := range s.Vel {
		for c := 0; c < 3; c++ {
			assert.LessOrEqual(t, math.Abs(float64(v[c])), 0.05+1e-6)
		}
	}
	for _, col := range s.Col {
		for c := 0; c < 3; c++ {
			assert.GreaterOrEqual(t, col[c], float32(0))
			assert.LessOrEqual(t, col[c], float32(1))
		}
	}
}

func TestNewStateDeterministic(t *testing.T) {
	a := NewState(64, rand.New(rand.NewSource(42)))
	b := NewState(64, rand.New(rand.NewSource(42)))
	assert.Equal(t, a.Pos, b.Pos)
	assert.Equal(t, a.Vel, b.Vel)
	assert.Equal(t, a.Col, b.Col)
}

func TestPackVec3Array(t *testing.T) {
	buf := PackVec3Array([][3]float32{{1, 2, 3}, {4, 5, 6}})
	require.Len(t, buf, 24)
	assert.Equal(t, float32(1), f32At(buf, 0))
	assert.Equal(t, float32(6), f32At(buf, 20))
}
