package gpu

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfel3d/surfel/sim"
)

func TestGenerationReleaseNilSafe(t *testing.T) {
	var g *Generation
	assert.NotPanics(t, func() { g.Release() })

	// Partially built generation: no buffers allocated yet.
	assert.NotPanics(t, func() { (&Generation{ID: "partial", Count: 128}).Release() })
}

func TestSwapReplacesActive(t *testing.T) {
	m := NewFieldBufferManager(nil)
	require.Nil(t, m.Active())

	first := &Generation{ID: "first", Count: 64}
	m.Swap(first) // previous active is nil, must not panic
	assert.Same(t, first, m.Active())

	second := &Generation{ID: "second", Count: 128}
	m.Swap(second)
	assert.Same(t, second, m.Active())
	assert.Equal(t, 128, m.Active().Count)
}

func TestBuildGenerationRejectsBadInput(t *testing.T) {
	m := NewFieldBufferManager(nil)

	gen, err := m.BuildGeneration(0, []sim.Cylinder{{Radius: 1, Height: 1}}, 1, nil, nil)
	require.Error(t, err)
	assert.Nil(t, gen)

	gen, err = m.BuildGeneration(64, nil, 1, nil, nil)
	require.Error(t, err)
	assert.Nil(t, gen)
}

func TestBuildGenerationFailedBuildLeavesNoBundle(t *testing.T) {
	orig := createBufferInit
	defer func() { createBufferInit = orig }()

	// Fail the third allocation: by then the bundle already holds two
	// earlier buffers and must come back through the release path, not
	// escape half-built.
	calls := 0
	createBufferInit = func(device *wgpu.Device, desc *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
		calls++
		if calls == 3 {
			return nil, errors.New("allocation failed")
		}
		return nil, nil
	}

	m := NewFieldBufferManager(nil)
	active := &Generation{ID: "active", Count: 64}
	m.Swap(active)

	gen, err := m.BuildGeneration(64, []sim.Cylinder{{Radius: 1, Height: 2}}, 1, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocation failed")
	assert.Nil(t, gen)
	assert.Equal(t, 3, calls, "build must stop at the first failed allocation")

	// The old generation is untouched by a failed build.
	assert.Same(t, active, m.Active())
}

func TestWriteParamsRequiresActiveGeneration(t *testing.T) {
	m := NewFieldBufferManager(nil)
	err := m.WriteParams(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active generation")
}

func TestCreateDepthTextureRejectsZeroViewport(t *testing.T) {
	m := NewFieldBufferManager(nil)
	require.Error(t, m.CreateDepthTexture(0, 720))
	require.Error(t, m.CreateDepthTexture(1280, 0))
}
