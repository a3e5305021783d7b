// Package gpu owns the device-resident side of the simulation: the particle,
// primitive and parameter buffers, the bind groups referencing them, and the
// depth target. Buffers and bind groups are bundled into generations that are
// built whole and swapped atomically, so no frame ever sees a half-built set.
package gpu

import (
	"fmt"
	"math/rand"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/google/uuid"

	"github.com/surfel3d/surfel/sim"
)

// Generation is one self-consistent bundle of GPU resources sized for a fixed
// particle count and primitive set. Bind groups hold references to specific
// buffer allocations, so a generation is rebuilt wholesale rather than
// patched; stale bindings are a correctness bug, not a performance one.
type Generation struct {
	ID    string
	Count int

	PositionBuf  *wgpu.Buffer
	VelocityBuf  *wgpu.Buffer
	ColorBuf     *wgpu.Buffer
	PrimitiveBuf *wgpu.Buffer
	ParamsBuf    *wgpu.Buffer

	ComputeBindGroup *wgpu.BindGroup
	RenderBindGroup  *wgpu.BindGroup
}

// Release frees every resource of the generation. Safe on partially built
// generations.
func (g *Generation) Release() {
	if g == nil {
		return
	}
	if g.RenderBindGroup != nil {
		g.RenderBindGroup.Release()
	}
	if g.ComputeBindGroup != nil {
		g.ComputeBindGroup.Release()
	}
	for _, b := range []*wgpu.Buffer{g.ParamsBuf, g.PrimitiveBuf, g.ColorBuf, g.VelocityBuf, g.PositionBuf} {
		if b != nil {
			b.Release()
		}
	}
}

// FieldBufferManager allocates and tears down generations and the depth
// target. It never issues dispatches itself; the scheduler drives it.
type FieldBufferManager struct {
	Device *wgpu.Device

	active *Generation

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView
}

func NewFieldBufferManager(device *wgpu.Device) *FieldBufferManager {
	return &FieldBufferManager{Device: device}
}

// BuildGeneration allocates and seeds a complete generation for the given
// particle count and primitive set. The active generation is not touched: on
// any failure the partial build is released and the old generation stays
// valid, so reconfiguration is all-or-nothing.
func (m *FieldBufferManager) BuildGeneration(count int, prims []sim.Cylinder, seed int64,
	computePipeline *wgpu.ComputePipeline, renderPipeline *wgpu.RenderPipeline) (*Generation, error) {

	if count <= 0 {
		return nil, fmt.Errorf("particle count must be positive, got %d", count)
	}
	if err := sim.ValidatePrimitives(prims); err != nil {
		return nil, fmt.Errorf("invalid primitive set: %w", err)
	}

	state := sim.NewState(count, rand.New(rand.NewSource(seed)))

	gen := &Generation{
		ID:    uuid.NewString(),
		Count: count,
	}
	if err := m.populate(gen, state, prims, computePipeline, renderPipeline); err != nil {
		gen.Release()
		return nil, err
	}
	return gen, nil
}

// populate fills gen's buffers and bind groups in place. On error the caller
// releases gen; any resources already assigned stay reachable through it.
func (m *FieldBufferManager) populate(gen *Generation, state *sim.State, prims []sim.Cylinder,
	computePipeline *wgpu.ComputePipeline, renderPipeline *wgpu.RenderPipeline) error {

	var err error
	if gen.PositionBuf, err = m.createBuffer("Particle Positions", sim.PackVec3Array(state.Pos), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if gen.VelocityBuf, err = m.createBuffer("Particle Velocities", sim.PackVec3Array(state.Vel), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if gen.ColorBuf, err = m.createBuffer("Particle Colors", sim.PackVec3Array(state.Col), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if gen.PrimitiveBuf, err = m.createBuffer("Primitive Set", sim.PackPrimitives(prims), wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if gen.ParamsBuf, err = m.createBuffer("Sim Params", make([]byte, sim.ParamsByteSize), wgpu.BufferUsageUniform); err != nil {
		return err
	}

	computeLayout := computePipeline.GetBindGroupLayout(0)
	defer computeLayout.Release()
	gen.ComputeBindGroup, err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Relax Bind Group",
		Layout: computeLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: gen.ParamsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: gen.PositionBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: gen.VelocityBuf, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: gen.ColorBuf, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: gen.PrimitiveBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("create compute bind group: %w", err)
	}

	renderLayout := renderPipeline.GetBindGroupLayout(0)
	defer renderLayout.Release()
	gen.RenderBindGroup, err = m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Points Bind Group",
		Layout: renderLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: gen.ParamsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: gen.PositionBuf, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: gen.ColorBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("create render bind group: %w", err)
	}

	return nil
}

// Swap installs gen as the active generation and releases the previous one.
// Callers must have stopped the frame loop first; no dispatch may be in
// flight against the outgoing generation.
func (m *FieldBufferManager) Swap(gen *Generation) {
	old := m.active
	m.active = gen
	old.Release()
}

// Active returns the current generation, nil before the first build.
func (m *FieldBufferManager) Active() *Generation { return m.active }

// WriteParams packs the parameter block into the active generation's uniform
// buffer. One write per tick, strictly before the dispatch that reads it.
func (m *FieldBufferManager) WriteParams(p *sim.Params) error {
	if m.active == nil {
		return fmt.Errorf("no active generation")
	}
	m.Device.GetQueue().WriteBuffer(m.active.ParamsBuf, 0, p.Pack())
	return nil
}

// CreateDepthTexture (re)builds the depth target for the given viewport.
// Called at init and on resize only; particle buffers are never touched here.
func (m *FieldBufferManager) CreateDepthTexture(width, height uint32) error {
	if width == 0 || height == 0 {
		return fmt.Errorf("zero-sized depth target %dx%d", width, height)
	}
	if m.DepthView != nil {
		m.DepthView.Release()
		m.DepthView = nil
	}
	if m.DepthTexture != nil {
		m.DepthTexture.Release()
		m.DepthTexture = nil
	}

	tex, err := m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Depth Target",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("create depth texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return fmt.Errorf("create depth view: %w", err)
	}
	m.DepthTexture = tex
	m.DepthView = view
	return nil
}

// ReleaseAll tears down the active generation and the depth target.
func (m *FieldBufferManager) ReleaseAll() {
	if m.active != nil {
		m.active.Release()
		m.active = nil
	}
	if m.DepthView != nil {
		m.DepthView.Release()
		m.DepthView = nil
	}
	if m.DepthTexture != nil {
		m.DepthTexture.Release()
		m.DepthTexture = nil
	}
}

// createBufferInit indirects device allocation; build-failure paths are
// exercised by substituting a failing allocator.
var createBufferInit = func(device *wgpu.Device, desc *wgpu.BufferInitDescriptor) (*wgpu.Buffer, error) {
	return device.CreateBufferInit(desc)
}

func (m *FieldBufferManager) createBuffer(name string, data []byte, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := createBufferInit(m.Device, &wgpu.BufferInitDescriptor{
		Label:    name,
		Contents: data,
		Usage:    usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", name, err)
	}
	return buf, nil
}
