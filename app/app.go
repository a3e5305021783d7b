// Package app owns the WebGPU device lifecycle, the compute and render
// pipelines, and the frame scheduler that drives one relax dispatch plus one
// point draw per display refresh.
package app

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/surfel3d/surfel/config"
	"github.com/surfel3d/surfel/gpu"
	"github.com/surfel3d/surfel/shaders"
	"github.com/surfel3d/surfel/sim"
)

// App wires the platform surface, the GPU pipelines, the buffer manager and
// the frame scheduler together. It implements Backend: one Frame call is one
// submission containing the kernel dispatch and the point draw.
type App struct {
	Log Logger

	window *glfw.Window
	cfg    *config.Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface
	surfCfg  *wgpu.SurfaceConfiguration

	computePipeline *wgpu.ComputePipeline
	renderPipeline  *wgpu.RenderPipeline

	Buffers   *gpu.FieldBufferManager
	Scheduler *FrameScheduler

	prims         []sim.Cylinder
	params        sim.Params
	particleCount int

	hud *hud

	frameCount int
	fps        float64
	fpsTime    float64
	lastRender float64
}

func NewApp(window *glfw.Window, cfg *config.Config, log Logger) *App {
	if log == nil {
		log = NewNopLogger()
	}
	return &App{
		Log:    log,
		window: window,
		cfg:    cfg,
	}
}

// Init acquires the adapter, device and surface, builds both pipelines from
// the embedded WGSL, and allocates the first particle generation. Every
// failure here is fatal: the system refuses to start, there is no degraded
// mode.
func (a *App) Init() error {
	a.instance = wgpu.CreateInstance(nil)

	a.surface = a.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.window))

	adapter, err := a.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("no suitable adapter: %w", err)
	}
	a.adapter = adapter

	a.device, err = adapter.RequestDevice(nil)
	if err != nil {
		return fmt.Errorf("request device: %w", err)
	}
	a.queue = a.device.GetQueue()

	width, height := a.window.GetFramebufferSize()
	caps := a.surface.GetCapabilities(adapter)
	a.surfCfg = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.surface.Configure(adapter, a.device, a.surfCfg)

	if err := a.createPipelines(); err != nil {
		return err
	}

	a.Buffers = gpu.NewFieldBufferManager(a.device)
	if err := a.Buffers.CreateDepthTexture(uint32(width), uint32(height)); err != nil {
		return err
	}

	a.prims = a.cfg.Cylinders()
	a.particleCount = a.cfg.Simulation.ParticleCount
	a.params = sim.Params{
		Aspect:             aspectRatio(width, height),
		NumPrimitives:      uint32(len(a.prims)),
		RepulsionStrength:  a.cfg.Simulation.RepulsionStrength,
		AttractionStrength: a.cfg.Simulation.AttractionStrength,
	}

	gen, err := a.Buffers.BuildGeneration(a.particleCount, a.prims, a.cfg.Simulation.Seed,
		a.computePipeline, a.renderPipeline)
	if err != nil {
		return fmt.Errorf("build initial generation: %w", err)
	}
	a.Buffers.Swap(gen)

	a.Scheduler = NewFrameScheduler(a, &a.params, Orbit{
		Radius:       a.cfg.Orbit.Radius,
		Height:       a.cfg.Orbit.Height,
		AngularSpeed: a.cfg.Orbit.AngularSpeed,
	}, a.Log)

	// HUD is optional: a missing font is a warning, not a startup failure.
	if a.cfg.HUD.FontPath != "" {
		h, err := newHUD(a.device, a.queue, a.surfCfg.Format, a.cfg.HUD.FontPath, a.cfg.HUD.FontSize)
		if err != nil {
			a.Log.Warnf("HUD disabled: %v", err)
		} else {
			a.hud = h
		}
	}

	a.Log.Infof("initialized: %d particles, %d primitives, generation %s",
		a.particleCount, len(a.prims), a.Buffers.Active().ID)
	return nil
}

func (a *App) createPipelines() error {
	// The neighbor stride is a build-time constant of the kernel; the
	// embedded source carries the full-scan default.
	code := shaders.RelaxWGSL
	if stride := a.cfg.Simulation.NeighborStride; stride > 1 {
		code = strings.Replace(code,
			"const NEIGHBOR_STRIDE: u32 = 1u;",
			fmt.Sprintf("const NEIGHBOR_STRIDE: u32 = %du;", stride), 1)
	}

	csModule, err := a.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Relax CS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return fmt.Errorf("compile relax kernel: %w", err)
	}
	defer csModule.Release()

	a.computePipeline, err = a.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: "Relax Pipeline",
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     csModule,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return fmt.Errorf("create relax pipeline: %w", err)
	}

	psModule, err := a.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Points VS/FS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.PointsWGSL},
	})
	if err != nil {
		return fmt.Errorf("compile points shader: %w", err)
	}
	defer psModule.Release()

	a.renderPipeline, err = a.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "Points Pipeline",
		Vertex: wgpu.VertexState{
			Module:     psModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     psModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: a.surfCfg.Format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilReadMask:   0xFFFFFFFF,
			StencilWriteMask:  0xFFFFFFFF,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("create points pipeline: %w", err)
	}
	return nil
}

// Reconfigure rebuilds the particle generation for a new count. The scheduler
// is halted for the duration so no dispatch races the teardown; on failure
// the old generation stays active and the loop resumes against it.
func (a *App) Reconfigure(particleCount int) error {
	wasRunning := a.Scheduler.Running()
	a.Scheduler.Stop()

	gen, err := a.Buffers.BuildGeneration(particleCount, a.prims, a.cfg.Simulation.Seed,
		a.computePipeline, a.renderPipeline)
	if err != nil {
		if wasRunning {
			a.Scheduler.Start()
		}
		return fmt.Errorf("reconfigure to %d particles: %w", particleCount, err)
	}

	a.Buffers.Swap(gen)
	a.particleCount = particleCount
	a.Log.Infof("reconfigured: %d particles, generation %s", particleCount, gen.ID)

	if wasRunning {
		a.Scheduler.Start()
	}
	return nil
}

// SetParticleCount is the structural tuning event: it triggers a full
// generation rebuild.
func (a *App) SetParticleCount(n int) error {
	if n == a.particleCount {
		return nil
	}
	return a.Reconfigure(n)
}

// SetRepulsionStrength patches the shared parameter block in place.
func (a *App) SetRepulsionStrength(v float32) {
	a.params.RepulsionStrength = v
}

// SetAttractionStrength patches the shared parameter block in place.
func (a *App) SetAttractionStrength(v float32) {
	a.params.AttractionStrength = v
}

// RepulsionStrength returns the current repulsion scalar.
func (a *App) RepulsionStrength() float32 { return a.params.RepulsionStrength }

// AttractionStrength returns the current attraction scalar.
func (a *App) AttractionStrength() float32 { return a.params.AttractionStrength }

// ParticleCount returns the active generation's particle count.
func (a *App) ParticleCount() int { return a.particleCount }

// Resize reconfigures the swapchain and depth target and updates the aspect
// ratio. Particle state is untouched.
func (a *App) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	a.surfCfg.Width = uint32(width)
	a.surfCfg.Height = uint32(height)
	a.surface.Configure(a.adapter, a.device, a.surfCfg)
	if err := a.Buffers.CreateDepthTexture(uint32(width), uint32(height)); err != nil {
		a.Log.Errorf("resize depth target: %v", err)
		return
	}
	a.params.Aspect = aspectRatio(width, height)
}

// aspectRatio is the exact projection aspect for a framebuffer size. It is
// the only particle-visible effect of a resize; buffers are never touched.
func aspectRatio(width, height int) float32 {
	return float32(width) / float32(height)
}

// Frame implements Backend: write the parameter block, then submit one
// command buffer holding the kernel dispatch and the point draw. The queue's
// internal ordering makes the compute writes visible to the draw; there is
// no blocking wait for GPU completion.
func (a *App) Frame(p *sim.Params) error {
	gen := a.Buffers.Active()
	if gen == nil {
		return fmt.Errorf("no active generation")
	}
	if err := a.Buffers.WriteParams(p); err != nil {
		return err
	}

	surfaceTex, err := a.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	defer surfaceTex.Release()

	view, err := surfaceTex.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create surface view: %w", err)
	}
	defer view.Release()

	encoder, err := a.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}

	cPass := encoder.BeginComputePass(nil)
	cPass.SetPipeline(a.computePipeline)
	cPass.SetBindGroup(0, gen.ComputeBindGroup, nil)
	groups := (uint32(gen.Count) + sim.WorkgroupSize - 1) / sim.WorkgroupSize
	cPass.DispatchWorkgroups(groups, 1, 1)
	if err := cPass.End(); err != nil {
		return fmt.Errorf("end compute pass: %w", err)
	}

	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.02, G: 0.02, B: 0.03, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            a.Buffers.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		},
	})
	rPass.SetPipeline(a.renderPipeline)
	rPass.SetBindGroup(0, gen.RenderBindGroup, nil)
	rPass.Draw(uint32(gen.Count)*6, 1, 0, 0)

	if a.hud != nil {
		a.hud.draw(rPass, a.hudLines(), int(a.surfCfg.Width), int(a.surfCfg.Height))
	}

	if err := rPass.End(); err != nil {
		return fmt.Errorf("end render pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	a.queue.Submit(cmd)
	a.surface.Present()

	a.tickFPS()
	return nil
}

func (a *App) hudLines() string {
	return fmt.Sprintf("FPS %.1f\nparticles %d\nrepulsion %.2f  attraction %.2f",
		a.fps, a.particleCount, a.params.RepulsionStrength, a.params.AttractionStrength)
}

func (a *App) tickFPS() {
	now := glfw.GetTime()
	if a.lastRender > 0 {
		a.frameCount++
		a.fpsTime += now - a.lastRender
		if a.fpsTime >= 1.0 {
			a.fps = float64(a.frameCount) / a.fpsTime
			a.frameCount = 0
			a.fpsTime = 0
		}
	}
	a.lastRender = now
}

// Release tears down all GPU resources. The window belongs to the caller.
func (a *App) Release() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.hud != nil {
		a.hud.release()
	}
	if a.Buffers != nil {
		a.Buffers.ReleaseAll()
	}
	if a.renderPipeline != nil {
		a.renderPipeline.Release()
	}
	if a.computePipeline != nil {
		a.computePipeline.Release()
	}
	if a.device != nil {
		a.device.Release()
	}
	if a.surface != nil {
		a.surface.Release()
	}
	if a.instance != nil {
		a.instance.Release()
	}
}
