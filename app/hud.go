package app

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/surfel3d/surfel/shaders"
)

type textVertex struct {
	Pos   [2]float32
	UV    [2]float32
	Color [4]float32
}

type glyphInfo struct {
	uvMin [2]float32
	uvMax [2]float32
	size  [2]float32
	off   [2]float32
	adv   float32
}

// hud renders a small stats overlay (fps, particle count, strengths) from a
// glyph atlas baked at startup. Entirely optional; the simulation never
// depends on it.
type hud struct {
	queue *wgpu.Queue

	glyphs     map[rune]glyphInfo
	ascent     float32
	lineHeight float32

	pipeline  *wgpu.RenderPipeline
	bindGroup *wgpu.BindGroup
	atlasView *wgpu.TextureView
	sampler   *wgpu.Sampler

	vertexBuf   *wgpu.Buffer
	vertexCount uint32
}

const hudAtlasSize = 512

func newHUD(device *wgpu.Device, queue *wgpu.Queue, format wgpu.TextureFormat, fontPath string, fontSize float64) (*hud, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	f, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if fontSize <= 0 {
		fontSize = 32
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}

	atlas := image.NewAlpha(image.Rect(0, 0, hudAtlasSize, hudAtlasSize))
	glyphs := make(map[rune]glyphInfo)

	x, y := 2, 2
	rowHeight := 0
	for r := rune(32); r < 127; r++ {
		bounds, mask, maskp, adv, ok := face.Glyph(fixed.Point26_6{}, r)
		if !ok {
			continue
		}
		w := bounds.Dx()
		h := bounds.Dy()
		if x+w >= hudAtlasSize {
			x = 2
			y += rowHeight + 4
			rowHeight = 0
		}
		if y+h >= hudAtlasSize {
			break
		}
		draw.Draw(atlas, image.Rect(x, y, x+w, y+h), mask, maskp, draw.Src)
		glyphs[r] = glyphInfo{
			uvMin: [2]float32{float32(x) / hudAtlasSize, float32(y) / hudAtlasSize},
			uvMax: [2]float32{float32(x+w) / hudAtlasSize, float32(y+h) / hudAtlasSize},
			size:  [2]float32{float32(w), float32(h)},
			off:   [2]float32{float32(bounds.Min.X), float32(bounds.Min.Y)},
			adv:   float32(adv) / 64.0,
		}
		x += w + 4
		if h > rowHeight {
			rowHeight = h
		}
	}

	h := &hud{
		queue:  queue,
		glyphs: glyphs,
	}
	metrics := face.Metrics()
	h.ascent = float32(metrics.Ascent.Ceil())
	h.lineHeight = float32(metrics.Height.Ceil())

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "HUD Atlas",
		Size:          wgpu.Extent3D{Width: hudAtlasSize, Height: hudAtlasSize, DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatR8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("create atlas texture: %w", err)
	}
	queue.WriteTexture(tex.AsImageCopy(), atlas.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  hudAtlasSize,
		RowsPerImage: hudAtlasSize,
	}, &wgpu.Extent3D{Width: hudAtlasSize, Height: hudAtlasSize, DepthOrArrayLayers: 1})
	h.atlasView, err = tex.CreateView(nil)
	tex.Release()
	if err != nil {
		return nil, fmt.Errorf("create atlas view: %w", err)
	}

	mod, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "HUD Text",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.TextWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("compile text shader: %w", err)
	}
	defer mod.Release()

	h.pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "HUD Pipeline",
		Vertex: wgpu.VertexState{
			Module:     mod,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{{
				ArrayStride: uint64(unsafe.Sizeof(textVertex{})),
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
					{Format: wgpu.VertexFormatFloat32x4, Offset: 16, ShaderLocation: 2},
				},
			}},
		},
		Fragment: &wgpu.FragmentState{
			Module:     mod,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format: format,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOne,
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
			DepthWriteEnabled: false,
			DepthCompare:      wgpu.CompareFunctionAlways,
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
		return nil, fmt.Errorf("create HUD pipeline: %w", err)
	}

	h.sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}

	h.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Layout: h.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: h.atlasView},
			{Binding: 1, Sampler: h.sampler},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create HUD bind group: %w", err)
	}

	h.vertexBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "HUD VB",
		Size:  4096 * uint64(unsafe.Sizeof(textVertex{})),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create HUD vertex buffer: %w", err)
	}

	return h, nil
}

// buildVertices lays out text at the top-left corner in NDC.
func (h *hud) buildVertices(text string, screenW, screenH int) []textVertex {
	vertices := make([]textVertex, 0, len(text)*6)
	sw, sh := float32(screenW), float32(screenH)
	color := [4]float32{1, 1, 0.4, 1}

	startX := float32(10)
	posX := startX
	posY := float32(10) + h.ascent

	for _, r := range text {
		if r == '\n' {
			posX = startX
			posY += h.lineHeight
			continue
		}
		g, ok := h.glyphs[r]
		if !ok {
			continue
		}
		x0 := (posX+g.off[0])/sw*2.0 - 1.0
		y0 := 1.0 - (posY+g.off[1])/sh*2.0
		x1 := (posX+g.off[0]+g.size[0])/sw*2.0 - 1.0
		y1 := 1.0 - (posY+g.off[1]+g.size[1])/sh*2.0

		vertices = append(vertices,
			textVertex{Pos: [2]float32{x0, y0}, UV: g.uvMin, Color: color},
			textVertex{Pos: [2]float32{x1, y0}, UV: [2]float32{g.uvMax[0], g.uvMin[1]}, Color: color},
			textVertex{Pos: [2]float32{x0, y1}, UV: [2]float32{g.uvMin[0], g.uvMax[1]}, Color: color},
			textVertex{Pos: [2]float32{x1, y0}, UV: [2]float32{g.uvMax[0], g.uvMin[1]}, Color: color},
			textVertex{Pos: [2]float32{x1, y1}, UV: g.uvMax, Color: color},
			textVertex{Pos: [2]float32{x0, y1}, UV: [2]float32{g.uvMin[0], g.uvMax[1]}, Color: color},
		)
		posX += g.adv
	}
	return vertices
}

// draw uploads the overlay geometry and appends it to the active render pass.
func (h *hud) draw(pass *wgpu.RenderPassEncoder, text string, screenW, screenH int) {
	vertices := h.buildVertices(text, screenW, screenH)
	if len(vertices) == 0 {
		return
	}
	maxVerts := int(h.vertexBuf.GetSize() / uint64(unsafe.Sizeof(textVertex{})))
	if len(vertices) > maxVerts {
		vertices = vertices[:maxVerts]
	}
	size := uint64(len(vertices)) * uint64(unsafe.Sizeof(textVertex{}))
	h.queue.WriteBuffer(h.vertexBuf, 0, wgpu.ToBytes(vertices))
	h.vertexCount = uint32(len(vertices))

	pass.SetPipeline(h.pipeline)
	pass.SetBindGroup(0, h.bindGroup, nil)
	pass.SetVertexBuffer(0, h.vertexBuf, 0, size)
	pass.Draw(h.vertexCount, 1, 0, 0)
}

func (h *hud) release() {
	if h.vertexBuf != nil {
		h.vertexBuf.Release()
	}
	if h.bindGroup != nil {
		h.bindGroup.Release()
	}
	if h.sampler != nil {
		h.sampler.Release()
	}
	if h.atlasView != nil {
		h.atlasView.Release()
	}
	if h.pipeline != nil {
		h.pipeline.Release()
	}
}
