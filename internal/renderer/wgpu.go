package renderer

import (
	"encoding/binary"
	"log/slog"

	"texture-preview/internal/preview"

	"github.com/cockroachdb/errors"
	"github.com/cogentcore/webgpu/wgpu"
)

// previewShader draws the loaded texture as a fullscreen triangle, zeroing
// the color channels masked out by params.mask (bit 0 = R .. bit 3 = A).
const previewShader = `
struct Params {
    mask: u32,
    _pad0: u32,
    _pad1: u32,
    _pad2: u32,
};

@group(0) @binding(0) var previewTexture: texture_2d<f32>;
@group(0) @binding(1) var previewSampler: sampler;
@group(0) @binding(2) var<uniform> params: Params;

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

@vertex
fn vs_main(@builtin(vertex_index) index: u32) -> VertexOutput {
    var out: VertexOutput;
    let uv = vec2<f32>(f32((index << 1u) & 2u), f32(index & 2u));
    out.position = vec4<f32>(uv * 2.0 - 1.0, 0.0, 1.0);
    out.uv = vec2<f32>(uv.x, 1.0 - uv.y);
    return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
    var color = textureSample(previewTexture, previewSampler, in.uv);
    if ((params.mask & 1u) == 0u) { color.r = 0.0; }
    if ((params.mask & 2u) == 0u) { color.g = 0.0; }
    if ((params.mask & 4u) == 0u) { color.b = 0.0; }
    if ((params.mask & 8u) == 0u) { color.a = 1.0; }
    return color;
}
`

const uniformSize = 16

// WGPU renders previews with a WebGPU device into an offscreen target.
// Construct it on the goroutine that will run the render loop; like the rest
// of the renderer it must only be used from that goroutine.
type WGPU struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	pipeline   *wgpu.RenderPipeline
	bindLayout *wgpu.BindGroupLayout
	sampler    *wgpu.Sampler
	uniform    *wgpu.Buffer
	targetView *wgpu.TextureView

	texture     *wgpu.Texture
	textureView *wgpu.TextureView
	bindGroup   *wgpu.BindGroup

	log *slog.Logger
}

// NewWGPU creates the device and the offscreen render target. No surface or
// window is involved; the editor UI reads frames out of band.
func NewWGPU(targetWidth, targetHeight uint32, forceFallbackAdapter bool, log *slog.Logger) (*WGPU, error) {
	r := &WGPU{
		instance: wgpu.CreateInstance(nil),
		log:      log,
	}

	adapter, err := r.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		return nil, errors.Wrap(err, "request adapter")
	}
	r.adapter = adapter

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Preview Device",
	})
	if err != nil {
		return nil, errors.Wrap(err, "request device")
	}
	r.device = device
	r.queue = device.GetQueue()

	if err := r.initTarget(targetWidth, targetHeight); err != nil {
		return nil, err
	}
	if err := r.initPipeline(); err != nil {
		return nil, err
	}

	log.Info("wgpu renderer ready",
		slog.Int("target_width", int(targetWidth)),
		slog.Int("target_height", int(targetHeight)))
	return r, nil
}

func (r *WGPU) initTarget(width, height uint32) error {
	target, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Preview Target",
		Usage:     wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return errors.Wrap(err, "create render target")
	}
	view, err := target.CreateView(nil)
	if err != nil {
		return errors.Wrap(err, "create target view")
	}
	r.targetView = view
	return nil
}

func (r *WGPU) initPipeline() error {
	module, err := r.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: "Preview Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: previewShader,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create shader module")
	}

	textureEntry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
	textureEntry.Texture.SampleType = wgpu.TextureSampleTypeFloat
	textureEntry.Texture.ViewDimension = wgpu.TextureViewDimension2D

	samplerEntry := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
	samplerEntry.Sampler.Type = wgpu.SamplerBindingTypeFiltering

	uniformEntry := wgpu.BindGroupLayoutEntry{Binding: 2, Visibility: wgpu.ShaderStageFragment}
	uniformEntry.Buffer.Type = wgpu.BufferBindingTypeUniform
	uniformEntry.Buffer.MinBindingSize = uniformSize

	layout, err := r.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Preview Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{textureEntry, samplerEntry, uniformEntry},
	})
	if err != nil {
		return errors.Wrap(err, "create bind group layout")
	}
	r.bindLayout = layout

	pipelineLayout, err := r.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            "Preview Pipeline Layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{layout},
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}

	pipeline, err := r.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Preview Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    wgpu.TextureFormatRGBA8Unorm,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create render pipeline")
	}
	r.pipeline = pipeline

	sampler, err := r.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Preview Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   0.0,
		LodMaxClamp:   32.0,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return errors.Wrap(err, "create sampler")
	}
	r.sampler = sampler

	uniform, err := r.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Preview Params",
		Size:  uniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return errors.Wrap(err, "create uniform buffer")
	}
	r.uniform = uniform
	r.SetChannelMask(0xF)
	return nil
}

// Load implements preview.Renderer: it replaces the previously loaded texture
// with tex, uploading the full mip chain.
func (r *WGPU) Load(tex *preview.RenderableTexture) {
	format := wgpu.TextureFormatRGBA8Unorm
	if tex.IsSRGB {
		format = wgpu.TextureFormatRGBA8UnormSrgb
	}
	if tex.IsHDR {
		format = wgpu.TextureFormatRGBA16Float
	}

	gpuTex, err := r.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "Preview Texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              tex.Width,
			Height:             tex.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: uint32(len(tex.MipLevels)),
		SampleCount:   1,
	})
	if err != nil {
		r.log.Error("create preview texture failed", slog.String("error", err.Error()))
		return
	}

	for _, mip := range tex.MipLevels {
		r.queue.WriteTexture(
			&wgpu.ImageCopyTexture{
				Texture:  gpuTex,
				MipLevel: mip.Level,
				Origin:   wgpu.Origin3D{},
				Aspect:   wgpu.TextureAspectAll,
			},
			mip.Pixels,
			&wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  mip.RowPitch,
				RowsPerImage: mip.Height,
			},
			&wgpu.Extent3D{
				Width:              mip.Width,
				Height:             mip.Height,
				DepthOrArrayLayers: 1,
			},
		)
	}

	view, err := gpuTex.CreateView(nil)
	if err != nil {
		gpuTex.Release()
		r.log.Error("create preview texture view failed", slog.String("error", err.Error()))
		return
	}

	bindGroup, err := r.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Preview Bind Group",
		Layout: r.bindLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: r.sampler},
			{Binding: 2, Buffer: r.uniform, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		view.Release()
		gpuTex.Release()
		r.log.Error("create preview bind group failed", slog.String("error", err.Error()))
		return
	}

	r.releaseLoaded()
	r.texture = gpuTex
	r.textureView = view
	r.bindGroup = bindGroup
}

// Render implements preview.Renderer: one render pass drawing the loaded
// texture into the offscreen target. With nothing loaded it clears only.
func (r *WGPU) Render() {
	encoder, err := r.device.CreateCommandEncoder(nil)
	if err != nil {
		r.log.Error("create command encoder failed", slog.String("error", err.Error()))
		return
	}

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       r.targetView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.1, B: 0.1, A: 1.0},
			},
		},
	})
	if r.bindGroup != nil {
		pass.SetPipeline(r.pipeline)
		pass.SetBindGroup(0, r.bindGroup, nil)
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()

	commandBuffer, err := encoder.Finish(nil)
	if err != nil {
		encoder.Release()
		r.log.Error("finish command encoder failed", slog.String("error", err.Error()))
		return
	}
	r.queue.Submit(commandBuffer)
	commandBuffer.Release()
	encoder.Release()
}

// SetChannelMask implements preview.Renderer.
func (r *WGPU) SetChannelMask(mask uint32) {
	var buf [uniformSize]byte
	binary.LittleEndian.PutUint32(buf[0:], mask)
	r.queue.WriteBuffer(r.uniform, 0, buf[:])
}

// Release frees the GPU resources. Call from the render loop goroutine after
// the loop has stopped.
func (r *WGPU) Release() {
	r.releaseLoaded()
	if r.targetView != nil {
		r.targetView.Release()
	}
	if r.device != nil {
		r.device.Release()
	}
}

func (r *WGPU) releaseLoaded() {
	if r.bindGroup != nil {
		r.bindGroup.Release()
		r.bindGroup = nil
	}
	if r.textureView != nil {
		r.textureView.Release()
		r.textureView = nil
	}
	if r.texture != nil {
		r.texture.Release()
		r.texture = nil
	}
}
