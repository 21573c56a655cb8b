// Package app brings up the WebGPU device/surface and drives the
// per-frame path-trace -> post-process -> blit -> debug-overlay chain,
// adapted from the teacher's rt/app/app.go App: same Init/Resize/
// Update/Render split and the same device/surface/adapter bring-up
// sequence, stripped of the G-buffer/Hi-Z/shadow-map/WBOIT-transparency/
// particle/text passes a deferred voxel renderer needs and a one-sample-
// per-pixel-per-frame path tracer does not.
package app

import (
	"fmt"
	"log"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/Stronautt/PathTracer/bvh"
	"github.com/Stronautt/PathTracer/camera"
	"github.com/Stronautt/PathTracer/core"
	"github.com/Stronautt/PathTracer/editor"
	"github.com/Stronautt/PathTracer/gpu"
	"github.com/Stronautt/PathTracer/scene"
	"github.com/Stronautt/PathTracer/scenebuild"
	"github.com/Stronautt/PathTracer/shaders"
)

// App owns the GPU bring-up, the three compute/render pipelines, the
// scene state and the accumulator, matching the teacher's App struct in
// shape (one struct owning device, surface, pipelines and scene), not
// in member list (no GBuffer/shadow/particle fields here).
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	PathTracePipeline   *wgpu.ComputePipeline
	PostProcessPipeline *wgpu.ComputePipeline
	BlitPipeline        *wgpu.RenderPipeline
	DebugPass           *gpu.DebugRenderPass

	Buffers *gpu.SceneBufferManager
	Sampler *wgpu.Sampler
	BlitBG  *wgpu.BindGroup

	DebugCameraBuf *wgpu.Buffer
	DebugCameraBG  *wgpu.BindGroup

	Scene     *scene.Scene
	Tree      bvh.Tree
	Atlas     *scene.TextureAtlas
	Accum     *core.Accumulator
	SceneEpoch uint64

	DebugMode bool

	Profiler *Profiler
}

// NewApp returns an unconfigured App; Init performs the GPU bring-up.
func NewApp(window *glfw.Window) *App {
	return &App{
		Window:   window,
		Scene:    scene.NewScene(),
		Accum:    core.NewAccumulator(),
		Profiler: NewProfiler(),
	}
}

// LoadScene rebuilds the BVH and texture atlas for s and bumps
// SceneEpoch so the accumulator clears on the next Update, mirroring
// how the teacher's editor.HandleClick edits invalidate BufferManager
// state implicitly through dirty comparisons.
func (a *App) LoadScene(s *scene.Scene) error {
	a.Scene = s

	prims := make([]bvh.Primitive, 0, len(s.Shapes))
	for i, shape := range s.Shapes {
		if shape.IsInfinite() {
			continue
		}
		if scenebuild.DegenerateTriangle(shape) {
			log.Printf("app: shape %d is a degenerate triangle (zero edge cross product); omitting from BVH", i)
			continue
		}
		min, max := scenebuild.AABBOf(shape)
		prims = append(prims, bvh.Primitive{Min: min, Max: max, Centroid: min.Add(max).Mul(0.5), Index: int32(i)})
	}
	a.Tree = bvh.Build(prims)

	atlas, err := scene.BuildAtlas(s.Textures, 256)
	if err != nil {
		return fmt.Errorf("app: building texture atlas: %w", err)
	}
	a.Atlas = atlas

	a.SceneEpoch++
	if a.Buffers != nil {
		a.Buffers.UpdateScene(a.Scene, a.Tree, a.Atlas)
	}
	return nil
}

func (a *App) Init() error {
	a.Instance = wgpu.CreateInstance(nil)
	surface := a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))
	a.Surface = surface

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}

	width, height := a.Window.GetFramebufferSize()
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, a.Device, a.Config)

	a.Buffers = gpu.NewSceneBufferManager(a.Device)

	if err := a.setupPipelines(); err != nil {
		return err
	}
	a.DebugPass, err = gpu.NewDebugRenderPass(a.Device, format)
	if err != nil {
		return err
	}

	a.Sampler, err = a.Device.CreateSampler(&wgpu.SamplerDescriptor{
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return err
	}

	a.DebugCameraBuf, err = a.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "DebugCameraUniform",
		Size:  64,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	a.DebugCameraBG, err = a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "DebugCameraBG",
		Layout: a.DebugPass.Pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: a.DebugCameraBuf, Size: 64},
		},
	})
	if err != nil {
		return err
	}

	a.Buffers.UpdateScene(a.Scene, a.Tree, a.Atlas)
	a.Resize(width, height)
	return nil
}

// setupPipelines compiles the three path-trace/post-process/blit WGSL
// programs (resolved through shaders.Program's #import composer) and
// derives their bind group layouts, following the teacher's pattern of
// one explicit BindGroupLayout + PipelineLayout per compute/render
// pipeline rather than relying on shader reflection.
func (a *App) setupPipelines() error {
	group0Layout, err := a.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "PathTraceBGL0",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform, MinBindingSize: 80}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, StorageTexture: wgpu.StorageTextureBindingLayout{Access: wgpu.StorageTextureAccessWriteOnly, Format: wgpu.TextureFormatRGBA8Unorm, ViewDimension: wgpu.TextureViewDimension2D}},
		},
	})
	if err != nil {
		return err
	}
	a.Buffers.Group0Layout = group0Layout

	group1Layout, err := a.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SceneBGL1",
		Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 5, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 6, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
			{Binding: 7, Visibility: wgpu.ShaderStageCompute, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
		},
	})
	if err != nil {
		return err
	}
	a.Buffers.Group1Layout = group1Layout

	pathTraceSrc, err := shaders.Program("path_trace")
	if err != nil {
		return err
	}
	pathTraceModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PathTraceCS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: pathTraceSrc},
	})
	if err != nil {
		return err
	}
	pathTraceLayout, err := a.Device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{group0Layout, group1Layout},
	})
	if err != nil {
		return err
	}
	a.PathTracePipeline, err = a.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "PathTracePipeline",
		Layout:  pathTraceLayout,
		Compute: wgpu.ProgrammableStageDescriptor{Module: pathTraceModule, EntryPoint: "main"},
	})
	if err != nil {
		return err
	}

	postProcessSrc, err := shaders.Program("post_process")
	if err != nil {
		return err
	}
	postProcessModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "PostProcessCS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: postProcessSrc},
	})
	if err != nil {
		return err
	}
	a.PostProcessPipeline, err = a.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:   "PostProcessPipeline",
		Compute: wgpu.ProgrammableStageDescriptor{Module: postProcessModule, EntryPoint: "main"},
	})
	if err != nil {
		return err
	}
	a.Buffers.PostProcessLayout = a.PostProcessPipeline.GetBindGroupLayout(0)

	blitSrc, err := shaders.Program("blit")
	if err != nil {
		return err
	}
	blitModule, err := a.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "BlitVSFS",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: blitSrc},
	})
	if err != nil {
		return err
	}
	a.BlitPipeline, err = a.Device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: "BlitPipeline",
		Vertex: wgpu.VertexState{
			Module:     blitModule,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     blitModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: a.Config.Format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{Topology: wgpu.PrimitiveTopologyTriangleList, FrontFace: wgpu.FrontFaceCCW, CullMode: wgpu.CullModeNone},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return err
	}

	return nil
}

// Resize reconfigures the swapchain and the path-trace output target,
// then recreates the blit bind group, matching the teacher's Resize ->
// setupTextures -> setupBindGroups chain.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
	a.Buffers.Resize(uint32(w), uint32(h))

	bg, err := a.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "BlitBG",
		Layout: a.BlitPipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: a.Buffers.OutputView},
			{Binding: 1, Sampler: a.Sampler},
		},
	})
	if err != nil {
		panic(err)
	}
	a.BlitBG = bg
}

// Update advances the accumulator against the current camera/dimensions/
// scene epoch and writes the camera uniform, mirroring the teacher's
// Update dirty-comparison pattern (there comparing view-projection
// matrices to decide whether to rebuild the voxel BVH; here the same
// comparison decides whether to clear the progressive accumulation
// buffer).
func (a *App) Update() {
	a.Profiler.SetCount("Shapes", len(a.Scene.Shapes))
	a.Profiler.SetCount("Materials", len(a.Scene.Materials))
	a.Profiler.SetCount("Lights", len(a.Scene.Lights))

	a.Accum.Update(a.Scene.Camera, a.Config.Width, a.Config.Height, a.SceneEpoch)
	a.Buffers.UpdateCamera(a.Scene.Camera, a.Accum.SampleCount-1)
	a.Buffers.UpdatePostEffects(a.Scene.PostEffects, a.Scene.Camera.Exposure)
	if a.DebugMode {
		a.DebugPass.Update(a.Device.GetQueue(), a.Tree, 12)
		aspect := float32(a.Config.Width) / float32(a.Config.Height)
		a.Device.GetQueue().WriteBuffer(a.DebugCameraBuf, 0, camera.ViewProjBytes(a.Scene.Camera, aspect))
	}
}

// Render dispatches path-trace -> post-process -> blit -> (optional)
// debug overlay, then presents, matching the teacher's Render structure
// (compute passes first, then a render pass onto the swapchain view).
func (a *App) Render() {
	nextTexture, err := a.Surface.GetCurrentTexture()
	if err != nil {
		fmt.Printf("ERROR: GetCurrentTexture failed: %v\n", err)
		return
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		fmt.Printf("ERROR: CreateView failed: %v\n", err)
		return
	}
	defer view.Release()

	encoder, err := a.Device.CreateCommandEncoder(nil)
	if err != nil {
		fmt.Printf("ERROR: CreateCommandEncoder failed: %v\n", err)
		return
	}

	wgX := (a.Config.Width + 7) / 8
	wgY := (a.Config.Height + 7) / 8

	a.Profiler.BeginScope("PathTrace")
	ptPass := encoder.BeginComputePass(nil)
	ptPass.SetPipeline(a.PathTracePipeline)
	ptPass.SetBindGroup(0, a.Buffers.Group0, nil)
	ptPass.SetBindGroup(1, a.Buffers.Group1, nil)
	ptPass.DispatchWorkgroups(wgX, wgY, 1)
	if err := ptPass.End(); err != nil {
		fmt.Printf("ERROR: PathTrace pass End failed: %v\n", err)
	}
	a.Profiler.EndScope("PathTrace")

	if len(a.Scene.PostEffects) > 0 && a.Buffers.PostProcessBG != nil {
		a.Profiler.BeginScope("PostProcess")
		ppPass := encoder.BeginComputePass(nil)
		ppPass.SetPipeline(a.PostProcessPipeline)
		ppPass.SetBindGroup(0, a.Buffers.PostProcessBG, nil)
		ppPass.DispatchWorkgroups(wgX, wgY, 1)
		if err := ppPass.End(); err != nil {
			fmt.Printf("ERROR: PostProcess pass End failed: %v\n", err)
		}
		a.Profiler.EndScope("PostProcess")
	}

	a.Profiler.BeginScope("Blit")
	rPass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		}},
	})
	rPass.SetPipeline(a.BlitPipeline)
	rPass.SetBindGroup(0, a.BlitBG, nil)
	rPass.Draw(3, 1, 0, 0)

	if a.DebugMode {
		a.DebugPass.Draw(rPass, a.DebugCameraBG)
	}

	if err := rPass.End(); err != nil {
		fmt.Printf("ERROR: Blit pass End failed: %v\n", err)
	}
	a.Profiler.EndScope("Blit")

	cmd, err := encoder.Finish(nil)
	if err != nil {
		fmt.Printf("ERROR: Encoder Finish failed: %v\n", err)
		return
	}
	a.Device.GetQueue().Submit(cmd)
	a.Surface.Present()
	a.Device.Poll(false, nil)
}

// HandleClick runs the CPU pick ray against the current scene/BVH,
// adapted from the teacher's editor.HandleClick entry point.
func (a *App) HandleClick(ndcX, ndcY float32) *editor.HitResult {
	ray := editor.RayFromScreen(ndcX, ndcY, int(a.Config.Width), int(a.Config.Height), a.Scene.Camera)
	return editor.Pick(a.Scene, a.Tree, ray)
}

