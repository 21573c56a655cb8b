package gpu

import (
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/bvh"
	"github.com/Stronautt/PathTracer/shaders"
)

// DebugLine is one line-list segment of the BVH/AABB wireframe overlay,
// the line-only subset of the teacher's core.Gizmo (which also carried
// cube/sphere/rect/circle tessellation for voxel editor handles this
// repository has no use for).
type DebugLine struct {
	P1, P2 mgl32.Vec3
	Color  [4]float32
}

// DebugVertex matches debug.wgsl's VertexInput.
type DebugVertex struct {
	Pos   [3]float32
	Color [4]float32
}

// DebugRenderPass draws the --debug BVH wireframe overlay as a line
// list over the blitted path-trace output, adapted from the teacher's
// rt/gpu/gizmo_pass.go GizmoRenderPass: same pipeline shape (line-list
// topology, alpha blend, no depth test so the overlay always shows),
// same growth-by-doubling vertex buffer strategy.
type DebugRenderPass struct {
	Pipeline        *wgpu.RenderPipeline
	VertexBuffer    *wgpu.Buffer
	VertexBufferCap uint64
	VertexCount     uint32
	Device          *wgpu.Device
}

// NewDebugRenderPass builds the line-list pipeline against format, the
// surface's color target format.
func NewDebugRenderPass(device *wgpu.Device, format wgpu.TextureFormat) (*DebugRenderPass, error) {
	src, err := shaders.Program("debug")
	if err != nil {
		return nil, err
	}
	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "DebugShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: src},
	})
	if err != nil {
		return nil, err
	}

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "DebugCameraBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 64, // one mat4x4<f32>
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}

	pipeline, err := device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "DebugPipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(DebugVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x4, Offset: 12, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    format,
					WriteMask: wgpu.ColorWriteMaskAll,
					Blend: &wgpu.BlendState{
						Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorSrcAlpha, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
						Alpha: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
					},
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyLineList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		Multisample: wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		return nil, err
	}

	return &DebugRenderPass{Pipeline: pipeline, Device: device}, nil
}

// Update re-tessellates tree's node AABBs into a line list and uploads
// it, growing VertexBuffer by doubling when the new vertex count
// overflows it, exactly like GizmoRenderPass.Update.
func (p *DebugRenderPass) Update(queue *wgpu.Queue, tree bvh.Tree, maxDepth int) {
	lines := BvhWireframe(tree, maxDepth)

	vertices := make([]DebugVertex, 0, len(lines)*2)
	for _, l := range lines {
		vertices = append(vertices,
			DebugVertex{Pos: [3]float32{l.P1.X(), l.P1.Y(), l.P1.Z()}, Color: l.Color},
			DebugVertex{Pos: [3]float32{l.P2.X(), l.P2.Y(), l.P2.Z()}, Color: l.Color},
		)
	}
	p.VertexCount = uint32(len(vertices))
	if p.VertexCount == 0 {
		return
	}

	sizeBytes := uint64(len(vertices)) * uint64(unsafe.Sizeof(DebugVertex{}))
	if p.VertexBuffer == nil || p.VertexBufferCap < sizeBytes {
		if p.VertexBuffer != nil {
			p.VertexBuffer.Release()
		}
		p.VertexBufferCap = sizeBytes * 2
		var err error
		p.VertexBuffer, err = p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "DebugVertexBuffer",
			Size:  p.VertexBufferCap,
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
	}

	queue.WriteBuffer(p.VertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), sizeBytes))
}

// Draw records the line-list draw call, reusing cameraBindGroup (a
// view-projection-only uniform distinct from the path tracer's Camera
// record).
func (p *DebugRenderPass) Draw(pass *wgpu.RenderPassEncoder, cameraBindGroup *wgpu.BindGroup) {
	if p.VertexCount == 0 || p.VertexBuffer == nil {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, cameraBindGroup, nil)
	pass.SetVertexBuffer(0, p.VertexBuffer, 0, uint64(p.VertexCount)*uint64(unsafe.Sizeof(DebugVertex{})))
	pass.Draw(p.VertexCount, 1, 0, 0)
}

// BvhWireframe walks tree down to maxDepth (or to the leaves, whichever
// comes first) and emits 12 edges per visited node's AABB, color-coded
// by depth so nested splits are visually distinguishable.
func BvhWireframe(tree bvh.Tree, maxDepth int) []DebugLine {
	if len(tree.Nodes) == 0 {
		return nil
	}

	var lines []DebugLine
	var walk func(idx int32, depth int)
	walk = func(idx int32, depth int) {
		node := tree.Nodes[idx]
		lines = append(lines, aabbEdges(node.Min, node.Max, depthColor(depth))...)
		if node.LeafCount > 0 || node.Left < 0 || depth >= maxDepth {
			return
		}
		walk(node.Left, depth+1)
		walk(node.Right, depth+1)
	}
	walk(0, 0)
	return lines
}

func depthColor(depth int) [4]float32 {
	t := float32(depth%6) / 6.0
	return [4]float32{1.0 - t, t, 0.3, 0.6}
}

func aabbEdges(min, max mgl32.Vec3, color [4]float32) []DebugLine {
	corners := [8]mgl32.Vec3{
		{min.X(), min.Y(), min.Z()}, {max.X(), min.Y(), min.Z()},
		{max.X(), max.Y(), min.Z()}, {min.X(), max.Y(), min.Z()},
		{min.X(), min.Y(), max.Z()}, {max.X(), min.Y(), max.Z()},
		{max.X(), max.Y(), max.Z()}, {min.X(), max.Y(), max.Z()},
	}
	edges := [12][2]int{
		{0, 1}, {1, 2}, {2, 3}, {3, 0},
		{4, 5}, {5, 6}, {6, 7}, {7, 4},
		{0, 4}, {1, 5}, {2, 6}, {3, 7},
	}
	out := make([]DebugLine, 0, 12)
	for _, e := range edges {
		out = append(out, DebugLine{P1: corners[e[0]], P2: corners[e[1]], Color: color})
	}
	return out
}
