// Package gpu owns every WebGPU resource the rendering core touches:
// the scene storage buffers, the camera/accumulation/output bind group
// (Group 0) and the shape/material/BVH bind group (Group 1), adapted
// from the teacher's rt/gpu/manager.go GpuBufferManager. ensureBuffer's
// geometric-growth-with-copy-preservation and the
// recreate-bind-groups-on-resize discipline are kept as-is; the voxel
// G-buffer/shadow-map/brick-pool resources are replaced with the
// simpler Group 0/Group 1 layout spec.md §6 describes.
package gpu

import (
	"fmt"
	"math"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Stronautt/PathTracer/bvh"
	"github.com/Stronautt/PathTracer/camera"
	"github.com/Stronautt/PathTracer/scene"
	"github.com/Stronautt/PathTracer/scenebuild"
)

// SafeBufferSizeLimit mirrors the teacher's guard against accidentally
// requesting an unreasonably large allocation (the teacher's voxel
// payload texture could run away during brick growth; here a
// pathological scene file with millions of shapes gets the same early
// warning instead of an opaque driver failure).
const SafeBufferSizeLimit = 1 << 30 // 1 GiB

// SceneBufferManager owns the Group 0 / Group 1 buffers and bind
// groups and tracks when a resize forces every dependent bind group to
// be recreated, exactly like the teacher's GpuBufferManager.UpdateScene
// return convention.
type SceneBufferManager struct {
	Device *wgpu.Device

	CameraBuf        *wgpu.Buffer
	AccumulationBuf  *wgpu.Buffer
	OutputTexture    *wgpu.Texture
	OutputView       *wgpu.TextureView

	ShapesBuf          *wgpu.Buffer
	MaterialsBuf       *wgpu.Buffer
	BvhNodesBuf        *wgpu.Buffer
	BvhPrimsBuf        *wgpu.Buffer
	LightIndicesBuf    *wgpu.Buffer
	InfiniteIndicesBuf *wgpu.Buffer
	TexPixelsBuf       *wgpu.Buffer
	TexInfosBuf        *wgpu.Buffer

	PostParamsBuf *wgpu.Buffer

	Group0Layout      *wgpu.BindGroupLayout
	Group1Layout      *wgpu.BindGroupLayout
	PostProcessLayout *wgpu.BindGroupLayout
	Group0            *wgpu.BindGroup
	Group1            *wgpu.BindGroup
	PostProcessBG     *wgpu.BindGroup

	width, height uint32
}

// PostParamsSize is the wire size of post_process.wgsl's
// PostProcessParams uniform: eight packed effect IDs (two vec4<i32>)
// plus exposure, gamma, width and height.
const PostParamsSize = 48

// postProcessGamma is the display gamma EFFECT_GAMMA applies; spec.md's
// scene-file schema has no knob for it, so post_process.wgsl's optional
// gamma effect always targets the standard sRGB-ish 2.2.
const postProcessGamma float32 = 2.2

func packPostParams(effects []int32, exposure float32, gamma float32, width, height uint32) []byte {
	buf := make([]byte, PostParamsSize)
	for i := 0; i < len(effects) && i < 8; i++ {
		putI32LE(buf, i*4, effects[i])
	}
	putF32LE(buf, 32, exposure)
	putF32LE(buf, 36, gamma)
	putI32LE(buf, 40, int32(width))
	putI32LE(buf, 44, int32(height))
	return buf
}

func putF32LE(buf []byte, off int, v float32) {
	putI32LE(buf, off, int32(math.Float32bits(v)))
}

// NewSceneBufferManager returns a manager with no buffers allocated yet;
// the first UpdateScene/UpdateCamera calls create them, matching the
// teacher's NewGpuBufferManager (an almost-empty struct literal).
func NewSceneBufferManager(device *wgpu.Device) *SceneBufferManager {
	return &SceneBufferManager{Device: device}
}

// ensureBuffer is the teacher's rt/gpu/manager.go growth strategy,
// unchanged: geometric 1.5x growth on overflow, old content preserved
// via CopyBufferToBuffer when data is nil (an in-place resize rather
// than a fresh upload), CopySrc|CopyDst always included so a later
// resize can always read the buffer back out. Returns true when the
// buffer was (re)created, signaling bind groups referencing it must be
// rebuilt.
func (m *SceneBufferManager) ensureBuffer(name string, buf **wgpu.Buffer, data []byte, usage wgpu.BufferUsage, headroom int) bool {
	neededSize := uint64(len(data) + headroom)
	if neededSize%4 != 0 {
		neededSize += 4 - (neededSize % 4)
	}
	if neededSize == 0 {
		neededSize = 4
	}

	current := *buf
	usage = usage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

	if current == nil || current.GetSize() < neededSize {
		newSize := neededSize
		if current != nil {
			growthSize := uint64(float64(current.GetSize()) * 1.5)
			if growthSize > newSize {
				newSize = growthSize
			}
		}

		if newSize > SafeBufferSizeLimit {
			fmt.Printf("WARNING: buffer %s allocation size %d exceeds safety limit %d\n", name, newSize, uint64(SafeBufferSizeLimit))
		}

		newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label:            name,
			Size:             newSize,
			Usage:            usage,
			MappedAtCreation: false,
		})
		if err != nil {
			panic(err)
		}

		if current != nil && data == nil {
			encoder, err := m.Device.CreateCommandEncoder(nil)
			if err != nil {
				panic(err)
			}
			encoder.CopyBufferToBuffer(current, 0, newBuf, 0, current.GetSize())
			cmdBuf, err := encoder.Finish(nil)
			if err != nil {
				panic(err)
			}
			m.Device.GetQueue().Submit(cmdBuf)
		}

		if current != nil {
			current.Release()
		}
		*buf = newBuf

		if len(data) > 0 {
			m.Device.GetQueue().WriteBuffer(*buf, 0, data)
		}
		return true
	}

	if len(data) > 0 {
		m.Device.GetQueue().WriteBuffer(*buf, 0, data)
	}
	return false
}

func int32SliceToBytes(xs []int32) []byte {
	out := make([]byte, len(xs)*4)
	for i, v := range xs {
		out[i*4] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}

// UpdateScene flattens s (and its already-built BVH tree) and uploads
// every Group 1 buffer, growing each independently via ensureBuffer. It
// returns true if any buffer was reallocated, the same "recreated"
// signal the teacher's UpdateScene returns to decide whether Group 1's
// bind group needs rebuilding.
func (m *SceneBufferManager) UpdateScene(s *scene.Scene, tree bvh.Tree, atlas *scene.TextureAtlas) bool {
	built := scenebuild.Build(s)

	recreated := false
	recreated = m.ensureBuffer("shapes", &m.ShapesBuf, built.Shapes, wgpu.BufferUsageStorage, 1024) || recreated
	recreated = m.ensureBuffer("materials", &m.MaterialsBuf, built.Materials, wgpu.BufferUsageStorage, 256) || recreated
	recreated = m.ensureBuffer("bvh_nodes", &m.BvhNodesBuf, tree.ToBytes(), wgpu.BufferUsageStorage, 1024) || recreated
	recreated = m.ensureBuffer("bvh_prims", &m.BvhPrimsBuf, int32SliceToBytes(tree.PrimIndex), wgpu.BufferUsageStorage, 256) || recreated
	recreated = m.ensureBuffer("light_indices", &m.LightIndicesBuf, int32SliceToBytes(built.LightIndices), wgpu.BufferUsageStorage, 64) || recreated
	recreated = m.ensureBuffer("infinite_indices", &m.InfiniteIndicesBuf, int32SliceToBytes(built.InfiniteIndices), wgpu.BufferUsageStorage, 64) || recreated

	if atlas == nil {
		atlas = &scene.TextureAtlas{Width: 1, Height: 1, Pixels: make([]byte, scene.AtlasPixelStride)}
	}
	recreated = m.ensureBuffer("tex_pixels", &m.TexPixelsBuf, atlas.Pixels, wgpu.BufferUsageStorage, 0) || recreated
	recreated = m.ensureBuffer("tex_infos", &m.TexInfosBuf, texInfosToBytes(atlas.Infos), wgpu.BufferUsageStorage, 16) || recreated

	if recreated {
		m.recreateGroup1()
	}
	return recreated
}

func texInfosToBytes(infos []scene.TextureInfo) []byte {
	out := make([]byte, len(infos)*16)
	for i, info := range infos {
		base := i * 16
		putI32LE(out, base, info.X)
		putI32LE(out, base+4, info.Y)
		putI32LE(out, base+8, info.W)
		putI32LE(out, base+12, info.H)
	}
	return out
}

func putI32LE(buf []byte, off int, v int32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

// UpdateCamera writes the 80-byte camera uniform, creating CameraBuf on
// first use exactly like the teacher's UpdateCamera lazily creates
// CameraBuf, and rebuilding Group 0 whenever that first creation happens.
func (m *SceneBufferManager) UpdateCamera(c scene.Camera, frameIndex uint32) {
	buf := camera.Build(c, m.width, m.height, frameIndex)
	created := false
	if m.CameraBuf == nil {
		var err error
		m.CameraBuf, err = m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "camera-uniform",
			Size:  uint64(camera.RecordSize),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		created = true
	}
	m.Device.GetQueue().WriteBuffer(m.CameraBuf, 0, buf)
	if created {
		m.recreateGroup0()
	}
}

// Resize (re)creates the accumulation buffer and output storage texture
// at the new dimensions and signals that Group 0 must be recreated,
// matching the teacher's Resize/setupTextures split in rt/app/app.go.
func (m *SceneBufferManager) Resize(width, height uint32) {
	m.width, m.height = width, height

	pixelCount := int(width) * int(height)
	m.ensureBuffer("accumulation", &m.AccumulationBuf, make([]byte, pixelCount*16), wgpu.BufferUsageStorage, 0)

	if m.OutputTexture != nil {
		m.OutputTexture.Release()
	}
	tex, err := m.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "path-trace-output",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
		Usage:         wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		panic(err)
	}
	m.OutputTexture = tex
	view, err := tex.CreateView(nil)
	if err != nil {
		panic(err)
	}
	m.OutputView = view

	m.recreateGroup0()
	m.recreatePostProcessBG()
}

// UpdatePostEffects writes the post-process uniform, lazily creating
// PostParamsBuf on first use exactly like UpdateCamera lazily creates
// CameraBuf, and rebuilding PostProcessBG whenever that first creation
// happens.
func (m *SceneBufferManager) UpdatePostEffects(effects []int32, exposure float32) {
	created := false
	if m.PostParamsBuf == nil {
		var err error
		m.PostParamsBuf, err = m.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "post-process-params",
			Size:  uint64(PostParamsSize),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			panic(err)
		}
		created = true
	}
	m.Device.GetQueue().WriteBuffer(m.PostParamsBuf, 0, packPostParams(effects, exposure, postProcessGamma, m.width, m.height))
	if created {
		m.recreatePostProcessBG()
	}
}

func (m *SceneBufferManager) recreatePostProcessBG() {
	if m.PostProcessLayout == nil || m.PostParamsBuf == nil || m.AccumulationBuf == nil || m.OutputView == nil {
		return
	}
	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "post-process-params-accum-output",
		Layout: m.PostProcessLayout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: m.PostParamsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: m.AccumulationBuf, Size: wgpu.WholeSize},
			{Binding: 2, TextureView: m.OutputView},
		},
	})
	if err != nil {
		panic(err)
	}
	if m.PostProcessBG != nil {
		m.PostProcessBG.Release()
	}
	m.PostProcessBG = bg
}

func (m *SceneBufferManager) recreateGroup0() {
	if m.Group0Layout == nil || m.CameraBuf == nil || m.AccumulationBuf == nil || m.OutputView == nil {
		return
	}
	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "group0-camera-accum-output",
		Layout: m.Group0Layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: m.CameraBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: m.AccumulationBuf, Size: wgpu.WholeSize},
			{Binding: 2, TextureView: m.OutputView},
		},
	})
	if err != nil {
		panic(err)
	}
	if m.Group0 != nil {
		m.Group0.Release()
	}
	m.Group0 = bg
}

func (m *SceneBufferManager) recreateGroup1() {
	if m.Group1Layout == nil {
		return
	}
	if m.TexPixelsBuf == nil || m.TexInfosBuf == nil {
		return
	}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: m.ShapesBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: m.MaterialsBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: m.BvhNodesBuf, Size: wgpu.WholeSize},
		{Binding: 3, Buffer: m.BvhPrimsBuf, Size: wgpu.WholeSize},
		{Binding: 4, Buffer: m.LightIndicesBuf, Size: wgpu.WholeSize},
		{Binding: 5, Buffer: m.InfiniteIndicesBuf, Size: wgpu.WholeSize},
		{Binding: 6, Buffer: m.TexPixelsBuf, Size: wgpu.WholeSize},
		{Binding: 7, Buffer: m.TexInfosBuf, Size: wgpu.WholeSize},
	}
	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "group1-scene",
		Layout:  m.Group1Layout,
		Entries: entries,
	})
	if err != nil {
		panic(err)
	}
	if m.Group1 != nil {
		m.Group1.Release()
	}
	m.Group1 = bg
}
