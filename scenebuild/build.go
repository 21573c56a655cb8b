// Package scenebuild lowers a logical scene.Scene into the fixed-stride
// byte buffers the GPU scene buffers expect: Shape (112B) and Material
// (48B) records, plus the int32 index arrays for infinite shapes and
// lights. The 80B Camera record is packed by camera.Build. Byte-packing follows the same
// encoding/binary.LittleEndian + math.Float32bits convention the
// teacher's rt/bvh/builder.go ToBytes and rt/gpu/manager.go byte helpers
// use.
package scenebuild

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/scene"
)

// ShapeRecordSize is the wire size of one Shape record: seven packed
// vec4<f32>-sized slots (spec.md §3).
const ShapeRecordSize = 112

// MaterialRecordSize is the wire size of one Material record.
const MaterialRecordSize = 48

// CameraRecordSize is the wire size of the Camera uniform.
const CameraRecordSize = 80

// Built holds every flat buffer the GPU scene buffer manager uploads,
// plus the infinite-shape and light index lists referenced from the
// Group 1 bind group (spec.md §6).
type Built struct {
	Shapes          []byte
	Materials       []byte
	InfiniteIndices []int32
	LightIndices    []int32
}

func putF32(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
}

func putI32(buf []byte, off int, v int32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v))
}

func putVec3(buf []byte, off int, v mgl32.Vec3) {
	putF32(buf, off, v.X())
	putF32(buf, off+4, v.Y())
	putF32(buf, off+8, v.Z())
}

func putVec4(buf []byte, off int, v mgl32.Vec4) {
	putF32(buf, off, v.X())
	putF32(buf, off+4, v.Y())
	putF32(buf, off+8, v.Z())
	putF32(buf, off+12, v.W())
}

// halfFromFloat32 converts to IEEE 754 binary16, truncating the mantissa
// and flushing values below the half-float normal range to zero, matching the bit layout the WGSL triangle UV fields
// expect (Open Question decision, see DESIGN.md).
func halfFromFloat32(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xff) - 127 + 15
	mantissa := bits & 0x7fffff

	switch {
	case exp <= 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	default:
		return sign | uint16(exp)<<10 | uint16(mantissa>>13)
	}
}

func putHalfVec2(buf []byte, off int, v mgl32.Vec2) {
	binary.LittleEndian.PutUint16(buf[off:off+2], halfFromFloat32(v.X()))
	binary.LittleEndian.PutUint16(buf[off+2:off+4], halfFromFloat32(v.Y()))
}

// buildShape packs one logical shape into its 112-byte record. Every
// kind reuses the same seven vec4 slots; which fields are meaningful in
// slots 2-6 depends on shape.Kind (see scene.Shape's field comments).
func buildShape(s scene.Shape) []byte {
	buf := make([]byte, ShapeRecordSize)

	putI32(buf, 0, int32(s.Kind))
	putI32(buf, 4, s.Material)
	putI32(buf, 8, int32(s.CSG))
	putI32(buf, 12, s.Partner)

	switch s.Kind {
	case scene.ShapeTriangle:
		putVec3(buf, 16, s.V0)
		putVec3(buf, 32, s.V1)
		putVec3(buf, 48, s.V2)
		putHalfVec2(buf, 80, s.UV0)
		putHalfVec2(buf, 84, s.UV1)
		putHalfVec2(buf, 88, s.UV2)
	case scene.ShapePlane:
		putVec3(buf, 16, s.Point)
		putVec3(buf, 32, s.Normal)
	case scene.ShapeSphere:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
	case scene.ShapeCube:
		putVec3(buf, 16, s.Center)
		putVec3(buf, 32, s.HalfSize)
	case scene.ShapeCylinder, scene.ShapeCone, scene.ShapeParaboloid, scene.ShapeHyperboloid:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
		putVec3(buf, 32, s.Axis)
		putF32(buf, 44, s.Height)
	case scene.ShapeDisc:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
		putVec3(buf, 32, s.Normal)
	case scene.ShapeEllipsoid:
		putVec3(buf, 16, s.Center)
		putVec3(buf, 48, s.Radii)
	case scene.ShapePyramid:
		putVec3(buf, 16, s.Center)
		putVec3(buf, 32, s.HalfSize)
		putF32(buf, 44, s.Height)
	case scene.ShapeTetrahedron:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
	case scene.ShapeSDF:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
		putF32(buf, 48, float32(s.SDFVariant)) // read as f32 data2.x, then i32()
	case scene.ShapeFractal:
		putVec3(buf, 16, s.Center)
		putF32(buf, 28, s.Radius)
		putF32(buf, 52, float32(s.FractalVariant)) // read as f32 data2.y, then i32()
		putF32(buf, 56, s.Power)
		putVec4(buf, 64, s.JuliaC)
	}

	return buf
}

func buildMaterial(m scene.Material) []byte {
	buf := make([]byte, MaterialRecordSize)
	putVec3(buf, 0, m.BaseColor)
	putF32(buf, 12, m.Roughness)
	putVec3(buf, 16, m.Emissive)
	putF32(buf, 28, m.Metalness)
	putF32(buf, 32, m.IOR)
	putF32(buf, 36, m.Transparency)
	putI32(buf, 40, m.TextureIndex)
	return buf
}

// Build flattens s into the wire buffers the GPU scene buffer manager
// expects, in shape-array order (BVH primitive indices reference this
// same order).
func Build(s *scene.Scene) Built {
	out := Built{
		Shapes:    make([]byte, 0, len(s.Shapes)*ShapeRecordSize),
		Materials: make([]byte, 0, len(s.Materials)*MaterialRecordSize),
	}

	for i, shape := range s.Shapes {
		out.Shapes = append(out.Shapes, buildShape(shape)...)
		if shape.IsInfinite() {
			out.InfiniteIndices = append(out.InfiniteIndices, int32(i))
		}
	}
	for _, m := range s.Materials {
		out.Materials = append(out.Materials, buildMaterial(m)...)
	}
	for _, l := range s.Lights {
		out.LightIndices = append(out.LightIndices, l.ShapeIdx)
	}

	return out
}

// AABBEpsilon is the minimum extent AABBOf guarantees on every axis.
// An axis-aligned flat shape (a triangle lying in a coordinate plane, a
// disc whose normal is axis-aligned) otherwise collapses to a
// zero-thickness slab that intersect_aabb's slab test can numerically
// cull even for a ray that should hit it.
const AABBEpsilon float32 = 1e-4

// AABBOf computes the world-space axis-aligned bound of one shape, used
// by the BVH builder to place every finite shape into the tree. Infinite
// shapes are never passed in here; callers filter them out first via
// scene.Shape.IsInfinite.
func AABBOf(s scene.Shape) (min, max mgl32.Vec3) {
	min, max = rawAABBOf(s)
	return growDegenerateAxes(min, max)
}

func rawAABBOf(s scene.Shape) (min, max mgl32.Vec3) {
	switch s.Kind {
	case scene.ShapeSphere, scene.ShapeTetrahedron:
		r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
		return s.Center.Sub(r), s.Center.Add(r)
	case scene.ShapeCube:
		return s.Center.Sub(s.HalfSize), s.Center.Add(s.HalfSize)
	case scene.ShapeEllipsoid:
		return s.Center.Sub(s.Radii), s.Center.Add(s.Radii)
	case scene.ShapeCone, scene.ShapeParaboloid:
		// apex-rooted at Center, extending Height along Axis
		reach := s.Radius + s.Height
		extent := mgl32.Vec3{reach, reach, reach}
		return s.Center.Sub(extent), s.Center.Add(extent)
	case scene.ShapeCylinder, scene.ShapeHyperboloid:
		half := s.Height * 0.5
		extent := mgl32.Vec3{s.Radius + half, s.Radius + half, s.Radius + half}
		return s.Center.Sub(extent), s.Center.Add(extent)
	case scene.ShapeDisc:
		r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
		return s.Center.Sub(r), s.Center.Add(r)
	case scene.ShapePyramid:
		extent := s.HalfSize.Add(mgl32.Vec3{0, s.Height, 0})
		return s.Center.Sub(extent), s.Center.Add(extent)
	case scene.ShapeTriangle:
		min = componentMin(componentMin(s.V0, s.V1), s.V2)
		max = componentMax(componentMax(s.V0, s.V1), s.V2)
		return min, max
	case scene.ShapeSDF, scene.ShapeFractal:
		r := mgl32.Vec3{s.Radius * 1.5, s.Radius * 1.5, s.Radius * 1.5}
		return s.Center.Sub(r), s.Center.Add(r)
	default:
		return s.Center, s.Center
	}
}

// growDegenerateAxes widens any axis whose extent fell below AABBEpsilon
// so it straddles its own midpoint by at least that much.
func growDegenerateAxes(min, max mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	loX, hiX := growAxis(min.X(), max.X())
	loY, hiY := growAxis(min.Y(), max.Y())
	loZ, hiZ := growAxis(min.Z(), max.Z())
	return mgl32.Vec3{loX, loY, loZ}, mgl32.Vec3{hiX, hiY, hiZ}
}

func growAxis(lo, hi float32) (float32, float32) {
	if hi-lo >= AABBEpsilon {
		return lo, hi
	}
	mid := (lo + hi) * 0.5
	return mid - AABBEpsilon*0.5, mid + AABBEpsilon*0.5
}

// DegenerateTriangle reports whether s is a ShapeTriangle whose edges
// have collapsed to zero area (edge cross product length at or below
// the float epsilon below), the build-time check that keeps degenerate
// triangles out of the BVH entirely rather than letting them corrupt a
// leaf's bound.
func DegenerateTriangle(s scene.Shape) bool {
	if s.Kind != scene.ShapeTriangle {
		return false
	}
	e1 := s.V1.Sub(s.V0)
	e2 := s.V2.Sub(s.V0)
	return e1.Cross(e2).Len() <= 1e-12
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min(a.X(), b.X()), min(a.Y(), b.Y()), min(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max(a.X(), b.X()), max(a.Y(), b.Y()), max(a.Z(), b.Z())}
}

func min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
