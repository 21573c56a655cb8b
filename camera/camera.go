// Package camera turns the logical scene.Camera descriptor into the
// 80-byte GPU uniform the path_trace and post_process WGSL entry points
// read, computing a right-handed orthonormal basis the way the
// teacher's rt/core/camera.go CameraState derives forward/right/up from
// yaw/pitch, generalized here from a look-at target instead of an Euler
// fly-camera (scene files give a position and a pitch/yaw/roll rotation,
// which scene.lookAtFromRotation turns into the LookAt/Up pair used here).
package camera

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/scene"
)

// RecordSize is the wire size of the Camera uniform (spec.md §3).
const RecordSize = 80

// Basis is the orthonormal frame derived from a scene.Camera, kept
// separately from the byte-packed uniform so editor.Pick can reuse it
// for CPU ray generation without re-deriving it.
type Basis struct {
	Origin, Forward, Right, Up mgl32.Vec3
}

// BuildBasis derives a right-handed orthonormal basis from c: forward
// points from Position toward LookAt, right = normalize(forward x up),
// and up is re-orthogonalized against forward so a slightly non-
// perpendicular Up in a scene file doesn't skew the frame.
func BuildBasis(c scene.Camera) Basis {
	forward := c.LookAt.Sub(c.Position).Normalize()
	up := c.Up
	if up.Len() < 1e-6 {
		up = mgl32.Vec3{0, 1, 0}
	}
	right := forward.Cross(up)
	if right.Len() < 1e-6 {
		// forward parallel to up: pick an arbitrary perpendicular axis.
		right = forward.Cross(mgl32.Vec3{1, 0, 0})
	}
	right = right.Normalize()
	trueUp := right.Cross(forward).Normalize()
	return Basis{Origin: c.Position, Forward: forward, Right: right, Up: trueUp}
}

// Build packs c plus the current frame index and output dimensions into
// the 80-byte Camera uniform record.
func Build(c scene.Camera, width, height, frameIndex uint32) []byte {
	basis := BuildBasis(c)
	buf := make([]byte, RecordSize)

	putF32 := func(off int, v float32) { binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v)) }
	putVec3 := func(off int, v mgl32.Vec3) {
		putF32(off, v.X())
		putF32(off+4, v.Y())
		putF32(off+8, v.Z())
	}
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:off+4], v) }
	putI32 := func(off int, v int32) { binary.LittleEndian.PutUint32(buf[off:off+4], uint32(v)) }

	putVec3(0, basis.Origin)
	putF32(12, c.FovYDegrees)
	putVec3(16, basis.Forward)
	putF32(28, c.Aperture)
	putVec3(32, basis.Right)
	putF32(44, c.FocusDist)
	putVec3(48, basis.Up)
	putF32(60, c.Exposure)
	putI32(64, c.Tonemapper)
	putU32(68, frameIndex)
	putU32(72, width)
	putU32(76, height)

	return buf
}

// ViewProjBytes packs c's standard view-projection matrix into a
// 64-byte mat4x4<f32> uniform for the debug overlay pipeline, grounded
// on the teacher's rt/core/camera.go GetViewMatrix (mgl32.LookAtV) with
// a perspective projection added since the debug pass rasterizes rather
// than ray-traces.
func ViewProjBytes(c scene.Camera, aspect float32) []byte {
	view := mgl32.LookAtV(c.Position, c.LookAt, c.Up)
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovYDegrees), aspect, 0.01, 1000.0)
	vp := proj.Mul4(view)

	buf := make([]byte, 64)
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			off := (col*4 + row) * 4
			binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(vp.At(row, col)))
		}
	}
	return buf
}
