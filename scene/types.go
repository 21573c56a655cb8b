// Package scene holds the logical, CPU-side scene graph: shapes,
// materials, lights and the camera descriptor, before any of it is
// lowered into GPU wire records by the scenebuild package.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// ShapeKind tags the variant held by a Shape. The numeric values mirror
// the shape-tag constants emitted into the WGSL types module so the CPU
// and GPU sides agree on dispatch without a lookup table.
type ShapeKind int32

const (
	ShapeSphere ShapeKind = iota
	ShapePlane
	ShapeCube
	ShapeCylinder
	ShapeCone
	ShapeDisc
	ShapeTriangle
	ShapeEllipsoid
	ShapeParaboloid
	ShapeHyperboloid
	ShapePyramid
	ShapeTetrahedron
	ShapeSDF
	ShapeFractal
)

// CSGOp names the boolean operation a shape participates in. Only
// subtraction is supported by the GPU traversal; a shape with CSGNone
// is an ordinary standalone primitive.
type CSGOp int32

const (
	CSGNone CSGOp = iota
	CSGSubtract
)

// SDFKind selects the closed-form field evaluated by the WGSL sdf
// module when a Shape's Kind is ShapeSDF.
type SDFKind int32

const (
	SDFTorus SDFKind = iota
	SDFMebius
	SDFParaboloidLike
	SDFHyperboloidLike
)

// FractalKind selects between the two distance-estimator fractals the
// WGSL fractal module knows how to march.
type FractalKind int32

const (
	FractalMandelbulb FractalKind = iota
	FractalJulia
)

// Shape is the logical, readable form of a single renderable primitive.
// scenebuild.Build lowers a []Shape into the fixed 112-byte GPU record
// described in spec.md §3.
type Shape struct {
	ID       uuid.UUID
	Kind     ShapeKind
	Material int32 // index into Scene.Materials

	// Analytic shape parameters; which fields are meaningful depends on
	// Kind, matching the WGSL intersect_analytic module's field reads.
	Center mgl32.Vec3
	Radius float32

	Normal   mgl32.Vec3 // plane, disc
	Point    mgl32.Vec3 // plane
	HalfSize mgl32.Vec3 // cube

	Axis      mgl32.Vec3 // cylinder/cone/paraboloid/hyperboloid axis
	Height    float32
	RadiusTop float32

	Radii mgl32.Vec3 // ellipsoid semi-axes

	// Triangle vertices and per-vertex UVs. Kept as explicit vec2 fields
	// (Open Question decision, see DESIGN.md) rather than packed into
	// the struct padding; scenebuild packs them to half floats only at
	// GPU-lowering time.
	V0, V1, V2    mgl32.Vec3
	UV0, UV1, UV2 mgl32.Vec2

	// SDF / fractal parameters.
	SDFVariant     SDFKind
	FractalVariant FractalKind
	Power          float32 // Mandelbulb power (Julia reads only JuliaC)
	JuliaC         mgl32.Vec4

	// CSG pairing: a shape with CSGOp == CSGSubtract has its own volume
	// removed from Partner (the positive shape) during GPU traversal's CSG
	// post-pass; the positive shape's Partner points back at it.
	CSG     CSGOp
	Partner int32 // index of the other shape in the pair, -1 if unset

	// Infinite shapes (plane, and any shape with no finite bound) are
	// excluded from the BVH and tested directly every ray; the builder
	// detects this by calling Shape.IsInfinite.
}

// IsInfinite reports whether Shape has no finite axis-aligned bound and
// must be traced directly by every ray rather than through the BVH.
func (s Shape) IsInfinite() bool {
	switch s.Kind {
	case ShapePlane:
		return true
	case ShapeSDF, ShapeFractal:
		// Quadric-like SDFs and fractals are treated as bounded by a
		// generous enclosing radius; unbounded variants are not modeled.
		return false
	default:
		return false
	}
}

// Material mirrors the physically based parameters of the WGSL material
// record; field layout matches spec.md §3's 48-byte Material.
type Material struct {
	BaseColor    mgl32.Vec3
	Emissive     mgl32.Vec3
	Roughness    float32
	Metalness    float32
	IOR          float32
	Transparency float32
	TextureIndex int32 // -1 when untextured
}

// DefaultMaterial returns a neutral, fully rough dielectric, matching
// the teacher's DefaultMaterial convention in rt/core/material.go.
func DefaultMaterial() Material {
	return Material{
		BaseColor:    mgl32.Vec3{0.8, 0.8, 0.8},
		Roughness:    1.0,
		Metalness:    0.0,
		IOR:          1.5,
		TextureIndex: -1,
	}
}

// LightKind distinguishes the sphere-light used by NEE from a purely
// emissive shape that is only ever hit by chance.
type LightKind int32

const (
	LightSphere LightKind = iota
)

// Light indexes a Shape that participates in next-event estimation.
type Light struct {
	Kind      LightKind
	ShapeIdx  int32
	Intensity float32
}

// Camera is the logical descriptor loaded from a scene file; camera.Build
// turns it into the 80-byte GPU uniform with an orthonormal basis.
type Camera struct {
	Position    mgl32.Vec3
	LookAt      mgl32.Vec3
	Up          mgl32.Vec3
	FovYDegrees float32
	Aperture    float32
	FocusDist   float32
	Exposure    float32
	Tonemapper  int32
}

// TextureRef points a Material's TextureIndex at a packed atlas entry.
type TextureRef struct {
	Path string
	U0, V0, U1, V1 float32 // atlas UV rectangle; BuildAtlas does not set these (placement goes to TextureAtlas.Infos)
}

// Model groups triangles loaded from a single mesh file so a scene file
// can refer to them as one unit and override their material.
type Model struct {
	ID               uuid.UUID
	Path             string
	MaterialOverride int32 // -1 when the triangles use the default material (index 0)
	Transform        mgl32.Mat4
}

// Scene is the full logical scene graph: every shape (including those
// expanded from Models), every material, every light and texture, and
// the camera to render it from.
type Scene struct {
	Camera    Camera
	Shapes    []Shape
	Materials []Material
	Lights    []Light
	Textures  []TextureRef
	Models    []Model

	PostEffects []int32 // up to 8 post-process effect IDs, spec.md §4.9
}

// NewScene returns an empty scene with one default material already
// present at index 0, so a Shape can reference it without a nil check.
func NewScene() *Scene {
	return &Scene{
		Materials: []Material{DefaultMaterial()},
	}
}

// AddShape appends shape and returns its index in s.Shapes.
func (s *Scene) AddShape(shape Shape) int32 {
	if shape.ID == uuid.Nil {
		shape.ID = uuid.New()
	}
	idx := int32(len(s.Shapes))
	s.Shapes = append(s.Shapes, shape)
	return idx
}

// AddMaterial appends m and returns its index in s.Materials.
func (s *Scene) AddMaterial(m Material) int32 {
	idx := int32(len(s.Materials))
	s.Materials = append(s.Materials, m)
	return idx
}
