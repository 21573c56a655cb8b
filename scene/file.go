package scene

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"
)

// SchemaVersion is written to every scene file this package produces and
// checked on load; it lets a future format change detect old files
// instead of silently misreading them.
const SchemaVersion = 1

// fileDoc is the on-disk shape of a scene file: a `camera` block, a
// `figures` list of analytic/SDF/fractal shapes and a `models` list of
// mesh references, per spec.md §6.
type fileDoc struct {
	Version int           `yaml:"version" json:"version"`
	Camera  fileCamera    `yaml:"camera" json:"camera"`
	Figures []fileFigure  `yaml:"figures" json:"figures"`
	Models  []fileModel   `yaml:"models" json:"models"`
	Post    []int32       `yaml:"post_effects,omitempty" json:"post_effects,omitempty"`
}

type fileCamera struct {
	Position   [3]float32 `yaml:"position" json:"position"`
	Rotation   [3]float32 `yaml:"rotation" json:"rotation"` // pitch, yaw, roll, degrees
	FovY       float32    `yaml:"fov" json:"fov"`
	Aperture   float32    `yaml:"aperture" json:"aperture"`
	FocusDist  float32    `yaml:"focus_dist" json:"focus_dist"`
	Exposure   float32    `yaml:"exposure" json:"exposure"`
	Tonemapper int32      `yaml:"tonemapper" json:"tonemapper"`
}

type fileMaterial struct {
	BaseColor    [3]float32 `yaml:"base_color" json:"base_color"`
	Emissive     [3]float32 `yaml:"emissive,omitempty" json:"emissive,omitempty"`
	Roughness    float32    `yaml:"roughness" json:"roughness"`
	Metalness    float32    `yaml:"metalness" json:"metalness"`
	IOR          float32    `yaml:"ior" json:"ior"`
	Transparency float32    `yaml:"transparency" json:"transparency"`
	Texture      string     `yaml:"texture,omitempty" json:"texture,omitempty"`
}

type fileFigure struct {
	Type     string       `yaml:"type" json:"type"`
	Material fileMaterial `yaml:"material" json:"material"`

	Center mgl32.Vec3 `yaml:"center,omitempty" json:"center,omitempty"`
	Radius float32    `yaml:"radius,omitempty" json:"radius,omitempty"`

	Normal mgl32.Vec3 `yaml:"normal,omitempty" json:"normal,omitempty"`
	Point  mgl32.Vec3 `yaml:"point,omitempty" json:"point,omitempty"`

	HalfSize mgl32.Vec3 `yaml:"half_size,omitempty" json:"half_size,omitempty"`
	Axis     mgl32.Vec3 `yaml:"axis,omitempty" json:"axis,omitempty"`
	Height   float32    `yaml:"height,omitempty" json:"height,omitempty"`

	SDFVariant     string     `yaml:"sdf_variant,omitempty" json:"sdf_variant,omitempty"`
	FractalVariant string     `yaml:"fractal_variant,omitempty" json:"fractal_variant,omitempty"`
	Power          float32    `yaml:"power,omitempty" json:"power,omitempty"`
	JuliaC         mgl32.Vec4 `yaml:"julia_c,omitempty" json:"julia_c,omitempty"`

	CSGSubtractFrom int `yaml:"csg_subtract_from,omitempty" json:"csg_subtract_from,omitempty"`
}

type fileModel struct {
	Path             string       `yaml:"path" json:"path"`
	MaterialOverride *fileMaterial `yaml:"material_override,omitempty" json:"material_override,omitempty"`
	Position         [3]float32   `yaml:"position,omitempty" json:"position,omitempty"`
}

// Load reads a scene file, dispatching on extension between YAML (the
// default) and JSON, and returns the built logical Scene.
func Load(path string) (*Scene, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scene: read %s: %w", path, err)
	}

	var doc fileDoc
	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("scene: parse json %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("scene: parse yaml %s: %w", path, err)
		}
	}

	if doc.Version != 0 && doc.Version != SchemaVersion {
		return nil, fmt.Errorf("scene: %s: unsupported schema version %d", path, doc.Version)
	}

	return buildFromDoc(&doc, filepath.Dir(path))
}

func buildFromDoc(doc *fileDoc, baseDir string) (*Scene, error) {
	s := NewScene()

	position := mgl32.Vec3(doc.Camera.Position)
	lookAt, up := lookAtFromRotation(position, doc.Camera.Rotation)
	s.Camera = Camera{
		Position:    position,
		LookAt:      lookAt,
		Up:          up,
		FovYDegrees: doc.Camera.FovY,
		Aperture:    doc.Camera.Aperture,
		FocusDist:   doc.Camera.FocusDist,
		Exposure:    doc.Camera.Exposure,
		Tonemapper:  doc.Camera.Tonemapper,
	}
	if s.Camera.FovYDegrees == 0 {
		s.Camera.FovYDegrees = 60
	}
	if s.Camera.Exposure == 0 {
		s.Camera.Exposure = 1
	}

	s.PostEffects = doc.Post

	for i, fig := range doc.Figures {
		matIdx := s.AddMaterial(materialFromFile(fig.Material))
		shape, err := shapeFromFile(fig, matIdx)
		if err != nil {
			return nil, fmt.Errorf("scene: figure %d: %w", i, err)
		}
		s.AddShape(shape)
	}

	// Resolve csg_subtract_from references now that every figure has a
	// final index (1:1 with doc.Figures since every figure yields exactly
	// one shape). The link is bidirectional: the subtrahend's Partner
	// points at the positive shape it carves, and the positive shape's
	// Partner points back at the subtrahend, since bvh.wgsl's post-pass
	// walks from the positive hit to its negative volume.
	for i := range s.Shapes {
		s.Shapes[i].Partner = -1
	}
	for i, fig := range doc.Figures {
		if fig.CSGSubtractFrom <= 0 {
			continue
		}
		positiveIdx := fig.CSGSubtractFrom - 1
		s.Shapes[i].CSG = CSGSubtract
		s.Shapes[i].Partner = int32(positiveIdx)
		s.Shapes[positiveIdx].Partner = int32(i)
	}

	for i, m := range doc.Models {
		path := m.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		materialOverride := int32(-1)
		if m.MaterialOverride != nil {
			materialOverride = s.AddMaterial(materialFromFile(*m.MaterialOverride))
		}
		triangles, err := LoadOBJ(path, materialOverride, mgl32.Translate3D(m.Position[0], m.Position[1], m.Position[2]))
		if err != nil {
			return nil, fmt.Errorf("scene: model %d (%s): %w", i, path, err)
		}
		for _, tri := range triangles {
			s.AddShape(tri)
		}
		s.Models = append(s.Models, Model{Path: path, MaterialOverride: materialOverride})
	}

	for idx, shape := range s.Shapes {
		if shape.Kind == ShapeSphere && !s.Materials[shape.Material].Emissive.ApproxEqual(mgl32.Vec3{}) {
			s.Lights = append(s.Lights, Light{Kind: LightSphere, ShapeIdx: int32(idx), Intensity: s.Materials[shape.Material].Emissive.Len()})
		}
	}

	return s, nil
}

func materialFromFile(fm fileMaterial) Material {
	baseColor := mgl32.Vec3(fm.BaseColor)
	if baseColor.ApproxEqual(mgl32.Vec3{}) {
		baseColor = mgl32.Vec3{0.8, 0.8, 0.8}
	}
	roughness := fm.Roughness
	if roughness == 0 {
		roughness = 0.5
	}
	m := Material{
		BaseColor:    baseColor,
		Emissive:     mgl32.Vec3(fm.Emissive),
		Roughness:    roughness,
		Metalness:    fm.Metalness,
		IOR:          fm.IOR,
		Transparency: fm.Transparency,
		TextureIndex: -1,
	}
	if m.IOR == 0 {
		m.IOR = 1.5
	}
	return m
}

// lookAtFromRotation turns the external pitch/yaw/roll (degrees, applied
// intrinsically yaw then pitch then roll) schema into the LookAt/Up pair
// the rest of the engine works with. Yaw rotates about world Y, pitch
// about world X, roll about world Z, composed as yaw * pitch * roll and
// applied to the base forward (0,0,-1) and up (0,1,0) vectors.
func lookAtFromRotation(position mgl32.Vec3, rotationDeg [3]float32) (lookAt, up mgl32.Vec3) {
	pitch := mgl32.DegToRad(rotationDeg[0])
	yaw := mgl32.DegToRad(rotationDeg[1])
	roll := mgl32.DegToRad(rotationDeg[2])

	yawQ := mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
	pitchQ := mgl32.QuatRotate(pitch, mgl32.Vec3{1, 0, 0})
	rollQ := mgl32.QuatRotate(roll, mgl32.Vec3{0, 0, 1})
	rot := yawQ.Mul(pitchQ).Mul(rollQ)

	forward := rot.Rotate(mgl32.Vec3{0, 0, -1})
	up = rot.Rotate(mgl32.Vec3{0, 1, 0})
	lookAt = position.Add(forward)
	return lookAt, up
}

// rotationFromBasis is lookAtFromRotation's inverse, used by Save to
// re-export a LookAt/Up pair as pitch/yaw/roll. Roll has no effect on
// forward (it rotates about the world Z axis, which fixes (0,0,-1)), so
// pitch/yaw recover exactly from forward alone; roll is then read off by
// comparing the actual up vector against the roll=0 reference up, both
// measured as a signed angle about the forward axis.
func rotationFromBasis(position, lookAt, up mgl32.Vec3) [3]float32 {
	forward := lookAt.Sub(position)
	if forward.Len() < 1e-6 {
		forward = mgl32.Vec3{0, 0, -1}
	} else {
		forward = forward.Normalize()
	}

	fy := forward.Y()
	if fy > 1 {
		fy = 1
	} else if fy < -1 {
		fy = -1
	}
	pitch := float32(math.Asin(float64(fy)))
	yaw := float32(math.Atan2(float64(-forward.X()), float64(-forward.Z())))

	yawQ := mgl32.QuatRotate(yaw, mgl32.Vec3{0, 1, 0})
	pitchQ := mgl32.QuatRotate(pitch, mgl32.Vec3{1, 0, 0})
	refUp := yawQ.Mul(pitchQ).Rotate(mgl32.Vec3{0, 1, 0})

	actualUp := up
	if actualUp.Len() < 1e-6 {
		actualUp = refUp
	} else {
		actualUp = actualUp.Normalize()
	}
	cosR := refUp.Dot(actualUp)
	sinR := actualUp.Cross(refUp).Dot(forward)
	roll := float32(math.Atan2(float64(sinR), float64(cosR)))

	return [3]float32{mgl32.RadToDeg(pitch), mgl32.RadToDeg(yaw), mgl32.RadToDeg(roll)}
}

func shapeFromFile(fig fileFigure, matIdx int32) (Shape, error) {
	s := Shape{Material: matIdx, Partner: -1}
	switch strings.ToLower(fig.Type) {
	case "sphere":
		s.Kind = ShapeSphere
		s.Center, s.Radius = fig.Center, fig.Radius
	case "plane":
		s.Kind = ShapePlane
		s.Normal, s.Point = fig.Normal, fig.Point
	case "cube":
		s.Kind = ShapeCube
		s.Center, s.HalfSize = fig.Center, fig.HalfSize
	case "cylinder":
		s.Kind = ShapeCylinder
		s.Center, s.Axis, s.Radius, s.Height = fig.Center, fig.Axis, fig.Radius, fig.Height
	case "cone":
		s.Kind = ShapeCone
		s.Center, s.Axis, s.Radius, s.Height = fig.Center, fig.Axis, fig.Radius, fig.Height
	case "disc":
		s.Kind = ShapeDisc
		s.Center, s.Normal, s.Radius = fig.Center, fig.Normal, fig.Radius
	case "ellipsoid":
		s.Kind = ShapeEllipsoid
		s.Center, s.Radii = fig.Center, fig.HalfSize
	case "paraboloid":
		s.Kind = ShapeParaboloid
		s.Center, s.Axis, s.Radius, s.Height = fig.Center, fig.Axis, fig.Radius, fig.Height
	case "hyperboloid":
		s.Kind = ShapeHyperboloid
		s.Center, s.Axis, s.Radius, s.Height = fig.Center, fig.Axis, fig.Radius, fig.Height
	case "pyramid":
		s.Kind = ShapePyramid
		s.Center, s.HalfSize, s.Height = fig.Center, fig.HalfSize, fig.Height
	case "tetrahedron":
		s.Kind = ShapeTetrahedron
		s.Center, s.Radius = fig.Center, fig.Radius
	case "sdf":
		s.Kind = ShapeSDF
		s.Center, s.Radius = fig.Center, fig.Radius
		switch strings.ToLower(fig.SDFVariant) {
		case "mebius":
			s.SDFVariant = SDFMebius
		case "paraboloid_like":
			s.SDFVariant = SDFParaboloidLike
		case "hyperboloid_like":
			s.SDFVariant = SDFHyperboloidLike
		default:
			s.SDFVariant = SDFTorus
		}
	case "torus":
		s.Kind = ShapeSDF
		s.Center, s.Radius = fig.Center, fig.Radius
		s.SDFVariant = SDFTorus
	case "mebius":
		s.Kind = ShapeSDF
		s.Center, s.Radius = fig.Center, fig.Radius
		s.SDFVariant = SDFMebius
	case "fractal":
		s.Kind = ShapeFractal
		s.Center, s.Radius, s.Power = fig.Center, fig.Radius, fig.Power
		if strings.ToLower(fig.FractalVariant) == "julia" {
			s.FractalVariant = FractalJulia
			s.JuliaC = fig.JuliaC
		}
	case "mandelbulb":
		s.Kind = ShapeFractal
		s.Center, s.Radius, s.Power = fig.Center, fig.Radius, fig.Power
		s.FractalVariant = FractalMandelbulb
	case "julia":
		s.Kind = ShapeFractal
		s.Center, s.Radius, s.Power = fig.Center, fig.Radius, fig.Power
		s.FractalVariant = FractalJulia
		s.JuliaC = fig.JuliaC
	case "skybox":
		s.Kind = ShapeSphere
		s.Center, s.Radius = fig.Center, fig.Radius
		if s.Radius == 0 {
			s.Radius = 1e4
		}
	default:
		return Shape{}, fmt.Errorf("unknown figure type %q", fig.Type)
	}
	return s, nil
}

// Save writes s back out as YAML: the schema version, the camera block
// (with LookAt/Up turned back into pitch/yaw/roll) and the post-effect
// list. Figures, materials and models are not written, so a saved file
// loads back as a scene with no shapes.
func Save(path string, s *Scene) error {
	doc := fileDoc{
		Version: SchemaVersion,
		Camera: fileCamera{
			Position:   [3]float32(s.Camera.Position),
			Rotation:   rotationFromBasis(s.Camera.Position, s.Camera.LookAt, s.Camera.Up),
			FovY:       s.Camera.FovYDegrees,
			Aperture:   s.Camera.Aperture,
			FocusDist:  s.Camera.FocusDist,
			Exposure:   s.Camera.Exposure,
			Tonemapper: s.Camera.Tonemapper,
		},
		Post: s.PostEffects,
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("scene: marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("scene: write %s: %w", path, err)
	}
	return nil
}
