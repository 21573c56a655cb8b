package editor

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/bvh"
	"github.com/Stronautt/PathTracer/scene"
	"github.com/Stronautt/PathTracer/scenebuild"
)

func buildTestTree(shapes []scene.Shape) bvh.Tree {
	prims := make([]bvh.Primitive, 0, len(shapes))
	for i, s := range shapes {
		if s.IsInfinite() {
			continue
		}
		min, max := scenebuild.AABBOf(s)
		prims = append(prims, bvh.Primitive{
			Min: min, Max: max, Centroid: min.Add(max).Mul(0.5), Index: int32(i),
		})
	}
	return bvh.Build(prims)
}

func TestPickHitsNearestSphere(t *testing.T) {
	s := scene.NewScene()
	s.AddShape(scene.Shape{Kind: scene.ShapeSphere, Center: mgl32.Vec3{0, 0, -5}, Radius: 1, Partner: -1})
	s.AddShape(scene.Shape{Kind: scene.ShapeSphere, Center: mgl32.Vec3{0, 0, -10}, Radius: 1, Partner: -1})
	tree := buildTestTree(s.Shapes)

	ray := Ray{Origin: mgl32.Vec3{0, 0, 0}, Direction: mgl32.Vec3{0, 0, -1}}
	hit := Pick(s, tree, ray)

	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.ShapeIndex != 0 {
		t.Errorf("expected nearest sphere (index 0), got %d", hit.ShapeIndex)
	}
	if hit.T < 3.9 || hit.T > 4.1 {
		t.Errorf("expected t near 4.0, got %v", hit.T)
	}
}

func TestPickMisses(t *testing.T) {
	s := scene.NewScene()
	s.AddShape(scene.Shape{Kind: scene.ShapeSphere, Center: mgl32.Vec3{0, 0, -5}, Radius: 1, Partner: -1})
	tree := buildTestTree(s.Shapes)

	ray := Ray{Origin: mgl32.Vec3{100, 100, 0}, Direction: mgl32.Vec3{0, 0, -1}}
	if hit := Pick(s, tree, ray); hit != nil {
		t.Errorf("expected no hit, got %+v", hit)
	}
}

func TestPickInfinitePlane(t *testing.T) {
	s := scene.NewScene()
	s.AddShape(scene.Shape{Kind: scene.ShapePlane, Point: mgl32.Vec3{0, -1, 0}, Normal: mgl32.Vec3{0, 1, 0}, Partner: -1})
	tree := buildTestTree(s.Shapes)

	ray := Ray{Origin: mgl32.Vec3{0, 5, 0}, Direction: mgl32.Vec3{0, -1, 0}}
	hit := Pick(s, tree, ray)
	if hit == nil {
		t.Fatal("expected plane hit")
	}
	if hit.T < 5.9 || hit.T > 6.1 {
		t.Errorf("expected t near 6.0, got %v", hit.T)
	}
}

func TestRayFromScreenCenterMatchesForward(t *testing.T) {
	cam := scene.Camera{
		Position: mgl32.Vec3{0, 0, 5}, LookAt: mgl32.Vec3{0, 0, 0}, Up: mgl32.Vec3{0, 1, 0}, FovYDegrees: 60,
	}
	ray := RayFromScreen(0, 0, 800, 600, cam)
	want := mgl32.Vec3{0, 0, -1}
	if d := ray.Direction.Dot(want); d < 0.999 {
		t.Errorf("center ray should point at forward direction, got dot=%v", d)
	}
}
