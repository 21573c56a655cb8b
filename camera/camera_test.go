package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/scene"
)

func TestBuildBasisOrthonormal(t *testing.T) {
	c := scene.Camera{
		Position: mgl32.Vec3{0, 0, 5},
		LookAt:   mgl32.Vec3{0, 0, 0},
		Up:       mgl32.Vec3{0, 1, 0},
	}
	b := BuildBasis(c)

	const eps = 1e-4
	if d := b.Forward.Dot(b.Right); d > eps || d < -eps {
		t.Errorf("forward/right not orthogonal: dot=%v", d)
	}
	if d := b.Forward.Dot(b.Up); d > eps || d < -eps {
		t.Errorf("forward/up not orthogonal: dot=%v", d)
	}
	if d := b.Right.Dot(b.Up); d > eps || d < -eps {
		t.Errorf("right/up not orthogonal: dot=%v", d)
	}
	for _, v := range []mgl32.Vec3{b.Forward, b.Right, b.Up} {
		l := v.Len()
		if l < 1-eps || l > 1+eps {
			t.Errorf("basis vector not unit length: %v (len=%v)", v, l)
		}
	}
}

func TestBuildRecordSize(t *testing.T) {
	c := scene.Camera{
		Position: mgl32.Vec3{0, 0, 5}, LookAt: mgl32.Vec3{0, 0, 0}, Up: mgl32.Vec3{0, 1, 0},
		FovYDegrees: 60, Exposure: 1,
	}
	buf := Build(c, 1920, 1080, 0)
	if len(buf) != RecordSize {
		t.Fatalf("expected %d bytes, got %d", RecordSize, len(buf))
	}
}

func TestBuildBasisDegenerateUp(t *testing.T) {
	c := scene.Camera{
		Position: mgl32.Vec3{0, 0, 0},
		LookAt:   mgl32.Vec3{0, 1, 0},
		Up:       mgl32.Vec3{0, 1, 0}, // parallel to forward
	}
	b := BuildBasis(c)
	if l := b.Right.Len(); l < 0.99 || l > 1.01 {
		t.Errorf("expected a valid right vector even with degenerate up, got len %v", l)
	}
}
