package core

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Stronautt/PathTracer/scene"
)

func TestAccumulatorResetsOnCameraMove(t *testing.T) {
	a := NewAccumulator()
	cam := scene.Camera{Position: mgl32.Vec3{0, 0, 0}}

	if reset := a.Update(cam, 640, 480, 0); !reset {
		t.Error("first Update call should always reset")
	}
	if a.SampleCount != 1 {
		t.Errorf("expected SampleCount 1 after first update, got %d", a.SampleCount)
	}

	if reset := a.Update(cam, 640, 480, 0); reset {
		t.Error("unchanged camera/dims/scene should not reset")
	}
	if a.SampleCount != 2 {
		t.Errorf("expected SampleCount 2, got %d", a.SampleCount)
	}

	cam.Position = mgl32.Vec3{1, 0, 0}
	if reset := a.Update(cam, 640, 480, 0); !reset {
		t.Error("camera move should reset accumulation")
	}
	if a.SampleCount != 1 {
		t.Errorf("expected SampleCount reset to 1, got %d", a.SampleCount)
	}
}

func TestAccumulatorResetsOnResizeAndSceneEdit(t *testing.T) {
	a := NewAccumulator()
	cam := scene.Camera{}
	a.Update(cam, 640, 480, 0)

	if reset := a.Update(cam, 800, 480, 0); !reset {
		t.Error("resize should reset accumulation")
	}
	a.Update(cam, 800, 480, 0)
	if reset := a.Update(cam, 800, 480, 1); !reset {
		t.Error("scene epoch change should reset accumulation")
	}
}

func TestAccumulatorExplicitReset(t *testing.T) {
	a := NewAccumulator()
	cam := scene.Camera{}
	a.Update(cam, 640, 480, 0)
	a.Update(cam, 640, 480, 0)
	a.Reset()
	if a.SampleCount != 0 {
		t.Errorf("expected SampleCount 0 after explicit Reset, got %d", a.SampleCount)
	}
}
