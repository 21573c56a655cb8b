// Package core holds the small pieces of frame-to-frame state that sit
// above the GPU buffers: the accumulation reset tracker. Grounded on the
// teacher's rt/app/app.go Update dirty-comparison pattern (it compares
// the last view-projection matrix to decide whether to rebuild the
// voxel BVH); here the same style of "compare last frame's inputs,
// raise a flag on change" tracks when the accumulation buffer must be
// cleared instead.
package core

import (
	"github.com/Stronautt/PathTracer/scene"
)

// Accumulator tracks the inputs that must invalidate the progressive
// accumulation buffer (spec.md §4.10): camera movement, a resize, any
// scene edit, or a tonemap/exposure change. SampleCount is the 1-based
// number of the sample being accumulated; the path-trace kernel receives
// SampleCount-1 as camera.frame_index.
type Accumulator struct {
	SampleCount uint32

	lastCamera     scene.Camera
	lastWidth      uint32
	lastHeight     uint32
	lastSceneEpoch uint64
	initialized    bool
}

// NewAccumulator returns a freshly reset accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Update compares the current frame's camera, output dimensions and
// scene epoch (a counter the caller bumps on every scene edit) against
// what was last seen, clears and resets SampleCount on any change, and
// always increments SampleCount by one afterward — mirroring the
// teacher's "compare then rebuild" Update structure rather than a
// separate dirty-flag setter/consumer pair.
func (a *Accumulator) Update(cam scene.Camera, width, height uint32, sceneEpoch uint64) (reset bool) {
	if !a.initialized || cam != a.lastCamera || width != a.lastWidth || height != a.lastHeight || sceneEpoch != a.lastSceneEpoch {
		a.SampleCount = 0
		reset = true
	}
	a.lastCamera = cam
	a.lastWidth = width
	a.lastHeight = height
	a.lastSceneEpoch = sceneEpoch
	a.initialized = true

	a.SampleCount++
	return reset
}

// Reset forces SampleCount back to zero without waiting for an input
// change to be detected, used when a caller explicitly invalidates the
// render (e.g. a "restart accumulation" UI action).
func (a *Accumulator) Reset() {
	a.SampleCount = 0
}
