package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestWelfordMatchesPlainMean checks spec.md §8's Welford stability
// property: the running mean after N samples equals the plain
// arithmetic mean of the same N samples, to floating-point tolerance.
func TestWelfordMatchesPlainMean(t *testing.T) {
	samples := []float32{0.2, 5.0, 1.3, -2.0, 3.3, 0.0, 9.9, 1.1}

	var w Welford
	var sum float32
	for _, s := range samples {
		w.Add(s)
		sum += s
	}

	want := sum / float32(len(samples))
	assert.InDelta(t, want, w.Mean(), 1e-4)
	assert.Equal(t, len(samples), w.Count())
}

func TestWelfordReset(t *testing.T) {
	var w Welford
	w.Add(1)
	w.Add(2)
	w.Reset()
	assert.Equal(t, 0, w.Count())
	assert.Equal(t, float32(0), w.Mean())
}

// TestWelfordStableUnderManySamples guards against drift accumulating
// over a long-running accumulation (thousands of samples), which is the
// whole reason the kernel uses this recurrence instead of sum/count.
func TestWelfordStableUnderManySamples(t *testing.T) {
	var w Welford
	const n = 100000
	for i := 0; i < n; i++ {
		w.Add(1.0)
	}
	if math.Abs(float64(w.Mean())-1.0) > 1e-3 {
		t.Errorf("expected mean to stay at 1.0 after %d identical samples, got %v", n, w.Mean())
	}
}
