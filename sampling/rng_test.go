package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRNGChiSquared bins a large number of draws from a single RNG
// stream into 10 equal-width buckets and checks the chi-squared
// statistic against a generous threshold, the property spec.md §8 asks
// for rather than a strict goodness-of-fit test (this is a smoke test
// against a badly broken hash, not a statistical certification).
func TestRNGChiSquared(t *testing.T) {
	const buckets = 10
	const samples = 200000
	var counts [buckets]int

	rng := NewRNG(17, 31, 1)
	for i := 0; i < samples; i++ {
		v := rng.Float32()
		require.GreaterOrEqual(t, v, float32(0))
		require.Less(t, v, float32(1))
		b := int(v * buckets)
		if b >= buckets {
			b = buckets - 1
		}
		counts[b]++
	}

	expected := float64(samples) / float64(buckets)
	chiSq := 0.0
	for _, c := range counts {
		diff := float64(c) - expected
		chiSq += diff * diff / expected
	}

	// 9 degrees of freedom; a critical value far above the standard
	// 0.001-significance threshold (27.9) leaves ample slack for a
	// passing, well-distributed hash while still catching a generator
	// that is obviously degenerate (e.g. constant or heavily clumped).
	assert.Less(t, chiSq, 60.0, "chi-squared statistic too high: %v, counts=%v", chiSq, counts)
}

func TestRNGDeterministic(t *testing.T) {
	a := NewRNG(5, 5, 5)
	b := NewRNG(5, 5, 5)
	for i := 0; i < 16; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestRNGDiffersAcrossPixels(t *testing.T) {
	a := NewRNG(0, 0, 0)
	b := NewRNG(1, 0, 0)
	assert.NotEqual(t, a.Next(), b.Next())
}
