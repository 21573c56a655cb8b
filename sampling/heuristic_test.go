package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPowerHeuristicSumsToOne checks the MIS weight law from spec.md §8:
// for a sample drawn from strategy A, weight(A->B) + weight(B->A) should
// sum to 1 when evaluated with the same pair of PDFs swapped.
func TestPowerHeuristicSumsToOne(t *testing.T) {
	cases := [][2]float32{
		{1.0, 1.0},
		{2.0, 0.5},
		{0.1, 5.0},
		{3.0, 3.0},
	}
	for _, c := range cases {
		wA := PowerHeuristic(c[0], c[1])
		wB := PowerHeuristic(c[1], c[0])
		assert.InDelta(t, 1.0, float64(wA+wB), 1e-5)
	}
}

func TestPowerHeuristicZeroPDF(t *testing.T) {
	assert.Equal(t, float32(0), PowerHeuristic(0, 1))
	assert.Equal(t, float32(0), PowerHeuristic(0, 0))
}

// TestGGXEnergyNonGain is a coarse white-furnace check: integrating the
// GGX D*G2 term over a hemisphere of outgoing directions for a fixed
// incoming direction must stay within a small constant factor of 1 (at
// most 4, allowing for the coarse half-vector proxy), across a spread of
// roughness values.
func TestGGXEnergyNonGain(t *testing.T) {
	const thetaSteps = 64
	const phiSteps = 64

	for _, alpha := range []float32{0.05, 0.2, 0.5, 0.9} {
		cosThetaO := float32(0.8)
		total := 0.0
		for i := 0; i < thetaSteps; i++ {
			thetaI := (float64(i) + 0.5) / thetaSteps * math.Pi / 2
			cosThetaI := float32(math.Cos(thetaI))
			sinThetaI := float32(math.Sin(thetaI))
			for j := 0; j < phiSteps; j++ {
				cosThetaH := (cosThetaO + cosThetaI) / 2 // coarse proxy, not a full half-vector reconstruction
				if cosThetaH <= 0 {
					continue
				}
				d := GGXD(cosThetaH, alpha)
				g2 := SmithG2(cosThetaO, cosThetaI, alpha)
				// Solid-angle weighted contribution; dPhi*dTheta over the
				// hemisphere with a sin(theta) Jacobian.
				dOmega := (math.Pi / 2 / thetaSteps) * (2 * math.Pi / phiSteps) * float64(sinThetaI)
				total += float64(d*g2) * dOmega * float64(cosThetaI)
			}
		}
		// The D*G2*cos integral for a normalized microfacet distribution
		// stays within a small constant factor of 1 for this coarse
		// quadrature; a large overshoot would indicate an unnormalized or
		// energy-gaining term.
		if total > 4.0 {
			t.Errorf("alpha=%v: GGX D*G2 hemispherical integral too high: %v", alpha, total)
		}
	}
}

func TestFresnelSchlickBounds(t *testing.T) {
	for _, cosTheta := range []float32{0, 0.25, 0.5, 0.75, 1.0} {
		f := FresnelSchlick(cosTheta, 0.04)
		if f < 0 || f > 1 {
			t.Errorf("Fresnel reflectance out of [0,1] at cosTheta=%v: %v", cosTheta, f)
		}
	}
	// Near grazing angles reflectance should approach 1.
	assert.Greater(t, FresnelSchlick(0.01, 0.04), float32(0.9))
}
