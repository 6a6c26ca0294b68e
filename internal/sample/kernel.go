// Package sample implements the per-output-sample channel advance and
// stereo mix of section 4.7: interpolation over a channel's decoded
// waveform, PSG/noise synthesis, and the sample-counter-driven
// invocation of the sequence's clock tick. Grounded on the teacher's
// own lookup-table-driven audio synthesis in audio_lut.go, which
// precomputes tables once at package init and indexes them in the hot
// path rather than calling math functions per sample.
package sample

import "math"

// Interpolation selects one of section 4.7's seven resampling
// kernels.
type Interpolation uint8

const (
	InterpolationNone Interpolation = iota
	InterpolationLinear
	InterpolationFourPointLagrange
	InterpolationSixPointLagrange
	InterpolationOldSinc
	InterpolationSimpleSinc
	InterpolationLanczos
)

// SincWidth is the guard-sample padding every wrapped waveform carries
// on both ends so a kernel never reads out of bounds.
const SincWidth = 8

// interpolate samples buf at fractional position pos using kernel k.
// buf is assumed to already carry SincWidth guard samples on both
// sides, so index 0 of "real" audio lives at buf[SincWidth].
func interpolate(k Interpolation, buf []float32, pos float64, sampleIncrease float64) float32 {
	base := int(math.Floor(pos)) + SincWidth
	frac := pos - math.Floor(pos)

	at := func(off int) float32 {
		i := base + off
		if i < 0 {
			i = 0
		}
		if i >= len(buf) {
			i = len(buf) - 1
		}
		return buf[i]
	}

	switch k {
	case InterpolationNone:
		return at(0)
	case InterpolationLinear:
		return lerp(at(0), at(1), float32(frac))
	case InterpolationFourPointLagrange:
		return fourPointLagrange(at(-1), at(0), at(1), at(2), frac)
	case InterpolationSixPointLagrange:
		return sixPointLagrange(at(-2), at(-1), at(0), at(1), at(2), at(3), frac)
	case InterpolationOldSinc:
		return oldSinc(buf, base, frac, sampleIncrease)
	case InterpolationSimpleSinc:
		return simpleSinc(buf, base, frac)
	case InterpolationLanczos:
		return lanczosInterp(buf, base, frac)
	default:
		return at(0)
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// fourPointLagrange is the cubic Lagrange interpolant over the
// integer-spaced nodes s[-1..2], evaluated at x in [0,1), per section
// 4.7.
func fourPointLagrange(ym1, y0, y1, y2 float32, x float64) float32 {
	return lagrangeAt([]float64{-1, 0, 1, 2}, []float32{ym1, y0, y1, y2}, x)
}

// sixPointLagrange is the quintic Lagrange interpolant over the
// integer-spaced nodes s[-2..3], with the sample ratio shifted by -0.5
// before evaluation, per section 4.7.
func sixPointLagrange(ym2, ym1, y0, y1, y2, y3 float32, x float64) float32 {
	return lagrangeAt([]float64{-2, -1, 0, 1, 2, 3}, []float32{ym2, ym1, y0, y1, y2, y3}, x-0.5)
}

// lagrangeAt evaluates the Lagrange interpolating polynomial through
// (nodes[i], values[i]) at x, via the direct product-of-differences
// formula. Node counts here are small (4 or 6) so the O(n^2) cost is
// negligible compared to a closed-form expansion, and there is no risk
// of transcribing the expansion's coefficients wrong.
func lagrangeAt(nodes []float64, values []float32, x float64) float32 {
	var sum float64
	for i, xi := range nodes {
		term := float64(values[i])
		for j, xj := range nodes {
			if j == i {
				continue
			}
			term *= (x - xj) / (xi - xj)
		}
		sum += term
	}
	return float32(sum)
}
