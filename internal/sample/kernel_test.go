package sample

import (
	"math"
	"testing"
)

func TestInterpolationNoneSelectsFloor(t *testing.T) {
	buf := make([]float32, 4+2*SincWidth)
	for i := range buf {
		buf[i] = float32(i)
	}
	got := interpolate(InterpolationNone, buf, 2, 1)
	want := buf[SincWidth+2]
	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestLinearInterpolationMidpoint(t *testing.T) {
	buf := make([]float32, 4+2*SincWidth)
	buf[SincWidth+0] = 0
	buf[SincWidth+1] = 10
	got := interpolate(InterpolationLinear, buf, 0.5, 1)
	if math.Abs(float64(got-5)) > 1e-4 {
		t.Errorf("got %v want 5", got)
	}
}

func TestFourPointLagrangeReproducesLinearData(t *testing.T) {
	// A perfectly linear ramp should be reproduced exactly by any
	// polynomial interpolant, regardless of degree.
	buf := make([]float32, 6+2*SincWidth)
	for i := 0; i < 6; i++ {
		buf[SincWidth+i] = float32(i) * 2.5
	}
	got := interpolate(InterpolationFourPointLagrange, buf, 1.5, 1)
	want := float32(1.5) * 2.5
	if math.Abs(float64(got-want)) > 1e-3 {
		t.Errorf("got %v want %v", got, want)
	}
}

func TestSincKernelsPassThroughAtIntegerPositions(t *testing.T) {
	buf := make([]float32, 20+2*SincWidth)
	for i := range buf {
		buf[i] = float32(i % 3)
	}
	for _, k := range []Interpolation{InterpolationOldSinc, InterpolationSimpleSinc, InterpolationLanczos} {
		got := interpolate(k, buf, 10, 1)
		want := buf[SincWidth+10]
		if math.Abs(float64(got-want)) > 0.05 {
			t.Errorf("kernel %v: got %v want ~%v", k, got, want)
		}
	}
}

func TestPSGDutyTableShapes(t *testing.T) {
	for duty := 0; duty < 8; duty++ {
		highCount := 0
		for _, v := range psgDuty[duty] {
			if v == 1 {
				highCount++
			}
		}
		if highCount != duty+1 {
			t.Errorf("duty %d: expected %d high samples, got %d", duty, duty+1, highCount)
		}
	}
}
