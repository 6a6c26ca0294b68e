package sample

import "math"

// sincTableResolution is the windowed-sinc tables' sub-sample
// resolution, per section 4.7's "windowed resolution 8192".
const sincTableResolution = 8192

const sincKernelWidth = SincWidth // 8-wide kernel on each side of center

var oldSincTable = buildWindowedSincTable(blackmanWindow)
var simpleSincTable = buildWindowedSincTable(flatTopWindow)
var lanczosTable = buildLanczosTable(3)

// buildWindowedSincTable precomputes sinc(x)*window(x) for x spanning
// [-sincKernelWidth, sincKernelWidth) at sincTableResolution steps per
// integer sample, for one of the two windowed-sinc kernels in section
// 4.7 ("Old Sinc" / "Simple Sinc" share the same table shape, differing
// only in window function).
func buildWindowedSincTable(window func(x, width float64) float64) [][2 * sincKernelWidth]float32 {
	table := make([][2 * sincKernelWidth]float32, sincTableResolution)
	for step := 0; step < sincTableResolution; step++ {
		frac := float64(step) / sincTableResolution
		for k := -sincKernelWidth; k < sincKernelWidth; k++ {
			x := float64(k) - frac
			table[step][k+sincKernelWidth] = float32(sinc(x) * window(x, sincKernelWidth))
		}
	}
	return table
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

func blackmanWindow(x, width float64) float64 {
	if x < -width || x >= width {
		return 0
	}
	n := (x + width) / (2 * width)
	return 0.42 - 0.5*math.Cos(2*math.Pi*n) + 0.08*math.Cos(4*math.Pi*n)
}

func flatTopWindow(x, width float64) float64 {
	if x < -width || x >= width {
		return 0
	}
	n := (x + width) / (2 * width)
	return 1 - 1.93*math.Cos(2*math.Pi*n) + 1.29*math.Cos(4*math.Pi*n) -
		0.388*math.Cos(6*math.Pi*n) + 0.032*math.Cos(8*math.Pi*n)
}

// oldSinc evaluates the Blackman-windowed sinc kernel. When
// sampleIncrease > 1 the kernel step is pre-scaled by
// floor(8192/increase) to avoid aliasing on downsampling, per section
// 4.7.
func oldSinc(buf []float32, base int, frac float64, sampleIncrease float64) float32 {
	step := sincTableResolution
	if sampleIncrease > 1 {
		step = int(sincTableResolution / sampleIncrease)
		if step < 1 {
			step = 1
		}
	}
	tableIdx := int(frac*float64(step)) % sincTableResolution
	row := oldSincTable[tableIdx]
	return sumKernel(buf, base, row[:])
}

func simpleSinc(buf []float32, base int, frac float64) float32 {
	tableIdx := int(frac * sincTableResolution)
	row := simpleSincTable[tableIdx]
	return sumKernel(buf, base, row[:])
}

func sumKernel(buf []float32, base int, kernel []float32) float32 {
	var sum float32
	for k := -sincKernelWidth; k < sincKernelWidth; k++ {
		i := base + k
		if i < 0 {
			i = 0
		}
		if i >= len(buf) {
			i = len(buf) - 1
		}
		sum += buf[i] * kernel[k+sincKernelWidth]
	}
	return sum
}

// buildLanczosTable precomputes the Lanczos-windowed sinc kernel with
// parameter alpha=3, per section 4.7.
func buildLanczosTable(alpha int) [][2 * sincKernelWidth]float32 {
	table := make([][2 * sincKernelWidth]float32, sincTableResolution)
	a := float64(alpha)
	for step := 0; step < sincTableResolution; step++ {
		frac := float64(step) / sincTableResolution
		for k := -sincKernelWidth; k < sincKernelWidth; k++ {
			x := float64(k) - frac
			var v float64
			if x > -a && x < a {
				v = sinc(x) * sinc(x/a)
			}
			table[step][k+sincKernelWidth] = float32(v)
		}
	}
	return table
}

func lanczosInterp(buf []float32, base int, frac float64) float32 {
	tableIdx := int(frac * sincTableResolution)
	row := lanczosTable[tableIdx]
	return sumKernel(buf, base, row[:])
}
