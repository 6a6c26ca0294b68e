package replaygain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSilenceYieldsZeroPeak(t *testing.T) {
	a := NewAnalyzer(44100)
	for i := 0; i < 44100; i++ {
		a.AddFrame(0, 0)
	}
	_, peak := a.Finish()
	require.Equal(t, float32(0), peak)
}

func TestLouderSignalYieldsLowerGain(t *testing.T) {
	quiet := NewAnalyzer(44100)
	loud := NewAnalyzer(44100)
	for i := 0; i < 44100; i++ {
		quiet.AddFrame(0.05, 0.05)
		loud.AddFrame(0.5, 0.5)
	}
	quietGain, quietPeak := quiet.Finish()
	loudGain, loudPeak := loud.Finish()

	require.Greater(t, loudPeak, quietPeak)
	require.Less(t, loudGain, quietGain)
}

func TestAlbumAnalyzerSumsHistogramsAndTracksPeakOfPeaks(t *testing.T) {
	trackA := NewAnalyzer(44100)
	trackB := NewAnalyzer(44100)
	for i := 0; i < 44100; i++ {
		trackA.AddFrame(0.1, 0.1)
		trackB.AddFrame(0.4, 0.4)
	}
	_, peakA := trackA.Finish()
	_, peakB := trackB.Finish()

	album := NewAlbumAnalyzer()
	album.AddTrack(trackA.Histogram(), peakA)
	album.AddTrack(trackB.Histogram(), peakB)

	_, albumPeak := album.Finish()
	require.Equal(t, peakB, albumPeak)
}

func TestAddFramesMatchesAddFrame(t *testing.T) {
	perSample := NewAnalyzer(44100)
	batch := NewAnalyzer(44100)

	left := make([]float32, 2000)
	right := make([]float32, 2000)
	for i := range left {
		left[i] = 0.2
		right[i] = -0.2
	}
	for i := range left {
		perSample.AddFrame(left[i], right[i])
	}
	require.NoError(t, batch.AddFrames(left, right))

	gainA, peakA := perSample.Finish()
	gainB, peakB := batch.Finish()
	require.Equal(t, peakA, peakB)
	require.InDelta(t, gainA, gainB, 1e-4)
}

func TestAddFramesRejectsMismatchedLengths(t *testing.T) {
	a := NewAnalyzer(44100)
	require.Error(t, a.AddFrames(make([]float32, 3), make([]float32, 4)))
}

func TestNearestSupportedRateFallsBackToClosestTable(t *testing.T) {
	require.Equal(t, 44100, nearestSupportedRate(32000))
	require.Equal(t, 48000, nearestSupportedRate(48000))
}
