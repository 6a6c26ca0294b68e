package timing

import (
	"testing"

	"github.com/CyberBotX/ncsfplay/internal/sdat"
	"github.com/stretchr/testify/require"
)

func oneTrackSDAT(sseqData []byte) *sdat.SDAT {
	return &sdat.SDAT{
		Sequences: []sdat.SequenceInfo{{BankIndex: 0, PlayerNo: 0, ChannelPri: 64}},
		Banks:     []sdat.BankInfo{{WaveArchive: [4]uint16{0xFFFF, 0xFFFF, 0xFFFF, 0xFFFF}}},
		Players:   []sdat.PlayerInfo{{ChannelMask: 0xFFFF}},
		SSEQs:     []*sdat.SSEQ{{Data: sseqData}},
		SBNKs:     []*sdat.SBNK{{}},
	}
}

// TestLoopTerminationReportsLoop mirrors S2: a Rest then a backward
// Goto to the stream's start loops forever, so with Loops=2 the timing
// variant must report Loop once the second pass through hits the Goto.
func TestLoopTerminationReportsLoop(t *testing.T) {
	sseqData := []byte{0x80, 0x01, 0x94, 0x00, 0x00, 0x00} // Rest(1), Goto(0)
	sd := oneTrackSDAT(sseqData)

	result, err := Measure(sd, 0, Options{Loops: 2, MaxSeconds: 60})
	require.NoError(t, err)
	require.Equal(t, ResultLoop, result.Type)
	require.Greater(t, result.Seconds, 0.0)
}

// TestEndTerminationReportsEnd uses a stream with no loop at all: a
// Rest then End, so the first pass reports End directly and the
// doNotes fallback should agree (no notes, so it's silent throughout).
func TestEndTerminationReportsEnd(t *testing.T) {
	sseqData := []byte{0x80, 0x01, 0xFF} // Rest(1), End
	sd := oneTrackSDAT(sseqData)

	result, err := Measure(sd, 0, Options{MaxSeconds: 60, SampleRate: 8000})
	require.NoError(t, err)
	require.Equal(t, ResultEnd, result.Type)
}

func TestMeasureUnknownWhenNeitherConditionMet(t *testing.T) {
	sseqData := []byte{0x80, 0x7F} // Rest(127) forever, nothing else
	sd := oneTrackSDAT(sseqData)

	result, err := Measure(sd, 0, Options{MaxSeconds: 0.01})
	require.NoError(t, err)
	require.Equal(t, ResultUnknown, result.Type)
}
