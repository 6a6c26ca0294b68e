// Package timing implements the length-measurement player of section
// 4.9: it drives the same player.Sequence opcode interpreter as
// playback does, but never feeds a sample.Generator's output anywhere
// -- it only watches the Goto/End timeline markers section 4.9
// requires player.Track to emit. Grounded on player.Sequence's own
// SequenceMain loop (internal/player/sequence.go), reused here
// unchanged except for the absence of any sample.Generator pull.
package timing

import (
	"github.com/CyberBotX/ncsfplay/internal/player"
	"github.com/CyberBotX/ncsfplay/internal/sample"
	"github.com/CyberBotX/ncsfplay/internal/sdat"
)

const (
	// DefaultMaxSeconds is section 4.9's runtime safety bound.
	DefaultMaxSeconds = 6000
	// DefaultLoops is section 4.9's required loop count.
	DefaultLoops = 2
	// trailingSilenceSeconds is the doNotes fallback's exact-zero run
	// length that declares the true end.
	trailingSilenceSeconds = 20
	// defaultSampleRate only matters for the doNotes fallback pass;
	// it never reaches an output device.
	defaultSampleRate = 32768
)

// ResultType distinguishes how a measurement concluded.
type ResultType uint8

const (
	ResultLoop ResultType = iota
	ResultEnd
	ResultUnknown
)

// PlayerTime is section 4.9's reported measurement.
type PlayerTime struct {
	Type    ResultType
	Seconds float64
}

// Options configures a Measure call; zero values take the section 4.9
// defaults.
type Options struct {
	MaxSeconds    float64
	Loops         int
	SampleRate    uint32
	Interpolation sample.Interpolation
}

// Measure runs the timing variant against one SDAT sequence, following
// section 4.9's two-pass rule: a silent timeline pass first, then, only
// when it reports End, a rendering doNotes pass to pin down the true
// trailing-silence boundary.
func Measure(sd *sdat.SDAT, sequenceIndex int, opt Options) (PlayerTime, error) {
	if opt.MaxSeconds <= 0 {
		opt.MaxSeconds = DefaultMaxSeconds
	}
	if opt.Loops <= 0 {
		opt.Loops = DefaultLoops
	}

	result, err := firstPass(sd, sequenceIndex, opt)
	if err != nil {
		return PlayerTime{}, err
	}
	if result.Type != ResultEnd {
		return result, nil
	}
	if refined, err := secondPass(sd, sequenceIndex, opt, result.Seconds); err == nil {
		return refined, nil
	}
	return result, nil
}

// firstPass drives the opcode interpreter alone, recording per-track
// Loop/End markers via player.Sequence.EnableTiming until every used
// track satisfies section 4.9's success criterion or MaxSeconds is hit.
func firstPass(sd *sdat.SDAT, sequenceIndex int, opt Options) (PlayerTime, error) {
	seq, err := player.NewSequenceFromSDAT(sd, sequenceIndex)
	if err != nil {
		return PlayerTime{}, err
	}
	tl := seq.EnableTiming()
	used := usedTrackIndices(seq)

	loopCounts := map[int]int{}
	loopTimes := map[int]float64{}
	endTimes := map[int]float64{}
	processed := 0

	for seq.TimeSeconds < opt.MaxSeconds {
		seq.SequenceMain()
		for ; processed < len(tl.Marks); processed++ {
			m := tl.Marks[processed]
			switch m.Kind {
			case player.TimelineLoop:
				loopCounts[m.Track]++
				loopTimes[m.Track] = m.Seconds
			case player.TimelineEnd:
				if _, ok := endTimes[m.Track]; !ok {
					endTimes[m.Track] = m.Seconds
				}
			}
		}
		if satisfied(used, loopCounts, endTimes, opt.Loops) {
			return resultFrom(used, loopCounts, endTimes, loopTimes, opt.Loops), nil
		}
	}
	return PlayerTime{Type: ResultUnknown, Seconds: opt.MaxSeconds}, nil
}

// secondPass re-runs the sequence from scratch with a real
// sample.Generator, discarding every sample, to find the first run of
// trailingSilenceSeconds consecutive exact-zero stereo frames -- the
// doNotes fallback section 4.9 calls for when an End report's trailing
// silence is otherwise unmeasured (envelope release tails can run well
// past the opcode stream's End marker).
func secondPass(sd *sdat.SDAT, sequenceIndex int, opt Options, reportedEnd float64) (PlayerTime, error) {
	seq, err := player.NewSequenceFromSDAT(sd, sequenceIndex)
	if err != nil {
		return PlayerTime{}, err
	}
	rate := opt.SampleRate
	if rate == 0 {
		rate = defaultSampleRate
	}
	gen := sample.NewGenerator(seq, rate, opt.Interpolation)

	samplesNeeded := int(trailingSilenceSeconds * float64(rate))
	maxSamples := int(opt.MaxSeconds * float64(rate))
	zeroRun := 0
	for i := 0; i < maxSamples; i++ {
		left, right := gen.NextStereo()
		if left == 0 && right == 0 {
			zeroRun++
			if zeroRun >= samplesNeeded {
				trueEnd := float64(i+1-zeroRun) / float64(rate)
				return PlayerTime{Type: ResultEnd, Seconds: trueEnd}, nil
			}
		} else {
			zeroRun = 0
		}
	}
	return PlayerTime{Type: ResultEnd, Seconds: reportedEnd}, nil
}

func usedTrackIndices(seq *player.Sequence) []int {
	var used []int
	for i, t := range seq.Tracks {
		if t != nil {
			used = append(used, i)
		}
	}
	return used
}

func satisfied(used []int, loopCounts map[int]int, endTimes map[int]float64, loops int) bool {
	for _, idx := range used {
		if _, ok := endTimes[idx]; ok {
			continue
		}
		if loopCounts[idx] >= loops {
			continue
		}
		return false
	}
	return true
}

// resultFrom applies section 4.9's success criterion: tracks that
// ended report at their max End time, tracks that looped enough report
// at their max qualifying Loop time, and a mix of both reports the
// later of the two group maxima.
func resultFrom(used []int, loopCounts map[int]int, endTimes, loopTimes map[int]float64, loops int) PlayerTime {
	var maxEnd, maxLoop float64
	haveEnd, haveLoop := false, false
	for _, idx := range used {
		if t, ok := endTimes[idx]; ok {
			haveEnd = true
			if t > maxEnd {
				maxEnd = t
			}
			continue
		}
		if loopCounts[idx] >= loops {
			haveLoop = true
			if loopTimes[idx] > maxLoop {
				maxLoop = loopTimes[idx]
			}
		}
	}
	switch {
	case haveEnd && haveLoop:
		if maxEnd >= maxLoop {
			return PlayerTime{Type: ResultEnd, Seconds: maxEnd}
		}
		return PlayerTime{Type: ResultLoop, Seconds: maxLoop}
	case haveEnd:
		return PlayerTime{Type: ResultEnd, Seconds: maxEnd}
	default:
		return PlayerTime{Type: ResultLoop, Seconds: maxLoop}
	}
}
