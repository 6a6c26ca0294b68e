package sample

import (
	"github.com/CyberBotX/ncsfplay/internal/player"
	"github.com/CyberBotX/ncsfplay/internal/wave"
)

// arm7ClockHz is the DS ARM7 processor clock section 4.6/4.7 derive
// SecondsPerClockCycle and sampleIncrease from.
const arm7ClockHz = 33_514_000

// psgDuty holds the 8 PSG duty-cycle waveforms as one period of ±1
// samples, section 4.7's "table lookup of wave-duty".
var psgDuty = buildPSGDutyTables()

func buildPSGDutyTables() [8][8]float32 {
	var t [8][8]float32
	for duty := 0; duty < 8; duty++ {
		highCount := duty + 1
		for i := 0; i < 8; i++ {
			if i < highCount {
				t[duty][i] = 1
			} else {
				t[duty][i] = -1
			}
		}
	}
	return t
}

// Generator renders stereo float32 samples at a fixed output rate from
// a running sequence, per section 4.7.
type Generator struct {
	Seq           *player.Sequence
	Rate          uint32
	Interpolation Interpolation

	ChannelMutes uint16
	TrackMutes   uint16

	clockAccum float64
	guardCache map[*wave.SWAV][]float32
}

// NewGenerator builds a generator over seq at the given output sample
// rate.
func NewGenerator(seq *player.Sequence, rate uint32, interp Interpolation) *Generator {
	g := &Generator{Seq: seq, Rate: rate, Interpolation: interp, guardCache: make(map[*wave.SWAV][]float32)}
	g.Seq.SequenceMain() // prime registers so the first rendered sample isn't silent
	return g
}

// NextStereo produces one stereo sample pair, advancing every active
// channel and invoking the sequence's clock tick as often as the
// sample counter demands (section 4.7 steps 1-4).
func (g *Generator) NextStereo() (left, right float32) {
	for _, ch := range g.Seq.Pool.Channels {
		if !ch.Active {
			continue
		}
		muted := g.ChannelMutes&(1<<uint(ch.ID)) != 0
		if !muted {
			s := g.renderChannel(ch)
			mult, div := ch.Reg.Volume, ch.Reg.Div
			s = mulDiv7(s, mult)
			s = applyDivisor(s, div)
			pan := int32(ch.Reg.Pan)
			left += mulDiv7(s, uint8(127-pan))
			right += mulDiv7(s, uint8(pan))
		}
		g.incrementSample(ch)
	}

	g.clockAccum += 1.0 / float64(g.Rate)
	if g.clockAccum >= player.SecondsPerClockCycle {
		g.clockAccum -= player.SecondsPerClockCycle
		g.applyTrackMutes()
		g.Seq.SequenceMain()
	}
	return left, right
}

// applyTrackMutes pushes the stream-level track mute bitmask into each
// track before the next tick; opcodes still run on a muted track
// (section 4.5), only its channel contribution is gated.
func (g *Generator) applyTrackMutes() {
	for i, t := range g.Seq.Tracks {
		if t == nil {
			continue
		}
		t.Muted = g.TrackMutes&(1<<uint(i)) != 0
	}
}

// renderChannel computes one raw sample from a channel's current
// source, per section 4.7 step 1's format dispatch.
func (g *Generator) renderChannel(ch *player.Channel) float32 {
	switch ch.Type {
	case player.TypePCM:
		return g.renderPCM(ch)
	case player.TypePSG:
		return psgDuty[ch.DutyOrLFSR&7][int(ch.SamplePosition)&7]
	case player.TypeNoise:
		return renderNoiseSample(ch)
	default:
		return 0
	}
}

func (g *Generator) renderPCM(ch *player.Channel) float32 {
	if ch.Wave == nil {
		return 0
	}
	buf, ok := g.guardCache[ch.Wave]
	if !ok {
		buf = wrapWithGuardSamples(ch.Wave)
		g.guardCache[ch.Wave] = buf
	}
	return interpolate(g.Interpolation, buf, ch.SamplePosition, ch.SampleIncrease)
}

// renderNoiseSample reports the LFSR's current low bit as ±1, per
// section 4.7's "Noise" dispatch. It does not advance the LFSR: that
// belongs to sample advancement (incrementSample) since it steps once
// per output sample independent of the interpolation kernel.
func renderNoiseSample(ch *player.Channel) float32 {
	if ch.DutyOrLFSR&1 != 0 {
		return -1
	}
	return 1
}

// incrementSample advances a channel's sample position and, for PCM,
// handles loop wrap / kill, per section 4.7 step 2. It always runs
// regardless of mute.
func (g *Generator) incrementSample(ch *player.Channel) {
	sampleIncrease := float64(arm7ClockHz) / (2 * float64(g.Rate)) / float64(ch.Reg.Timer)
	ch.SampleIncrease = sampleIncrease

	switch ch.Type {
	case player.TypePCM:
		if ch.Wave == nil {
			return
		}
		ch.SamplePosition += sampleIncrease
		total := float64(ch.Wave.TotalSamples())
		if ch.SamplePosition >= total {
			if ch.Wave.Loop {
				loopLen := float64(ch.Wave.LoopLengthSamples)
				if loopLen <= 0 {
					ch.Active = false
					return
				}
				for ch.SamplePosition >= total {
					ch.SamplePosition -= loopLen
				}
			} else {
				ch.Active = false
			}
		}
	case player.TypePSG:
		ch.SamplePosition += sampleIncrease
		for ch.SamplePosition >= 8 {
			ch.SamplePosition -= 8
		}
	case player.TypeNoise:
		steps := int(sampleIncrease)
		if steps < 1 {
			steps = 1
		}
		for i := 0; i < steps; i++ {
			x := ch.DutyOrLFSR
			if x&1 != 0 {
				ch.DutyOrLFSR = (x >> 1) ^ 0x6000
			} else {
				ch.DutyOrLFSR = x >> 1
			}
		}
	}
}

// wrapWithGuardSamples pads a decoded SWAV's samples with SincWidth
// guard samples on each side, per section 4.7: left guards copy the
// first sample, right guards copy from the loop start if looping else
// zero.
func wrapWithGuardSamples(w *wave.SWAV) []float32 {
	n := len(w.Decoded)
	out := make([]float32, n+2*SincWidth)
	for i := 0; i < SincWidth; i++ {
		if n > 0 {
			out[i] = w.Decoded[0]
		}
	}
	copy(out[SincWidth:SincWidth+n], w.Decoded)
	for i := 0; i < SincWidth; i++ {
		idx := SincWidth + n + i
		if w.Loop && n > 0 {
			src := int(w.LoopOffsetSamples) + i%maxInt(1, n-int(w.LoopOffsetSamples))
			if src >= n {
				src = n - 1
			}
			out[idx] = w.Decoded[src]
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// mulDiv7 is section 4.4's MulDiv7(x, m) = x * m / 128, with the
// m=127 fast path section 4.4 calls out explicitly.
func mulDiv7(x float32, m uint8) float32 {
	if m == 127 {
		return x
	}
	return x * float32(m) / 128
}

// applyDivisor scales by the volume divisor table {0:x1, 1:x1/2,
// 2:x1/4, 3:x1/16}.
func applyDivisor(x float32, divisor uint8) float32 {
	switch divisor {
	case 1:
		return x / 2
	case 2:
		return x / 4
	case 3:
		return x / 16
	default:
		return x
	}
}
