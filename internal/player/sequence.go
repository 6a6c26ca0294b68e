package player

import (
	"github.com/CyberBotX/ncsfplay/internal/sdat"
	"github.com/CyberBotX/ncsfplay/internal/wave"
)

// SecondsPerClockCycle is the DS ARM7-derived tick period from
// section 4.6: 64 * 2728 / 33_514_000.
const SecondsPerClockCycle = 64.0 * 2728.0 / 33_514_000.0

// maxTracks is the SSEQ format's fixed track-slot count.
const maxTracks = 16

// Sequence is a running SSEQ: its 16 track slots, shared variable
// bank, and the tempo clock the scheduler advances.
type Sequence struct {
	Tracks  [maxTracks]*Track
	Pool    *Pool
	Bank    *sdat.SBNK

	Vars        [32]int16
	CompareFlag bool

	Tempo       uint16
	TempoRatio  uint16 // 256 = normal speed
	tempoCounter int32

	ChannelMask uint16

	WaveArchives [4]*sdat.SWAR

	TimeSeconds float64
	Timeline    *Timeline // non-nil only for the timing variant, section 4.9

	data          []byte // the SSEQ's raw opcode bytes, shared by every track
	allocatedMask uint16 // track indices an OpenTrack command may legally start
	DefaultPriority uint8 // seeded onto every track this sequence opens
}

// ResolveWave looks up a SWAV by the (swarSlot, swavIndex) pair an
// InstrumentDefinition carries; swarSlot indexes the bank's 4
// wave-archive slots, not an SDAT-wide file ID.
func (s *Sequence) ResolveWave(swarSlot, swavIndex uint16) *wave.SWAV {
	if int(swarSlot) >= len(s.WaveArchives) || s.WaveArchives[swarSlot] == nil {
		return nil
	}
	return s.WaveArchives[swarSlot].Waves[int(swavIndex)]
}

// NewSequence sets up track 0 per section 4.6's "Track allocation"
// rule: if the first opcode is AllocateTrack (0xFE), its 16-bit mask
// records which track indices a later OpenTrack command may start --
// it does not start them itself. Only track 0 begins running; every
// other allocated track stays dormant until the running stream issues
// an explicit OpenTrack for it (see openTrack below).
func NewSequence(seq *sdat.SSEQ, bank *sdat.SBNK, channelMask uint16) *Sequence {
	s := &Sequence{
		Bank:        bank,
		Pool:        NewPool(channelMask),
		ChannelMask: channelMask,
		TempoRatio:  256,
		Tempo:       120,
		data:        seq.Data,
	}

	mask := uint16(1) // track 0 always plays
	pos := 0
	if len(seq.Data) >= 3 && seq.Data[0] == opAllocateTrack {
		mask |= uint16(seq.Data[1]) | uint16(seq.Data[2])<<8
		pos = 3
	}
	s.allocatedMask = mask

	s.Tracks[0] = NewTrack(0, seq.Data, pos, s, &s.Vars, &s.CompareFlag)
	return s
}

// openTrack starts track index running at byte offset pos, per section
// 4.6's OpenTrack command. Indices outside the AllocateTrack mask, an
// out-of-range index, or a track that is already running are ignored
// rather than erroring, matching section 7's recovery policy.
func (s *Sequence) openTrack(index, pos int) {
	if index <= 0 || index >= maxTracks {
		return
	}
	if s.allocatedMask&(1<<uint(index)) == 0 {
		return
	}
	if s.Tracks[index] != nil {
		return
	}
	nt := NewTrack(index, s.data, pos, s, &s.Vars, &s.CompareFlag)
	nt.Priority = s.DefaultPriority
	nt.timeline = s.Timeline
	s.Tracks[index] = nt
}

// EnableTiming switches every track to timing-variant bookkeeping
// (section 4.9): opcodes still execute but produce timeline markers
// instead of audible state changes being meaningful to a caller.
func (s *Sequence) EnableTiming() *Timeline {
	tl := &Timeline{}
	s.Timeline = tl
	for _, t := range s.Tracks {
		if t != nil {
			t.timeline = tl
		}
	}
	return tl
}

// SequenceMain runs one clock cycle: sync channel registers, advance
// the tempo clock (stepping tracks as many times as the tempo demands),
// push track state into channels, then tick every channel's envelope
// and LFO/sweep via Main. This is the fixed ordering section 5
// requires: channel-update-from-registers -> track-steps (ascending
// index) -> channel-update-from-track -> channel-main.
func (s *Sequence) SequenceMain() {
	for _, ch := range s.Pool.Channels {
		ch.Sync = syncFlags{}
	}

	s.tempoCounter += int32(s.Tempo) * int32(s.TempoRatio) / 256
	for s.tempoCounter >= 240 {
		s.tempoCounter -= 240
		for _, t := range s.Tracks {
			if t == nil {
				continue
			}
			t.timeSeconds = s.TimeSeconds
			t.Step()
			if t.Tempo != 0 {
				s.Tempo = t.Tempo
				t.Tempo = 0
			}
		}
	}

	for _, t := range s.Tracks {
		if t == nil {
			continue
		}
		s.updateChannelsFromTrack(t)
	}

	for _, ch := range s.Pool.Channels {
		if !ch.Active {
			continue
		}
		ch.TickEnvelope()
		ch.Main()
	}

	s.TimeSeconds += SecondsPerClockCycle
}

// updateChannelsFromTrack pushes a track's performance state into
// every channel it currently owns, per section 4.4's "Main tick" user
// inputs. A muted track still runs its opcodes but gates its
// contribution by forcing volume to -0x8000 (section 4.5).
func (s *Sequence) updateChannelsFromTrack(t *Track) {
	for _, ch := range t.ActiveChannels {
		if !ch.Active {
			continue
		}
		vol := (t.Volume * t.Expression * t.MasterVolume) >> 14 // three 0..127 multiplies folded to a deci-like scale
		if t.Muted {
			vol = -0x8000
		}
		ch.UserVolume = vol
		ch.UserPitch = t.PitchBend*t.PitchBendRange + t.SweepPitch
		ch.UserPan = t.Pan
		ch.SweepLength = int32(t.PortamentoTime)
	}
}
