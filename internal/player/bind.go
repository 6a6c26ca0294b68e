package player

import (
	"github.com/CyberBotX/ncsfplay/internal/errkind"
	"github.com/CyberBotX/ncsfplay/internal/sdat"
)

// NewSequenceFromSDAT resolves a sequence number against the parsed
// SDAT's INFO tables and builds a ready-to-run Sequence: the
// sequence's bank, all four of that bank's wave-archive slots (a slot
// holding 0xFFFF or an out-of-range index stays nil), and the owning
// player's channel mask.
func NewSequenceFromSDAT(s *sdat.SDAT, sequenceIndex int) (*Sequence, error) {
	if sequenceIndex < 0 || sequenceIndex >= len(s.Sequences) {
		return nil, errkind.New(errkind.Lookup, "sequence index %d out of range", sequenceIndex)
	}
	seqInfo := s.Sequences[sequenceIndex]
	if int(seqInfo.BankIndex) >= len(s.Banks) {
		return nil, errkind.New(errkind.Lookup, "sequence %d references missing bank %d", sequenceIndex, seqInfo.BankIndex)
	}
	if sequenceIndex >= len(s.SSEQs) || s.SSEQs[sequenceIndex] == nil {
		return nil, errkind.New(errkind.SDAT, "sequence %d has no materialized SSEQ file", sequenceIndex)
	}
	bankIdx := int(seqInfo.BankIndex)
	if bankIdx >= len(s.SBNKs) || s.SBNKs[bankIdx] == nil {
		return nil, errkind.New(errkind.SDAT, "bank %d has no materialized SBNK file", bankIdx)
	}

	channelMask := uint16(0xFFFF)
	if int(seqInfo.PlayerNo) < len(s.Players) {
		if m := s.Players[seqInfo.PlayerNo].ChannelMask; m != 0 {
			channelMask = m
		}
	}

	seq := NewSequence(s.SSEQs[sequenceIndex], s.SBNKs[bankIdx], channelMask)
	seq.DefaultPriority = seqInfo.ChannelPri
	seq.Tracks[0].Priority = seqInfo.ChannelPri
	seq.bindWaveArchives(s, bankIdx)
	return seq, nil
}

// bindWaveArchives attaches the SWAR set a bank's instruments
// reference so the sample generator can resolve SwavIndex/SwarIndex
// pairs without re-walking the SDAT. Stored on the Sequence since
// multiple tracks share one bank's archives.
func (s *Sequence) bindWaveArchives(sd *sdat.SDAT, bankIdx int) {
	bankInfo := sd.Banks[bankIdx]
	var archives [4]*sdat.SWAR
	for i, warIdx := range bankInfo.WaveArchive {
		if warIdx != 0xFFFF && int(warIdx) < len(sd.SWARs) {
			archives[i] = sd.SWARs[warIdx]
		}
	}
	s.WaveArchives = archives
}
