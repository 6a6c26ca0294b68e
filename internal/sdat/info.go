package sdat

import (
	"encoding/binary"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

func readOffsetTable(data []byte, blockStart, blockEnd uint32, n int) []uint32 {
	offs := make([]uint32, n)
	at := blockStart + 8
	for i := 0; i < n; i++ {
		offs[i] = binary.LittleEndian.Uint32(data[at : at+4])
		at += 4
	}
	return offs
}

func parseSymbols(data []byte, at uint32) (*Symbols, error) {
	b, err := readBlockHeader(data, at, "SYMB")
	if err != nil {
		return nil, err
	}
	slots := readOffsetTable(data, at, at+b.Size, numInfoSlots)

	readStrings := func(slotOffset uint32) ([]string, error) {
		if slotOffset == 0 {
			return nil, nil
		}
		recAt := at + slotOffset
		if uint64(recAt)+4 > uint64(at+b.Size) {
			return nil, errkind.New(errkind.SDAT, "SYMB record out of range")
		}
		count := binary.LittleEndian.Uint32(data[recAt : recAt+4])
		out := make([]string, count)
		for i := uint32(0); i < count; i++ {
			entryAt := recAt + 4 + i*4
			strOff := binary.LittleEndian.Uint32(data[entryAt : entryAt+4])
			out[i] = readCString(data, at+strOff)
		}
		return out, nil
	}

	syms := &Symbols{}
	var err2 error
	if syms.Sequences, err2 = readStrings(slots[slotSequence]); err2 != nil {
		return nil, err2
	}
	if syms.Banks, err2 = readStrings(slots[slotBank]); err2 != nil {
		return nil, err2
	}
	if syms.WaveArchives, err2 = readStrings(slots[slotWaveArchive]); err2 != nil {
		return nil, err2
	}
	if syms.Players, err2 = readStrings(slots[slotPlayer]); err2 != nil {
		return nil, err2
	}
	return syms, nil
}

// readCString decodes a NUL-terminated, system-codepage string. The
// codepage is CP1252-compatible for the printable range this format
// actually exercises (ASCII file-name-safe symbol names); callers
// wanting a faithful non-ASCII decode should consult the [TAG] footer's
// utf8 flag instead, which governs tag text, not SYMB names.
func readCString(data []byte, at uint32) string {
	end := at
	for end < uint32(len(data)) && data[end] != 0 {
		end++
	}
	return string(data[at:end])
}

func parseInfo(data []byte, at uint32, out *SDAT) error {
	b, err := readBlockHeader(data, at, "INFO")
	if err != nil {
		return err
	}
	slots := readOffsetTable(data, at, at+b.Size, numInfoSlots)

	entryOffsets := func(slotOffset uint32) ([]uint32, error) {
		if slotOffset == 0 {
			return nil, nil
		}
		recAt := at + slotOffset
		count := binary.LittleEndian.Uint32(data[recAt : recAt+4])
		offs := make([]uint32, count)
		for i := uint32(0); i < count; i++ {
			entryAt := recAt + 4 + i*4
			offs[i] = binary.LittleEndian.Uint32(data[entryAt : entryAt+4])
		}
		return offs, nil
	}

	seqOffs, err := entryOffsets(slots[slotSequence])
	if err != nil {
		return err
	}
	out.Sequences = make([]SequenceInfo, len(seqOffs))
	for i, off := range seqOffs {
		if off == 0 {
			out.Sequences[i] = SequenceInfo{FileID: 0xFFFF}
			continue
		}
		eAt := at + off
		out.Sequences[i] = SequenceInfo{
			FileID:     binary.LittleEndian.Uint16(data[eAt : eAt+2]),
			BankIndex:  binary.LittleEndian.Uint16(data[eAt+2 : eAt+4]),
			Volume:     data[eAt+4],
			ChannelPri: data[eAt+5],
			PlayerNo:   data[eAt+6],
			PlayerPri:  data[eAt+7],
		}
	}

	bankOffs, err := entryOffsets(slots[slotBank])
	if err != nil {
		return err
	}
	out.Banks = make([]BankInfo, len(bankOffs))
	for i, off := range bankOffs {
		if off == 0 {
			out.Banks[i] = BankInfo{FileID: 0xFFFF}
			continue
		}
		eAt := at + off
		bi := BankInfo{FileID: binary.LittleEndian.Uint16(data[eAt : eAt+2])}
		for w := 0; w < 4; w++ {
			bi.WaveArchive[w] = binary.LittleEndian.Uint16(data[eAt+2+uint32(w)*2 : eAt+4+uint32(w)*2])
		}
		out.Banks[i] = bi
	}

	warOffs, err := entryOffsets(slots[slotWaveArchive])
	if err != nil {
		return err
	}
	out.WaveArchives = make([]WaveArchiveInfo, len(warOffs))
	for i, off := range warOffs {
		if off == 0 {
			out.WaveArchives[i] = WaveArchiveInfo{FileID: 0xFFFF}
			continue
		}
		eAt := at + off
		out.WaveArchives[i] = WaveArchiveInfo{FileID: binary.LittleEndian.Uint16(data[eAt : eAt+2])}
	}

	plOffs, err := entryOffsets(slots[slotPlayer])
	if err != nil {
		return err
	}
	out.Players = make([]PlayerInfo, len(plOffs))
	for i, off := range plOffs {
		if off == 0 {
			continue
		}
		eAt := at + off
		out.Players[i] = PlayerInfo{
			MaxSequences: data[eAt],
			ChannelMask:  binary.LittleEndian.Uint16(data[eAt+2 : eAt+4]),
			HeapSizeKB:   binary.LittleEndian.Uint32(data[eAt+4 : eAt+8]),
		}
	}
	return nil
}
