package sdat

import (
	"encoding/binary"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

// Instrument record types, per section 3.
const (
	RecordEmpty     = 0
	RecordPCM       = 1
	RecordPSG       = 2
	RecordNoise     = 3
	RecordDummy     = 5
	RecordDrumTable = 16
	RecordKeySplit  = 17
)

// InstrumentDefinition is the (low, high, type, swav, swar, root, A,
// D, S, R, pan) tuple section 3 describes.
type InstrumentDefinition struct {
	LowNote, HighNote uint8
	RecordType        uint8
	SwavIndex         uint16
	SwarIndex         uint16
	RootKey           uint8
	Attack            uint8
	Decay             uint8
	Sustain           uint8
	Release           uint8
	Pan               uint8
}

// InstrumentEntry is one SBNK slot: a record type plus one or more
// definitions (more than one only for drum-table/key-split kinds).
type InstrumentEntry struct {
	RecordType  uint8
	Definitions []InstrumentDefinition
}

// Lookup resolves a MIDI key against this instrument per the rules in
// section 4.5: direct types return their single definition, drum
// tables index directly, key-splits scan ascending boundaries.
func (e *InstrumentEntry) Lookup(midiKey int) (*InstrumentDefinition, bool) {
	switch e.RecordType {
	case RecordPCM, RecordPSG, RecordNoise, RecordDummy:
		if len(e.Definitions) == 0 {
			return nil, false
		}
		return &e.Definitions[0], true
	case RecordDrumTable:
		if len(e.Definitions) == 0 {
			return nil, false
		}
		low := int(e.Definitions[0].LowNote)
		idx := midiKey - low
		if idx < 0 || idx >= len(e.Definitions) {
			return nil, false
		}
		return &e.Definitions[idx], true
	case RecordKeySplit:
		for i := range e.Definitions {
			if midiKey <= int(e.Definitions[i].HighNote) {
				return &e.Definitions[i], true
			}
		}
		return nil, false
	default:
		return nil, false
	}
}

// SBNK is a parsed sound bank: an ordered list of instrument entries.
type SBNK struct {
	Instruments []InstrumentEntry
}

const definitionRecordSize = 11 // type(1) + swav(2) + swar(2) + root(1) + adsr(4) + pan(1)

func readDefinitionRecord(raw []byte, at uint32) InstrumentDefinition {
	return InstrumentDefinition{
		RecordType: raw[at],
		SwavIndex:  binary.LittleEndian.Uint16(raw[at+1 : at+3]),
		SwarIndex:  binary.LittleEndian.Uint16(raw[at+3 : at+5]),
		RootKey:    raw[at+5],
		Attack:     raw[at+6],
		Decay:      raw[at+7],
		Sustain:    raw[at+8],
		Release:    raw[at+9],
		Pan:        raw[at+10],
	}
}

func parseSBNK(raw []byte) (*SBNK, error) {
	if _, err := readStandardHeader(raw, "SBNK"); err != nil {
		return nil, err
	}
	base := uint32(standardHeaderSize)
	b, err := readBlockHeader(raw, base, "DATA")
	if err != nil {
		return nil, err
	}
	payloadAt := base + 8
	if uint64(payloadAt)+4 > uint64(base+b.Size) {
		return nil, errkind.New(errkind.SDAT, "SBNK DATA block too short")
	}
	count := binary.LittleEndian.Uint32(raw[payloadAt : payloadAt+4])
	headerAt := payloadAt + 4
	if uint64(headerAt)+uint64(count)*4 > uint64(len(raw)) {
		return nil, errkind.New(errkind.SDAT, "SBNK declares %d instruments but data is too short", count)
	}

	entries := make([]InstrumentEntry, count)
	for i := uint32(0); i < count; i++ {
		raw32 := binary.LittleEndian.Uint32(raw[headerAt+i*4 : headerAt+i*4+4])
		recordType := uint8(raw32 & 0xFF)
		offset := raw32 >> 8
		entries[i].RecordType = recordType
		if recordType == RecordEmpty {
			continue
		}
		entryAt := base + offset
		if entryAt >= uint32(len(raw)) {
			continue
		}
		switch recordType {
		case RecordPCM, RecordPSG, RecordNoise, RecordDummy:
			def := readDefinitionRecord(raw, entryAt)
			def.LowNote, def.HighNote = 0, 127
			entries[i].Definitions = []InstrumentDefinition{def}
		case RecordDrumTable:
			low := raw[entryAt]
			high := raw[entryAt+1]
			if high < low {
				continue
			}
			n := int(high) - int(low) + 1
			at := entryAt + 2
			defs := make([]InstrumentDefinition, n)
			for j := 0; j < n; j++ {
				def := readDefinitionRecord(raw, at)
				def.LowNote = low + uint8(j)
				def.HighNote = low + uint8(j)
				defs[j] = def
				at += definitionRecordSize
			}
			entries[i].Definitions = defs
		case RecordKeySplit:
			var bounds []uint8
			at := entryAt
			for k := 0; k < 8; k++ {
				hv := raw[at]
				at++
				if hv == 0 {
					break
				}
				bounds = append(bounds, hv)
			}
			defs := make([]InstrumentDefinition, len(bounds))
			low := uint8(0)
			for j, hv := range bounds {
				def := readDefinitionRecord(raw, at)
				def.LowNote = low
				def.HighNote = hv
				defs[j] = def
				at += definitionRecordSize
				low = hv + 1
			}
			entries[i].Definitions = defs
		}
	}
	return &SBNK{Instruments: entries}, nil
}
