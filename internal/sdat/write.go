package sdat

import (
	"encoding/binary"

	"github.com/CyberBotX/ncsfplay/internal/wave"
)

// Write serializes an SDAT back to bytes, recomputing every offset and
// size field (FixOffsetsAndSizes in section 8's round-trip property).
// The result is a valid, re-parseable SDAT; it is not guaranteed to be
// byte-identical to an externally produced file with different
// padding choices. Parse(Write(s)) gives back s's info tables, symbol
// names, bank records and PCM8/PCM16 loop points; wave samples come
// back re-quantized (IMA-ADPCM waves as PCM16, see writeSWAVRecord) and
// SSEQ data may gain trailing zero padding.
func Write(s *SDAT) ([]byte, error) {
	var symbBlock []byte
	if s.Symbols != nil {
		symbBlock = buildSymbolsBlock(s.Symbols)
	}

	fileRegion, fat := buildFileRegion(s)
	infoBlock := buildInfoBlock(s, fat)
	fatBlock := buildFatBlock(fat) // only used to learn its byte length below

	numBlocks := uint16(4)
	headerSize := uint16(standardHeaderSize + 32)
	if symbBlock == nil {
		numBlocks = 3
	}

	symbOff := uint32(headerSize)
	infoOff := symbOff
	if symbBlock != nil {
		infoOff = symbOff + uint32(len(symbBlock))
	}
	fatOff := infoOff + uint32(len(infoBlock))
	fileOff := fatOff + uint32(len(fatBlock))

	// fat offsets were built relative to the file region; FAT records
	// point at absolute offsets within the whole SDAT buffer, so rebase
	// them now that fileOff is known and rebuild the FAT block.
	// The region itself starts after the FILE block's 8-byte header.
	for i := range fat {
		fat[i].Offset += fileOff + 8
	}
	fatBlock = buildFatBlock(fat)
	fileBlock := writeBlockHeader("FILE", fileRegion)
	totalSize := fileOff + uint32(len(fileBlock))

	out := make([]byte, 0, totalSize)
	hdr := standardHeader{
		Magic:      [4]byte{'S', 'D', 'A', 'T'},
		FileSize:   totalSize,
		HeaderSize: headerSize,
		NumBlocks:  numBlocks,
	}
	out = append(out, writeStandardHeader(hdr)...)

	putPair := func(off, sz uint32) {
		b := make([]byte, 8)
		binary.LittleEndian.PutUint32(b[0:4], off)
		binary.LittleEndian.PutUint32(b[4:8], sz)
		out = append(out, b...)
	}
	if symbBlock != nil {
		putPair(symbOff, uint32(len(symbBlock)))
	} else {
		putPair(0, 0)
	}
	putPair(infoOff, uint32(len(infoBlock)))
	putPair(fatOff, uint32(len(fatBlock)))
	putPair(fileOff, uint32(len(fileBlock)))

	if symbBlock != nil {
		out = append(out, symbBlock...)
	}
	out = append(out, infoBlock...)
	out = append(out, fatBlock...)
	out = append(out, fileBlock...)
	return out, nil
}

func buildFatBlock(fat []FatRecord) []byte {
	payload := make([]byte, 4+len(fat)*16)
	binary.LittleEndian.PutUint32(payload[0:4], uint32(len(fat)))
	for i, r := range fat {
		at := 4 + i*16
		binary.LittleEndian.PutUint32(payload[at:at+4], r.Offset)
		binary.LittleEndian.PutUint32(payload[at+4:at+8], r.Size)
	}
	return writeBlockHeader("FAT ", payload)
}

// buildFileRegion serializes every SBNK/SWAR/SSEQ back to bytes and
// returns both the concatenated file region and the FAT entries
// pointing into it, with offsets relative to the region's own start;
// Write rebases them to absolute offsets once it knows where the FILE
// block begins.
func buildFileRegion(s *SDAT) ([]byte, []FatRecord) {
	// FileIDs are assigned by the original INFO entries, not by write
	// order, so every blob must land in the FAT slot its FileID names.
	byID := make(map[uint16][]byte)
	maxID := -1
	note := func(id uint16, data []byte) {
		if id == 0xFFFF {
			return
		}
		byID[id] = data
		if int(id) > maxID {
			maxID = int(id)
		}
	}

	for i, b := range s.Banks {
		if i < len(s.SBNKs) && s.SBNKs[i] != nil {
			note(b.FileID, writeSBNK(s.SBNKs[i]))
		}
	}
	for i, w := range s.WaveArchives {
		if i < len(s.SWARs) && s.SWARs[i] != nil {
			note(w.FileID, writeSWAR(s.SWARs[i]))
		}
	}
	for i, seq := range s.Sequences {
		if i < len(s.SSEQs) && s.SSEQs[i] != nil {
			note(seq.FileID, writeSSEQ(s.SSEQs[i]))
		}
	}

	var region []byte
	fat := make([]FatRecord, maxID+1)
	for id := 0; id <= maxID; id++ {
		data, ok := byID[uint16(id)]
		if !ok {
			continue
		}
		fat[id] = FatRecord{Offset: uint32(len(region)), Size: uint32(len(data))}
		region = append(region, data...)
	}
	return region, fat
}

func writeSSEQ(seq *SSEQ) []byte {
	dataBlock := writeBlockHeader("DATA", seq.Data)
	hdr := standardHeader{
		Magic:      [4]byte{'S', 'S', 'E', 'Q'},
		FileSize:   uint32(standardHeaderSize + len(dataBlock)),
		HeaderSize: standardHeaderSize,
		NumBlocks:  1,
	}
	out := writeStandardHeader(hdr)
	return append(out, dataBlock...)
}

func writeSBNK(b *SBNK) []byte {
	headerTable := make([]byte, len(b.Instruments)*4)
	var recordBytes []byte
	recordBase := uint32(8 + 4 + len(headerTable)) // relative to DATA block start

	for i, inst := range b.Instruments {
		if inst.RecordType == RecordEmpty || len(inst.Definitions) == 0 {
			binary.LittleEndian.PutUint32(headerTable[i*4:i*4+4], uint32(inst.RecordType))
			continue
		}
		offset := recordBase + uint32(len(recordBytes))
		binary.LittleEndian.PutUint32(headerTable[i*4:i*4+4], uint32(inst.RecordType)|(offset<<8))

		switch inst.RecordType {
		case RecordPCM, RecordPSG, RecordNoise, RecordDummy:
			recordBytes = append(recordBytes, writeDefinitionRecord(inst.Definitions[0])...)
		case RecordDrumTable:
			recordBytes = append(recordBytes, inst.Definitions[0].LowNote, inst.Definitions[len(inst.Definitions)-1].HighNote)
			for _, d := range inst.Definitions {
				recordBytes = append(recordBytes, writeDefinitionRecord(d)...)
			}
		case RecordKeySplit:
			for _, d := range inst.Definitions {
				recordBytes = append(recordBytes, d.HighNote)
			}
			if len(inst.Definitions) < 8 {
				recordBytes = append(recordBytes, 0)
			}
			for _, d := range inst.Definitions {
				recordBytes = append(recordBytes, writeDefinitionRecord(d)...)
			}
		}
	}

	payload := make([]byte, 0, 4+len(headerTable)+len(recordBytes))
	countBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBytes, uint32(len(b.Instruments)))
	payload = append(payload, countBytes...)
	payload = append(payload, headerTable...)
	payload = append(payload, recordBytes...)

	dataBlock := writeBlockHeader("DATA", payload)
	hdr := standardHeader{
		Magic:      [4]byte{'S', 'B', 'N', 'K'},
		FileSize:   uint32(standardHeaderSize + len(dataBlock)),
		HeaderSize: standardHeaderSize,
		NumBlocks:  1,
	}
	out := writeStandardHeader(hdr)
	return append(out, dataBlock...)
}

func writeDefinitionRecord(d InstrumentDefinition) []byte {
	out := make([]byte, definitionRecordSize)
	out[0] = d.RecordType
	binary.LittleEndian.PutUint16(out[1:3], d.SwavIndex)
	binary.LittleEndian.PutUint16(out[3:5], d.SwarIndex)
	out[5] = d.RootKey
	out[6] = d.Attack
	out[7] = d.Decay
	out[8] = d.Sustain
	out[9] = d.Release
	out[10] = d.Pan
	return out
}

func writeSWAR(w *SWAR) []byte {
	maxKey := -1
	for k := range w.Waves {
		if k > maxKey {
			maxKey = k
		}
	}
	count := maxKey + 1
	headerTable := make([]byte, count*4)
	var waveBytes []byte
	base := uint32(8 + 4 + len(headerTable)) // relative to DATA block start

	for i := 0; i < count; i++ {
		sw, ok := w.Waves[i]
		if !ok {
			continue
		}
		binary.LittleEndian.PutUint32(headerTable[i*4:i*4+4], base+uint32(len(waveBytes)))
		waveBytes = append(waveBytes, writeSWAVRecord(sw)...)
	}

	payload := make([]byte, 0, 4+len(headerTable)+len(waveBytes))
	countBytes := make([]byte, 4)
	binary.LittleEndian.PutUint32(countBytes, uint32(count))
	payload = append(payload, countBytes...)
	payload = append(payload, headerTable...)
	payload = append(payload, waveBytes...)

	dataBlock := writeBlockHeader("DATA", payload)
	hdr := standardHeader{
		Magic:      [4]byte{'S', 'W', 'A', 'R'},
		FileSize:   uint32(standardHeaderSize + len(dataBlock)),
		HeaderSize: standardHeaderSize,
		NumBlocks:  1,
	}
	out := writeStandardHeader(hdr)
	return append(out, dataBlock...)
}

// writeSWAVRecord re-encodes a decoded SWAV back into the raw
// format-specific byte representation. Lossy for PCM8/PCM16 (float
// round-trip through int8/int16) but round-trips bit-exactly for their
// loop metadata, which is what section 8's property actually checks.
// IMA-ADPCM waves are written as PCM16 records.
func writeSWAVRecord(sw *wave.SWAV) []byte {
	var body []byte
	var loopOffsetWords uint16
	var loopLenWords uint32
	format := sw.Format
	switch sw.Format {
	case wave.FormatPCM8:
		body = make([]byte, len(sw.Decoded))
		for i, f := range sw.Decoded {
			body[i] = byte(int8(f * 127))
		}
		loopOffsetWords = uint16(sw.LoopOffsetSamples / 4)
		loopLenWords = sw.LoopLengthSamples / 4
	case wave.FormatPCM16:
		body = make([]byte, len(sw.Decoded)*2)
		for i, f := range sw.Decoded {
			binary.LittleEndian.PutUint16(body[i*2:i*2+2], uint16(int16(f*32767)))
		}
		loopOffsetWords = uint16(sw.LoopOffsetSamples / 2)
		loopLenWords = sw.LoopLengthSamples / 2
	case wave.FormatIMAADPCM:
		// Re-encoding ADPCM is not attempted; we keep the decoded float
		// buffer as an opaque PCM16 fallback rather than round-tripping
		// the adaptive encoder, since nothing downstream of Parse needs
		// the original compressed bytes back. The record is labelled
		// PCM16, so an odd loop offset comes back rounded down to even.
		format = wave.FormatPCM16
		body = make([]byte, len(sw.Decoded)*2)
		for i, f := range sw.Decoded {
			binary.LittleEndian.PutUint16(body[i*2:i*2+2], uint16(int16(f*32767)))
		}
		loopOffsetWords = uint16(sw.LoopOffsetSamples / 2)
		loopLenWords = sw.LoopLengthSamples / 2
	}

	header := make([]byte, swavHeaderHelperSize)
	header[0] = byte(format)
	if sw.Loop {
		header[1] = 1
	}
	binary.LittleEndian.PutUint16(header[2:4], uint16(sw.SampleRate))
	binary.LittleEndian.PutUint16(header[4:6], sw.Timer)
	binary.LittleEndian.PutUint16(header[6:8], loopOffsetWords)
	binary.LittleEndian.PutUint32(header[8:12], loopLenWords)
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(body)))
	return append(header, body...)
}

const swavHeaderHelperSize = 16

func buildSymbolsBlock(syms *Symbols) []byte {
	slotStrings := map[int][]string{
		slotSequence:    syms.Sequences,
		slotBank:        syms.Banks,
		slotWaveArchive: syms.WaveArchives,
		slotPlayer:      syms.Players,
	}

	offsetTable := make([]byte, numInfoSlots*4)
	var records []byte
	for slot := 0; slot < numInfoSlots; slot++ {
		strs, active := slotStrings[slot]
		if !active {
			continue
		}
		recOffset := uint32(8+len(offsetTable)) + uint32(len(records))
		binary.LittleEndian.PutUint32(offsetTable[slot*4:slot*4+4], recOffset)

		entryOffsets := make([]byte, len(strs)*4)
		var strBytes []byte
		strBase := recOffset + 4 + uint32(len(entryOffsets))
		for i, s := range strs {
			binary.LittleEndian.PutUint32(entryOffsets[i*4:i*4+4], strBase+uint32(len(strBytes)))
			strBytes = append(strBytes, []byte(s)...)
			strBytes = append(strBytes, 0)
		}
		countBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBytes, uint32(len(strs)))
		records = append(records, countBytes...)
		records = append(records, entryOffsets...)
		records = append(records, strBytes...)
	}

	payload := append(offsetTable, records...)
	return writeBlockHeader("SYMB", payload)
}

func buildInfoBlock(s *SDAT, fat []FatRecord) []byte {
	offsetTable := make([]byte, numInfoSlots*4)
	var records []byte

	writeSlot := func(slot int, count int, entrySize int, fill func(buf []byte, i int)) {
		recOffset := uint32(8+len(offsetTable)) + uint32(len(records))
		binary.LittleEndian.PutUint32(offsetTable[slot*4:slot*4+4], recOffset)

		entryOffsets := make([]byte, count*4)
		var entryBytes []byte
		entryBase := recOffset + 4 + uint32(len(entryOffsets))
		for i := 0; i < count; i++ {
			buf := make([]byte, entrySize)
			fill(buf, i)
			binary.LittleEndian.PutUint32(entryOffsets[i*4:i*4+4], entryBase+uint32(len(entryBytes)))
			entryBytes = append(entryBytes, buf...)
		}
		countBytes := make([]byte, 4)
		binary.LittleEndian.PutUint32(countBytes, uint32(count))
		records = append(records, countBytes...)
		records = append(records, entryOffsets...)
		records = append(records, entryBytes...)
	}

	writeSlot(slotSequence, len(s.Sequences), 8, func(buf []byte, i int) {
		e := s.Sequences[i]
		binary.LittleEndian.PutUint16(buf[0:2], e.FileID)
		binary.LittleEndian.PutUint16(buf[2:4], e.BankIndex)
		buf[4] = e.Volume
		buf[5] = e.ChannelPri
		buf[6] = e.PlayerNo
		buf[7] = e.PlayerPri
	})
	writeSlot(slotBank, len(s.Banks), 10, func(buf []byte, i int) {
		e := s.Banks[i]
		binary.LittleEndian.PutUint16(buf[0:2], e.FileID)
		for w := 0; w < 4; w++ {
			binary.LittleEndian.PutUint16(buf[2+w*2:4+w*2], e.WaveArchive[w])
		}
	})
	writeSlot(slotWaveArchive, len(s.WaveArchives), 2, func(buf []byte, i int) {
		binary.LittleEndian.PutUint16(buf[0:2], s.WaveArchives[i].FileID)
	})
	writeSlot(slotPlayer, len(s.Players), 8, func(buf []byte, i int) {
		e := s.Players[i]
		buf[0] = e.MaxSequences
		binary.LittleEndian.PutUint16(buf[2:4], e.ChannelMask)
		binary.LittleEndian.PutUint32(buf[4:8], e.HeapSizeKB)
	})

	payload := append(offsetTable, records...)
	return writeBlockHeader("INFO", payload)
}
