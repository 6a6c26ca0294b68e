// Package sdat parses the SDAT container: the SYMB/INFO/FAT/FILE
// sections and the SBNK/SWAR/SSEQ files they reference. Grounded on
// the teacher's own binary-format parsers (vgm_parser.go, ay_z80_parser.go,
// sid_parser.go), which all share this shape: validate a magic, read
// fixed fields with encoding/binary, bounds-check every offset before
// slicing into the backing buffer.
package sdat

import (
	"encoding/binary"
	"fmt"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

// standardHeaderSize is the 16-byte header every SDAT, SBNK, SWAR and
// SSEQ file starts with.
const standardHeaderSize = 16

// standardHeader is the common file header shape used at the top of
// the SDAT container itself and at the top of every file it stores.
type standardHeader struct {
	Magic      [4]byte
	BOM        uint16
	Version    uint16
	FileSize   uint32
	HeaderSize uint16
	NumBlocks  uint16
}

const (
	expectBOM     = 0xFEFF
	expectVersion = 0x0100
)

func readStandardHeader(data []byte, magic string) (standardHeader, error) {
	var h standardHeader
	if len(data) < standardHeaderSize {
		return h, errkind.New(errkind.SDAT, "file too short for standard header (%d bytes)", len(data))
	}
	copy(h.Magic[:], data[0:4])
	if string(h.Magic[:]) != magic {
		return h, errkind.New(errkind.SDAT, "bad magic: want %q, got %q", magic, h.Magic[:])
	}
	h.BOM = binary.LittleEndian.Uint16(data[4:6])
	h.Version = binary.LittleEndian.Uint16(data[6:8])
	if h.BOM != expectBOM || h.Version != expectVersion {
		return h, errkind.New(errkind.SDAT, "unsupported byte-order-mark/version %04x/%04x", h.BOM, h.Version)
	}
	h.FileSize = binary.LittleEndian.Uint32(data[8:12])
	h.HeaderSize = binary.LittleEndian.Uint16(data[12:14])
	h.NumBlocks = binary.LittleEndian.Uint16(data[14:16])
	return h, nil
}

func writeStandardHeader(h standardHeader) []byte {
	out := make([]byte, standardHeaderSize)
	copy(out[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(out[4:6], expectBOM)
	binary.LittleEndian.PutUint16(out[6:8], expectVersion)
	binary.LittleEndian.PutUint32(out[8:12], h.FileSize)
	binary.LittleEndian.PutUint16(out[12:14], h.HeaderSize)
	binary.LittleEndian.PutUint16(out[14:16], h.NumBlocks)
	return out
}

// blockHeader is the 8-byte (magic, size) pair that precedes every
// SYMB/INFO/FAT/FILE/DATA block. Size includes the 8-byte header
// itself, as the invariant in section 4.2 implies (a multiple of 4).
type blockHeader struct {
	Magic [4]byte
	Size  uint32
}

func readBlockHeader(data []byte, at uint32, magic string) (blockHeader, error) {
	var b blockHeader
	if uint64(at)+8 > uint64(len(data)) {
		return b, errkind.New(errkind.SDAT, "block header for %q out of range at offset %d", magic, at)
	}
	copy(b.Magic[:], data[at:at+4])
	if string(b.Magic[:]) != magic {
		return b, errkind.New(errkind.SDAT, "bad block magic at %d: want %q, got %q", at, magic, b.Magic[:])
	}
	b.Size = binary.LittleEndian.Uint32(data[at+4 : at+8])
	if b.Size%4 != 0 {
		return b, errkind.New(errkind.SDAT, "block %q size %d not a multiple of 4", magic, b.Size)
	}
	if uint64(at)+uint64(b.Size) > uint64(len(data)) {
		return b, fmt.Errorf("block %q (offset %d, size %d) overruns buffer of %d bytes", magic, at, b.Size, len(data))
	}
	return b, nil
}

func writeBlockHeader(magic string, payload []byte) []byte {
	padded := pad4(len(payload))
	out := make([]byte, 8, 8+padded)
	copy(out[0:4], magic)
	binary.LittleEndian.PutUint32(out[4:8], uint32(8+padded))
	out = append(out, payload...)
	return append(out, make([]byte, padded-len(payload))...)
}
