// Package container decodes and encodes the NCSF wrapper: a "PSF"-family
// header, a reserved block, a zlib-compressed program section, and an
// optional "[TAG]" footer. Grounded on the teacher's own PSF-shaped
// container parser in vgm_parser.go (magic/version check, little-endian
// fixed-header fields, a length-prefixed payload region).
package container

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

const (
	magic         = "PSF"
	versionNCSF   = 0x25
	headerSize    = 16
	tagFooterMark = "[TAG]"
)

// File is a parsed NCSF wrapper: the raw reserved block (for NCSF this
// is a 4-byte little-endian sequence number), the decompressed program
// section bytes (an SDAT image), and the ordered tag list.
type File struct {
	Version  byte
	Reserved []byte
	Program  []byte
	Tags     Tags
}

// SequenceNumber interprets Reserved as NCSF's little-endian u32
// sequence selector. Returns 0 if Reserved is shorter than 4 bytes.
func (f *File) SequenceNumber() uint32 {
	if len(f.Reserved) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(f.Reserved[:4])
}

// Parse reads an NCSF file's bytes. The CRC32 field is read but never
// checked, per section 4.1: the format carries it for tooling
// compatibility, not integrity.
func Parse(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, errkind.New(errkind.Container, "ncsf: file too short (%d bytes)", len(data))
	}
	if string(data[0:3]) != magic {
		return nil, errkind.New(errkind.Container, "ncsf: bad magic %q", data[0:3])
	}
	version := data[3]
	if version != versionNCSF {
		return nil, errkind.New(errkind.Container, "ncsf: unsupported version byte 0x%02X", version)
	}
	reservedSize := binary.LittleEndian.Uint32(data[4:8])
	compressedSize := binary.LittleEndian.Uint32(data[8:12])
	// data[12:16] is the unverified CRC32 of the compressed program.

	reservedStart := uint64(headerSize)
	reservedEnd := reservedStart + uint64(reservedSize)
	programEnd := reservedEnd + uint64(compressedSize)
	if programEnd > uint64(len(data)) {
		return nil, errkind.New(errkind.Container, "ncsf: reserved/program region exceeds file length")
	}

	reserved := append([]byte(nil), data[reservedStart:reservedEnd]...)
	compressed := data[reservedEnd:programEnd]

	program, err := inflate(compressed)
	if err != nil {
		return nil, errkind.Wrap(errkind.Container, "ncsf: decompressing program section", err)
	}

	tags, err := parseTags(data[programEnd:], false)
	if err != nil {
		return nil, err
	}
	if tags.Get("utf8") == "1" {
		tags, err = parseTags(data[programEnd:], true)
		if err != nil {
			return nil, err
		}
	}

	return &File{Version: version, Reserved: reserved, Program: program, Tags: tags}, nil
}

// inflate runs zlib DEFLATE to completion. Section 4.1 describes an
// optional two-pass optimization (read a small header prefix to learn
// the uncompressed size, then rewind and read exactly that much) meant
// for callers that want to avoid a second allocation; since Go's flate
// reader already streams to EOF without us pre-sizing the buffer, we
// take the single-pass form that note calls out as equivalent.
func inflate(compressed []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write serializes a File back into NCSF wrapper bytes. Round-tripping
// Parse(Write(f)) reproduces f's Reserved, Program and Tags (property 1
// in section 8); it does not reproduce the original compressed bytes
// exactly, since zlib compression is not required to be deterministic
// across implementations, only its decompression.
func Write(f *File) ([]byte, error) {
	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(f.Program); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteString(magic)
	out.WriteByte(f.Version)

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:4], uint32(len(f.Reserved)))
	binary.LittleEndian.PutUint32(sizes[4:8], uint32(compressed.Len()))
	out.Write(sizes[:])

	var crc [4]byte // unverified on read; zero is a valid placeholder
	out.Write(crc[:])

	out.Write(f.Reserved)
	out.Write(compressed.Bytes())

	if len(f.Tags) > 0 {
		out.WriteString(tagFooterMark)
		out.Write(f.Tags.Encode())
	}
	return out.Bytes(), nil
}

// MakeNCSF builds a File for a freshly assembled SDAT image.
func MakeNCSF(sequenceNumber uint32, program []byte, tags Tags) *File {
	reserved := make([]byte, 4)
	binary.LittleEndian.PutUint32(reserved, sequenceNumber)
	return &File{Version: versionNCSF, Reserved: reserved, Program: program, Tags: tags}
}

// RewriteTags reads an NCSF file's wrapper (reserved block and
// compressed program untouched) and replaces its tag footer, without
// paying the cost of re-deflating the program section. Grounded on
// section 6's note that 2SF-family tools commonly offer tag-only
// rewriting as a separate, cheaper operation from full re-encoding.
func RewriteTags(data []byte, tags Tags) ([]byte, error) {
	if len(data) < headerSize {
		return nil, errkind.New(errkind.Container, "ncsf: file too short (%d bytes)", len(data))
	}
	if string(data[0:3]) != magic {
		return nil, errkind.New(errkind.Container, "ncsf: bad magic %q", data[0:3])
	}
	reservedSize := binary.LittleEndian.Uint32(data[4:8])
	compressedSize := binary.LittleEndian.Uint32(data[8:12])
	programEnd := uint64(headerSize) + uint64(reservedSize) + uint64(compressedSize)
	if programEnd > uint64(len(data)) {
		return nil, errkind.New(errkind.Container, "ncsf: reserved/program region exceeds file length")
	}

	out := make([]byte, 0, programEnd+uint64(len(tags)*16)+len(tagFooterMark))
	out = append(out, data[:programEnd]...)
	if len(tags) > 0 {
		out = append(out, tagFooterMark...)
		out = append(out, tags.Encode()...)
	}
	return out, nil
}
