// Package wavewriter renders a Stream's little-endian float32 stereo
// byte stream (internal/stream's Read format) into a RIFF WAVE file,
// either as 16-bit integer PCM or as 32-bit float PCM with its
// required fact chunk. Uses the same encoding/binary.LittleEndian.PutUint*
// assembly as internal/sdat/write.go, but where that writer computes every
// size before emitting, this one writes placeholder sizes and patches
// them in Close once the total length is known.
package wavewriter

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

// Format selects the WAVE sample encoding.
type Format uint8

const (
	FormatPCM16 Format = iota
	FormatFloat32
)

const (
	fmtTagPCM   = 1
	fmtTagFloat = 3
)

// Writer implements io.Writer over a Stream's float32 byte stream,
// converting and buffering frames into an underlying io.WriteSeeker as
// a RIFF WAVE file. Close patches the RIFF/data chunk sizes, so the
// destination must support Seek.
type Writer struct {
	dst        io.WriteSeeker
	format     Format
	channels   uint16
	sampleRate uint32

	bytesPerSrcFrame int // 8: two LE float32s per stereo frame
	pending          []byte
	dataBytes        uint32
}

// New writes a placeholder RIFF header and returns a Writer ready to
// accept Stream-format bytes via Write.
func New(dst io.WriteSeeker, format Format, channels uint16, sampleRate uint32) (*Writer, error) {
	w := &Writer{
		dst:               dst,
		format:            format,
		channels:          channels,
		sampleRate:        sampleRate,
		bytesPerSrcFrame:  int(channels) * 4,
	}
	if err := w.writeHeaderPlaceholder(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) bitsPerSample() uint16 {
	if w.format == FormatFloat32 {
		return 32
	}
	return 16
}

func (w *Writer) bytesPerOutFrame() int {
	return int(w.channels) * int(w.bitsPerSample()/8)
}

func (w *Writer) fmtTag() uint16 {
	if w.format == FormatFloat32 {
		return fmtTagFloat
	}
	return fmtTagPCM
}

func (w *Writer) writeHeaderPlaceholder() error {
	var hdr []byte
	hdr = append(hdr, "RIFF"...)
	hdr = append(hdr, 0, 0, 0, 0) // RIFF size patched at Close
	hdr = append(hdr, "WAVE"...)

	hdr = append(hdr, "fmt "...)
	blockAlign := uint16(w.bytesPerOutFrame())
	byteRate := w.sampleRate * uint32(blockAlign)
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:], w.fmtTag())
	binary.LittleEndian.PutUint16(fmtChunk[2:], w.channels)
	binary.LittleEndian.PutUint32(fmtChunk[4:], w.sampleRate)
	binary.LittleEndian.PutUint32(fmtChunk[8:], byteRate)
	binary.LittleEndian.PutUint16(fmtChunk[12:], blockAlign)
	binary.LittleEndian.PutUint16(fmtChunk[14:], w.bitsPerSample())
	hdr = append(hdr, le32(uint32(len(fmtChunk)))...)
	hdr = append(hdr, fmtChunk...)

	if w.format == FormatFloat32 {
		hdr = append(hdr, "fact"...)
		hdr = append(hdr, le32(4)...)
		hdr = append(hdr, 0, 0, 0, 0) // sample count, patched at Close
	}

	hdr = append(hdr, "data"...)
	hdr = append(hdr, 0, 0, 0, 0) // data size, patched at Close

	_, err := w.dst.Write(hdr)
	return err
}

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// Write accepts Stream-format bytes (little-endian float32 samples,
// channels interleaved) and re-encodes them into the output format.
// Partial trailing frames are buffered until the next Write.
func (w *Writer) Write(buf []byte) (int, error) {
	n := len(buf)
	w.pending = append(w.pending, buf...)

	whole := len(w.pending) - len(w.pending)%w.bytesPerSrcFrame
	if whole == 0 {
		return n, nil
	}

	out := make([]byte, 0, whole/4*int(w.bitsPerSample()/8))
	for i := 0; i < whole; i += 4 {
		sample := math.Float32frombits(binary.LittleEndian.Uint32(w.pending[i:]))
		if w.format == FormatFloat32 {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(sample))
		} else {
			out = binary.LittleEndian.AppendUint16(out, floatToPCM16(sample))
		}
	}
	if _, err := w.dst.Write(out); err != nil {
		return 0, err
	}
	w.dataBytes += uint32(len(out))
	w.pending = w.pending[whole:]
	return n, nil
}

func floatToPCM16(v float32) uint16 {
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return uint16(int16(v * 32767))
}

// Close patches the RIFF size, optional fact sample count, and data
// size fields now that the total length is known, per section 6's WAV
// output contract.
func (w *Writer) Close() error {
	if len(w.pending) != 0 {
		return errkind.New(errkind.Invariant, "wavewriter: %d leftover partial-frame bytes at close", len(w.pending))
	}

	end, err := w.dst.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	riffSize := uint32(end) - 8

	if _, err := w.dst.Seek(4, io.SeekStart); err != nil {
		return err
	}
	if _, err := w.dst.Write(le32(riffSize)); err != nil {
		return err
	}

	if w.format == FormatFloat32 {
		samples := w.dataBytes / uint32(w.bytesPerOutFrame())
		if _, err := w.dst.Seek(44, io.SeekStart); err != nil {
			return err
		}
		if _, err := w.dst.Write(le32(samples)); err != nil {
			return err
		}
		if _, err := w.dst.Seek(52, io.SeekStart); err != nil {
			return err
		}
	} else {
		if _, err := w.dst.Seek(40, io.SeekStart); err != nil {
			return err
		}
	}
	if _, err := w.dst.Write(le32(w.dataBytes)); err != nil {
		return err
	}
	_, err = w.dst.Seek(end, io.SeekStart)
	return err
}
