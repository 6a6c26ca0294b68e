package wavewriter

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// seekBuffer is a minimal io.WriteSeeker over an in-memory byte slice.
type seekBuffer struct {
	buf []byte
	pos int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		s.pos = offset
	case 1:
		s.pos += offset
	case 2:
		s.pos = int64(len(s.buf)) + offset
	}
	return s.pos, nil
}

func encodeFrame(left, right float32) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(left))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(right))
	return b
}

func TestPCM16HeaderAndDataSize(t *testing.T) {
	dst := &seekBuffer{}
	w, err := New(dst, FormatPCM16, 2, 44100)
	require.NoError(t, err)

	_, err = w.Write(encodeFrame(0.5, -0.5))
	require.NoError(t, err)
	_, err = w.Write(encodeFrame(1, -1))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, "RIFF", string(dst.buf[0:4]))
	require.Equal(t, "WAVE", string(dst.buf[8:12]))
	fmtTag := binary.LittleEndian.Uint16(dst.buf[20:22])
	require.Equal(t, uint16(fmtTagPCM), fmtTag)
	dataSize := binary.LittleEndian.Uint32(dst.buf[40:44])
	require.Equal(t, uint32(8), dataSize) // 2 frames * 2 channels * 2 bytes
}

func TestFloat32HeaderCarriesFactChunk(t *testing.T) {
	dst := &seekBuffer{}
	w, err := New(dst, FormatFloat32, 2, 48000)
	require.NoError(t, err)
	_, err = w.Write(encodeFrame(0.25, -0.25))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	require.Equal(t, "fact", string(dst.buf[36:40]))
	sampleCount := binary.LittleEndian.Uint32(dst.buf[44:48])
	require.Equal(t, uint32(1), sampleCount)
}

func TestPartialFrameAtCloseErrors(t *testing.T) {
	dst := &seekBuffer{}
	w, err := New(dst, FormatPCM16, 2, 44100)
	require.NoError(t, err)
	_, err = w.Write([]byte{0, 0, 0, 0}) // half a stereo frame
	require.NoError(t, err)
	require.Error(t, w.Close())
}
