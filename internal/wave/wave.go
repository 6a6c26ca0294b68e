// Package wave decodes the three DS waveform encodings (8-bit PCM,
// 16-bit PCM, IMA-ADPCM) into contiguous float32 samples of roughly
// [-1, 1] (the most negative PCM8/PCM16 value lands just below -1),
// and models a decoded SWAV with its loop points translated into the
// decoded sample domain. Grounded on the teacher's wave decoders in
// sap_6502_render.go and ted_engine.go, which follow the same
// integer-sample-to-float shape for their own chips.
package wave

import (
	"encoding/binary"
	"fmt"
)

// Format identifies a SWAV's sample encoding.
type Format uint8

const (
	FormatPCM8 Format = iota
	FormatPCM16
	FormatIMAADPCM
)

// DecodePCM8 converts signed 8-bit PCM to float32 by dividing by 127,
// so -128 maps to about -1.008.
func DecodePCM8(raw []byte) []float32 {
	out := make([]float32, len(raw))
	for i, b := range raw {
		out[i] = float32(int8(b)) / 127
	}
	return out
}

// DecodePCM16 converts little-endian signed 16-bit PCM to float32.
func DecodePCM16(raw []byte) []float32 {
	n := len(raw) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		out[i] = float32(s) / 32767
	}
	return out
}

// imaStepTable is the standard IMA-ADPCM step-size table.
var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17, 19, 21, 23, 25, 28, 31,
	34, 37, 41, 45, 50, 55, 60, 66, 73, 80, 88, 97, 107, 118, 130, 143,
	157, 173, 190, 209, 230, 253, 279, 307, 337, 371, 408, 449, 494, 544, 598, 658,
	724, 796, 876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066, 2272, 2499, 2749, 3024,
	3327, 3660, 4026, 4428, 4871, 5358, 5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

// imaIndexTable advances or retreats the step index by nibble value.
var imaIndexTable = [16]int32{-1, -1, -1, -1, 2, 4, 6, 8, -1, -1, -1, -1, 2, 4, 6, 8}

// DecodeIMAADPCM decodes the DS's two-nibble IMA-ADPCM variant. The
// first four bytes hold the initial predictor (i16) and step index
// (i16); every following byte is two 4-bit nibbles, low nibble first.
//
// The -32768 -> -32767 clamp on the low end and the step-index clamp
// to [0, 88] intentionally reproduce DS hardware rounding/clipping, as
// required by the testable property in section 8.
func DecodeIMAADPCM(raw []byte) []float32 {
	if len(raw) < 4 {
		return nil
	}
	predictor := int32(int16(binary.LittleEndian.Uint16(raw[0:2])))
	stepIndex := int32(int16(binary.LittleEndian.Uint16(raw[2:4])))

	body := raw[4:]
	out := make([]float32, 0, len(body)*2+1)
	out = append(out, clampPredictor(predictor))

	emit := func(nibble byte) {
		step := imaStepTable[stepIndex]
		diff := step >> 3
		if nibble&1 != 0 {
			diff += step >> 2
		}
		if nibble&2 != 0 {
			diff += step >> 1
		}
		if nibble&4 != 0 {
			diff += step
		}
		if nibble&8 != 0 {
			predictor -= diff
			if predictor < -32767 {
				predictor = -32767
			}
		} else {
			predictor += diff
			if predictor > 32767 {
				predictor = 32767
			}
		}
		stepIndex += imaIndexTable[nibble]
		if stepIndex < 0 {
			stepIndex = 0
		} else if stepIndex > 88 {
			stepIndex = 88
		}
		out = append(out, clampPredictor(predictor))
	}

	for _, b := range body {
		emit(b & 0x0F)
		emit(b >> 4)
	}
	return out
}

func clampPredictor(p int32) float32 {
	if p < -32767 {
		p = -32767
	} else if p > 32767 {
		p = 32767
	}
	return float32(p) / 32767
}

// SWAV is a decoded waveform: raw-format metadata plus a float sample
// buffer with loop points already translated into the decoded domain.
type SWAV struct {
	Format            Format
	Loop              bool
	SampleRate        uint32
	Timer             uint16
	LoopOffsetSamples uint32
	LoopLengthSamples uint32
	Decoded           []float32
}

// Header fields as laid out at the start of a SWAV payload. DataSize
// (the trailing 4 bytes) is not part of section 3's narrative SWAV
// tuple but is required to know where one wave's bytes end and the
// next one in a SWAR begins; it is carried as an ambient framing
// detail the same way every other section's blocks carry an explicit
// size field.
const swavHeaderSize = 16

// Decode parses a raw SWAV payload: a 16-byte header (format, loop
// flag, sample rate, timer, loop offset and length in original-domain
// words, and a byte count) followed by the format-specific sample
// bytes.
func Decode(raw []byte) (*SWAV, error) {
	if len(raw) < swavHeaderSize {
		return nil, fmt.Errorf("wave: swav payload too short (%d bytes)", len(raw))
	}
	format := Format(raw[0])
	loop := raw[1] != 0
	sampleRate := uint32(binary.LittleEndian.Uint16(raw[2:4]))
	timer := binary.LittleEndian.Uint16(raw[4:6])
	origLoopOffsetWords := binary.LittleEndian.Uint16(raw[6:8])
	origLoopLenWords := binary.LittleEndian.Uint32(raw[8:12])
	dataSize := binary.LittleEndian.Uint32(raw[12:16])

	if uint64(swavHeaderSize)+uint64(dataSize) > uint64(len(raw)) {
		return nil, fmt.Errorf("wave: swav declares %d data bytes but payload is shorter", dataSize)
	}
	body := raw[swavHeaderSize : swavHeaderSize+int(dataSize)]

	s := &SWAV{Format: format, Loop: loop, SampleRate: sampleRate, Timer: timer}

	switch format {
	case FormatPCM8:
		s.Decoded = DecodePCM8(body)
		s.LoopOffsetSamples = uint32(origLoopOffsetWords) * 4
		s.LoopLengthSamples = origLoopLenWords * 4
	case FormatPCM16:
		s.Decoded = DecodePCM16(body)
		s.LoopOffsetSamples = uint32(origLoopOffsetWords) * 2
		s.LoopLengthSamples = origLoopLenWords * 2
	case FormatIMAADPCM:
		s.Decoded = DecodeIMAADPCM(body)
		loopOffset := uint32(origLoopOffsetWords) * 8
		if loopOffset != 0 {
			loopOffset--
		}
		s.LoopOffsetSamples = loopOffset
		s.LoopLengthSamples = origLoopLenWords * 8
	default:
		return nil, fmt.Errorf("wave: unsupported swav format %d", format)
	}
	return s, nil
}

// TotalSamples is len(Decoded) but named for readability at call sites
// that compare a sample position against the wave's extent.
func (s *SWAV) TotalSamples() int {
	return len(s.Decoded)
}
