package sdat

import (
	"encoding/binary"

	"github.com/CyberBotX/ncsfplay/internal/errkind"
	"github.com/CyberBotX/ncsfplay/internal/wave"
)

// SWAR is a sparse wave archive: a small integer key to SWAV mapping.
type SWAR struct {
	Waves map[int]*wave.SWAV
}

func parseSWAR(raw []byte) (*SWAR, error) {
	if _, err := readStandardHeader(raw, "SWAR"); err != nil {
		return nil, err
	}
	base := uint32(standardHeaderSize)
	b, err := readBlockHeader(raw, base, "DATA")
	if err != nil {
		return nil, err
	}
	payloadAt := base + 8
	if uint64(payloadAt)+4 > uint64(base+b.Size) {
		return nil, errkind.New(errkind.SDAT, "SWAR DATA block too short")
	}
	count := binary.LittleEndian.Uint32(raw[payloadAt : payloadAt+4])
	headerAt := payloadAt + 4
	if uint64(headerAt)+uint64(count)*4 > uint64(len(raw)) {
		return nil, errkind.New(errkind.SDAT, "SWAR declares %d waves but data is too short", count)
	}

	out := &SWAR{Waves: make(map[int]*wave.SWAV, count)}
	for i := uint32(0); i < count; i++ {
		off := binary.LittleEndian.Uint32(raw[headerAt+i*4 : headerAt+i*4+4])
		if off == 0 {
			continue
		}
		at := base + off
		if at >= uint32(len(raw)) {
			continue
		}
		sw, err := wave.Decode(raw[at:])
		if err != nil {
			return nil, errkind.Wrap(errkind.SDAT, "decoding swav", err)
		}
		out.Waves[int(i)] = sw
	}
	return out, nil
}
