package sdat

import (
	"github.com/CyberBotX/ncsfplay/internal/errkind"
)

// SSEQ is an opaque SSEQ opcode stream. The track interpreter in
// internal/player walks Data directly; section 3 calls the cached
// parsed form optional and we don't pre-parse it here.
type SSEQ struct {
	Data []byte
}

func parseSSEQ(raw []byte) (*SSEQ, error) {
	if _, err := readStandardHeader(raw, "SSEQ"); err != nil {
		return nil, err
	}
	base := uint32(standardHeaderSize)
	b, err := readBlockHeader(raw, base, "DATA")
	if err != nil {
		return nil, err
	}
	payloadAt := base + 8
	if payloadAt > base+b.Size {
		return nil, errkind.New(errkind.SDAT, "SSEQ DATA block too short")
	}
	return &SSEQ{Data: raw[payloadAt : base+b.Size]}, nil
}

// pad4 rounds a length up to a multiple of 4; writeBlockHeader pads
// every block's payload with it, per the invariant in section 4.2.
func pad4(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}
