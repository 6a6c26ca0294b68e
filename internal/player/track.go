package player

import (
	"github.com/CyberBotX/ncsfplay/internal/rng"
	"github.com/CyberBotX/ncsfplay/internal/sdat"
	"github.com/CyberBotX/ncsfplay/internal/wave"
)

// callFrame is one entry of the shared call/loop stack (section 4.5:
// "up to 3 nested calls or loops share a common stack").
type callFrame struct {
	returnPos int
	isLoop    bool
	count     uint8 // 0 means infinite
}

const maxCallDepth = 3

// argPrefix records a prefix modifier (Random/FromVariable) that
// changes how the *next* opcode's argument is read.
type argPrefix uint8

const (
	prefixNone argPrefix = iota
	prefixRandom
	prefixFromVariable
)

// Track is one of the player's 16 SSEQ execution lanes.
type Track struct {
	Index int

	Data []byte
	Pos  int

	Wait int32 // ticks remaining before the next opcode pull

	Stack [maxCallDepth]callFrame
	Depth int

	Muted bool

	// Per-track performance state the spec names explicitly.
	Program      int
	Volume       int32
	Expression   int32
	MasterVolume int32
	Transpose    int32
	PitchBendRange int32
	PitchBend    int32
	Priority     uint8
	NoteWaitMode bool
	NoteFinishWait bool
	Tie          bool
	PortamentoFlag bool
	PortamentoKey  uint8
	PortamentoTime uint8
	Pan          int32
	Attack, Decay, Sustain, Release uint8
	ModDepth, ModSpeed, ModRange uint8
	ModType LFOTarget
	ModDelay uint16
	SweepPitch int32
	Tempo      uint16

	AllocatedChannels uint16 // bitmask of channels this track may use (pre-allocation)
	ActiveChannels    []*Channel
	holds             []noteHold
	tiedChannel       *Channel

	pendingPrefix argPrefix
	pendingVar    uint8

	Done bool
	Ended bool

	pool   *Pool
	bank   *sdat.SBNK
	seq    *Sequence
	chanMaskPlayer uint16

	vars *[32]int16
	compareFlag *bool

	// timeline is nil during audible playback; when non-nil (the
	// timing variant, section 4.9) Goto/End calls append markers
	// instead of just branching/stopping.
	timeline *Timeline
	timeSeconds float64
}

// Timeline accumulates section 4.9's (seconds, kind) markers.
type Timeline struct {
	Marks []TimelineMark
}

type TimelineKind uint8

const (
	TimelineLoop TimelineKind = iota
	TimelineEnd
)

type TimelineMark struct {
	Seconds float64
	Kind    TimelineKind
	Track   int
}

// NewTrack builds a track over a parsed SSEQ's opcode bytes, starting
// execution at pos, sharing the given variable bank and compare flag
// with the rest of the player.
func NewTrack(index int, data []byte, pos int, seq *Sequence, vars *[32]int16, compareFlag *bool) *Track {
	return &Track{
		Index:          index,
		Data:           data,
		Pos:            pos,
		Volume:         127,
		Expression:     127,
		MasterVolume:   127,
		PitchBendRange: 2,
		pool:           seq.Pool,
		bank:           seq.Bank,
		seq:            seq,
		chanMaskPlayer: seq.ChannelMask,
		vars:           vars,
		compareFlag:    compareFlag,
	}
}

func (t *Track) readU8() uint8 {
	if t.Pos >= len(t.Data) {
		t.Ended = true
		return 0
	}
	b := t.Data[t.Pos]
	t.Pos++
	return b
}

func (t *Track) readS8() int8 { return int8(t.readU8()) }

func (t *Track) readU16() uint16 {
	lo := uint16(t.readU8())
	hi := uint16(t.readU8())
	return lo | hi<<8
}

func (t *Track) readS16() int16 { return int16(t.readU16()) }

func (t *Track) readU24() uint32 {
	b0 := uint32(t.readU8())
	b1 := uint32(t.readU8())
	b2 := uint32(t.readU8())
	return b0 | b1<<8 | b2<<16
}

// readVLV reads section 3's variable-length value: 7 bits per byte,
// high bit set means "more bytes follow", big-endian bit order.
func (t *Track) readVLV() uint32 {
	var v uint32
	for {
		b := t.readU8()
		v = v<<7 | uint32(b&0x7F)
		if b&0x80 == 0 {
			break
		}
	}
	return v
}

// readArgVLV reads the argument for an opcode that can be modified by a
// pending Random/FromVariable prefix (section 4.5).
func (t *Track) readArgVLV() int32 {
	switch t.pendingPrefix {
	case prefixRandom:
		t.pendingPrefix = prefixNone
		low := t.readU16()
		high := t.readU16()
		span := uint32(high) - uint32(low) + 1
		r := uint32(rng.Next16())
		return int32(low) + int32((r*span)>>16)
	case prefixFromVariable:
		t.pendingPrefix = prefixNone
		return int32(t.vars[t.pendingVar])
	default:
		return int32(t.readVLV())
	}
}

// readArg8 reads the argument for an opcode whose on-disk encoding is
// a plain single byte (the 0xC/0xD performance-parameter group), still
// honoring a pending Random/FromVariable prefix the same way
// readArgVLV does. Only Rest/Patch and note length are variable-length
// encoded; reading a VLV here would treat any negative (high-bit-set)
// byte value -- Transpose and PitchBend are both signed -- as a
// continuation and consume the following opcode's first byte too.
func (t *Track) readArg8() int32 {
	switch t.pendingPrefix {
	case prefixRandom:
		t.pendingPrefix = prefixNone
		low := t.readU16()
		high := t.readU16()
		span := uint32(high) - uint32(low) + 1
		r := uint32(rng.Next16())
		return int32(low) + int32((r*span)>>16)
	case prefixFromVariable:
		t.pendingPrefix = prefixNone
		return int32(t.vars[t.pendingVar])
	default:
		return int32(t.readU8())
	}
}

func (t *Track) getVar(id uint8) int16 { return t.vars[id] }
func (t *Track) setVar(id uint8, v int16) { t.vars[id] = v }

// Step runs one clock-cycle's worth of this track's protocol, per
// section 4.5's "Steptick protocol".
func (t *Track) Step() {
	if t.Ended || t.Done {
		return
	}
	t.pruneDeadChannels()
	t.stepNoteLengths()

	if t.NoteFinishWait {
		if t.anyActive() {
			return
		}
		t.NoteFinishWait = false
	}

	for t.Wait == 0 && !t.Ended && !t.Done {
		t.dispatch()
	}
	if t.Wait > 0 {
		t.Wait--
	}
}

type noteHold struct {
	ch       *Channel
	remaining int32
}

func (t *Track) stepNoteLengths() {
	for i := 0; i < len(t.holds); i++ {
		h := &t.holds[i]
		if h.remaining > 0 {
			h.remaining--
			if h.remaining == 0 && h.ch.Active {
				h.ch.TriggerRelease()
			}
		}
	}
}

func (t *Track) anyActive() bool {
	for _, ch := range t.ActiveChannels {
		if ch.Active {
			return true
		}
	}
	return false
}

// pruneDeadChannels drops channels the pool has killed or evicted
// from this track's bookkeeping, along with their matching holds.
func (t *Track) pruneDeadChannels() {
	live := t.ActiveChannels[:0]
	for _, ch := range t.ActiveChannels {
		if ch.Active {
			live = append(live, ch)
		} else if t.tiedChannel == ch {
			t.tiedChannel = nil
		}
	}
	t.ActiveChannels = live

	liveHolds := t.holds[:0]
	for _, h := range t.holds {
		if h.ch.Active {
			liveHolds = append(liveHolds, h)
		}
	}
	t.holds = liveHolds
}

func (t *Track) dispatch() {
	opcode := t.readU8()
	if t.Ended {
		return
	}
	if opcode < 0x80 {
		t.playNote(opcode)
		return
	}

	switch opcode {
	case opIf:
		next := t.readU8()
		if *t.compareFlag {
			t.execCommand(next)
		} else {
			t.skipCommand(next)
		}
		return
	case opRandom:
		t.pendingPrefix = prefixRandom
		next := t.readU8()
		t.execCommand(next)
		return
	case opFromVariable:
		t.pendingVar = t.readU8()
		t.pendingPrefix = prefixFromVariable
		next := t.readU8()
		t.execCommand(next)
		return
	}
	t.execCommand(opcode)
}

// execCommand runs a single non-prefix opcode.
func (t *Track) execCommand(opcode uint8) {
	switch opcode {
	case opRest:
		t.Wait = int32(t.readArgVLV())
	case opPatch:
		t.Program = int(t.readArgVLV())
	case opOpenTrack:
		// section 4.6: the issuing track (normally track 0) starts
		// another track running at an explicit byte offset. Until this
		// runs, every track slot but the one already executing is
		// dormant -- AllocateTrack only reserves which indices may be
		// opened, it doesn't start them.
		trackIndex := t.readU8()
		target := int(t.readU24())
		t.seq.openTrack(int(trackIndex), target)
	case opGoto:
		target := int(t.readU24())
		if t.timeline != nil && target <= t.Pos-4 {
			t.timeline.Marks = append(t.timeline.Marks, TimelineMark{Seconds: t.timeSeconds, Kind: TimelineLoop, Track: t.Index})
		}
		t.Pos = target
	case opCall:
		target := int(t.readU24())
		t.pushFrame(callFrame{returnPos: t.Pos, isLoop: false})
		t.Pos = target
	case opReturn:
		t.popFrame()
	case opLoopStart:
		count := t.readU8()
		t.pushFrame(callFrame{returnPos: t.Pos, isLoop: true, count: count})
	case opLoopEnd:
		t.loopEnd()
	case opEnd:
		if t.timeline != nil {
			t.timeline.Marks = append(t.timeline.Marks, TimelineMark{Seconds: t.timeSeconds, Kind: TimelineEnd, Track: t.Index})
		}
		t.Ended = true

	case opVarSet, opVarAdd, opVarSub, opVarMul, opVarDiv, opVarShift, opVarRandomize,
		opVarCompareEQ, opVarCompareGE, opVarCompareGT, opVarCompareLE, opVarCompareLT, opVarCompareNE:
		t.execVarOp(opcode)

	case opPan:
		t.Pan = t.readArg8() - 64
	case opVolume:
		t.Volume = t.readArg8()
	case opExpression:
		t.Expression = t.readArg8()
	case opMasterVolume:
		t.MasterVolume = t.readArg8()
	case opTranspose:
		t.Transpose = int32(int8(t.readArg8()))
	case opPitchBend:
		t.PitchBend = int32(int8(t.readArg8()))
	case opPitchBendRange:
		t.PitchBendRange = t.readArg8()
	case opPriority:
		t.Priority = uint8(t.readArg8())
	case opNoteWait:
		t.NoteWaitMode = t.readArg8() != 0
	case opTie:
		t.Tie = t.readArg8() != 0
	case opPortamentoFlag:
		t.PortamentoFlag = t.readArg8() != 0
	case opPortamentoKey:
		t.PortamentoKey = uint8(t.readArg8())
	case opPortamentoTime:
		t.PortamentoTime = uint8(t.readArg8())
	case opModulationDepth:
		t.ModDepth = uint8(t.readArg8())
	case opModulationSpeed:
		t.ModSpeed = uint8(t.readArg8())
	case opModulationType:
		t.ModType = LFOTarget(t.readArg8())
	case opModulationRange:
		t.ModRange = uint8(t.readArg8())
	case opAttack:
		t.Attack = uint8(t.readArg8())
	case opDecay:
		t.Decay = uint8(t.readArg8())
	case opSustain:
		t.Sustain = uint8(t.readArg8())
	case opRelease:
		t.Release = uint8(t.readArg8())
	case opMute:
		// Section 9's open question: no documented semantics beyond
		// "a mute-like opcode exists in this nibble group". We treat
		// it as an immediate alias for the track mute bit, the same
		// effect UpdateChannel already applies when Muted is set.
		t.Muted = t.readArg8() != 0

	case opSweepPitch:
		t.SweepPitch = int32(int16(t.readU16()))
	case opTempo:
		t.Tempo = t.readU16()
	case opModulationDelay:
		t.ModDelay = t.readU16()

	case opAllocateTrack:
		t.AllocatedChannels = t.readU16()

	default:
		// Unknown opcode sub-case: no-op, per section 7's recovery
		// policy for sequence interpretation errors.
	}
}

// skipCommand advances past an opcode's argument bytes without
// executing it, used by If when the compare flag is clear. It mirrors
// execCommand's argument shapes but discards results.
func (t *Track) skipCommand(opcode uint8) {
	switch opcode {
	case opRest, opPatch:
		t.readArgVLV()
	case opPan, opVolume, opExpression, opMasterVolume, opTranspose,
		opPitchBend, opPitchBendRange, opPriority, opNoteWait, opTie, opPortamentoFlag,
		opPortamentoKey, opPortamentoTime, opModulationDepth, opModulationSpeed,
		opModulationType, opModulationRange, opAttack, opDecay, opSustain, opRelease, opMute:
		t.readArg8()
	case opOpenTrack:
		t.readU8()
		t.readU24()
	case opGoto, opCall:
		t.readU24()
	case opLoopStart:
		t.readU8()
	case opSweepPitch, opTempo, opModulationDelay:
		t.readU16()
	case opVarSet, opVarAdd, opVarSub, opVarMul, opVarDiv, opVarShift, opVarRandomize,
		opVarCompareEQ, opVarCompareGE, opVarCompareGT, opVarCompareLE, opVarCompareLT, opVarCompareNE:
		t.readU8()
		t.readS16()
	case opAllocateTrack:
		t.readU16()
	}
}

func (t *Track) execVarOp(opcode uint8) {
	id := t.readU8()
	arg := t.readS16()
	cur := t.getVar(id)
	switch opcode {
	case opVarSet:
		t.setVar(id, arg)
	case opVarAdd:
		t.setVar(id, cur+arg)
	case opVarSub:
		t.setVar(id, cur-arg)
	case opVarMul:
		t.setVar(id, cur*arg)
	case opVarDiv:
		if arg != 0 {
			t.setVar(id, cur/arg)
		}
	case opVarShift:
		if arg >= 0 {
			t.setVar(id, cur<<uint(arg))
		} else {
			t.setVar(id, cur>>uint(-arg))
		}
	case opVarRandomize:
		r := int32(rng.Next16())
		mag := arg
		if mag < 0 {
			mag = -mag
		}
		v := (r * int32(mag+1)) >> 16
		if arg < 0 {
			v = -v
		}
		t.setVar(id, int16(v))
	case opVarCompareEQ:
		*t.compareFlag = cur == arg
	case opVarCompareGE:
		*t.compareFlag = cur >= arg
	case opVarCompareGT:
		*t.compareFlag = cur > arg
	case opVarCompareLE:
		*t.compareFlag = cur <= arg
	case opVarCompareLT:
		*t.compareFlag = cur < arg
	case opVarCompareNE:
		*t.compareFlag = cur != arg
	}
}

func (t *Track) pushFrame(f callFrame) {
	if t.Depth >= maxCallDepth {
		return // over-deep nesting is silently ignored, section 4.5
	}
	t.Stack[t.Depth] = f
	t.Depth++
}

func (t *Track) popFrame() {
	if t.Depth == 0 {
		return
	}
	t.Depth--
	t.Pos = t.Stack[t.Depth].returnPos
}

func (t *Track) loopEnd() {
	if t.Depth == 0 {
		return
	}
	top := &t.Stack[t.Depth-1]
	if !top.isLoop {
		return
	}
	if top.count == 0 {
		t.Pos = top.returnPos
		return
	}
	top.count--
	if top.count == 0 {
		t.Depth--
	} else {
		t.Pos = top.returnPos
	}
}

// playNote resolves, allocates, and starts a note, per section 4.5's
// "Note handling" and "Channel lookup" rules. The leading opcode byte
// is the MIDI key.
func (t *Track) playNote(midiRaw uint8) {
	velocity := t.readU8()
	lengthArg := t.readArgVLV()

	key := clampByte(int32(midiRaw) + t.Transpose)

	if t.Tie && t.tiedChannel != nil && t.tiedChannel.Active {
		t.tiedChannel.MidiKey = key
		t.tiedChannel.Velocity = velocity
		t.consumeLength(lengthArg, t.tiedChannel)
		return
	}

	def, entry, ok := lookupInstrument(t.bank, t.Program, int(key))
	if !ok {
		return // drum-table/key-split miss: drop the note, section 7
	}

	allowedMask := channelTypeMask(entry.RecordType) & t.AllocatedChannels & t.chanMaskPlayer
	if allowedMask == 0 {
		allowedMask = channelTypeMask(entry.RecordType) & t.chanMaskPlayer
	}

	ch := t.pool.Allocate(allowedMask, t.Priority, t.onChannelEvicted)
	if ch == nil {
		return
	}
	t.pool.Bind(ch, t.Index)

	typ := recordTypeToChannelType(entry.RecordType)
	ch.Start(typ)
	ch.RootKey = def.RootKey
	ch.MidiKey = key
	ch.Velocity = velocity
	ch.Attack = orDefault(t.Attack, def.Attack)
	ch.Decay = orDefault(t.Decay, def.Decay)
	ch.Sustain = orDefault(t.Sustain, def.Sustain)
	ch.Release = orDefault(t.Release, def.Release)
	ch.PanInitial = def.Pan
	ch.PanRange = 128
	ch.LFO = LFOParam{Target: t.ModType, Speed: t.ModSpeed, Depth: t.ModDepth, Range: t.ModRange, Delay: t.ModDelay}

	if typ == TypePCM {
		ch.Wave = t.seq.ResolveWave(def.SwarIndex, def.SwavIndex)
		switch {
		case ch.Wave != nil && ch.Wave.Format == wave.FormatPCM16:
			ch.SamplePosition = -3
		case ch.Wave != nil && ch.Wave.Format == wave.FormatIMAADPCM:
			ch.SamplePosition = -11
		default:
			ch.SamplePosition = 0
		}
	}

	t.ActiveChannels = append(t.ActiveChannels, ch)
	if t.Tie {
		t.tiedChannel = ch
	}
	t.consumeLength(lengthArg, ch)
}

func (t *Track) consumeLength(lengthArg int32, ch *Channel) {
	if t.NoteWaitMode {
		t.Wait = lengthArg
	}
	if lengthArg == 0 {
		t.NoteFinishWait = true
	}
	t.holds = append(t.holds, noteHold{ch: ch, remaining: lengthArg})
}

func (t *Track) onChannelEvicted(ownerTrack int) {
	// The evicted channel's previous owning track simply stops
	// tracking it; its own ActiveChannels/holds entries become stale
	// and are pruned lazily by liveness checks (ch.Active is false
	// once evicted via Pool.Allocate's Sync.Stop path).
	_ = ownerTrack
}

func clampByte(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func orDefault(trackValue, instrumentDefault uint8) uint8 {
	if trackValue != 0 {
		return trackValue
	}
	return instrumentDefault
}

func channelTypeMask(recordType uint8) uint16 {
	switch recordType {
	case sdat.RecordPSG:
		return 0x3F00
	case sdat.RecordNoise:
		return 0xC000
	default:
		return 0xFFFF
	}
}

func recordTypeToChannelType(recordType uint8) Type {
	switch recordType {
	case sdat.RecordPSG:
		return TypePSG
	case sdat.RecordNoise:
		return TypeNoise
	default:
		return TypePCM
	}
}

// lookupInstrument resolves program against the bank per section
// 4.5's channel-lookup rule, returning both the definition and its
// owning entry (for the record type, used to pick the channel mask).
func lookupInstrument(bank *sdat.SBNK, program int, midiKey int) (*sdat.InstrumentDefinition, *sdat.InstrumentEntry, bool) {
	if bank == nil || program < 0 || program >= len(bank.Instruments) {
		return nil, nil, false
	}
	entry := &bank.Instruments[program]
	def, ok := entry.Lookup(midiKey)
	if !ok {
		return nil, nil, false
	}
	return def, entry, true
}
