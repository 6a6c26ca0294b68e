package player

// Opcode values named by nibble group, per section 4.5's table. Only
// the ones the interpreter branches on explicitly are named; anything
// else falls through the nibble-group dispatch in track.go.
const (
	opRest    = 0x80
	opPatch   = 0x81
	opOpenTrack = 0x93
	opGoto      = 0x94
	opCall      = 0x95

	opRandom       = 0xA0
	opFromVariable = 0xA1
	opIf           = 0xA2

	opVarSet       = 0xB0
	opVarAdd       = 0xB1
	opVarSub       = 0xB2
	opVarMul       = 0xB3
	opVarDiv       = 0xB4
	opVarShift     = 0xB5
	opVarRandomize = 0xB6
	opVarCompareEQ = 0xB8
	opVarCompareGE = 0xB9
	opVarCompareGT = 0xBA
	opVarCompareLE = 0xBB
	opVarCompareLT = 0xBC
	opVarCompareNE = 0xBD

	opPan              = 0xC0
	opVolume           = 0xC1
	opMasterVolume     = 0xC2
	opTranspose        = 0xC3
	opPitchBend        = 0xC4
	opPitchBendRange   = 0xC5
	opPriority         = 0xC6
	opNoteWait         = 0xC7
	opTie              = 0xC8
	opPortamentoFlag   = 0xC9
	opModulationDepth  = 0xCA
	opModulationSpeed  = 0xCB
	opModulationType   = 0xCC
	opModulationRange  = 0xCD
	opPortamentoTime   = 0xCE
	opAttack           = 0xCF
	opDecay            = 0xD0
	opSustain          = 0xD1
	opRelease          = 0xD2
	opLoopStart        = 0xD4
	opExpression       = 0xD5
	opPortamentoKey    = 0xD6
	opMute             = 0xD7

	opSweepPitch       = 0xE1
	opTempo            = 0xE3
	opModulationDelay  = 0xE0

	opAllocateTrack = 0xFE
	opEnd           = 0xFF
	opReturn        = 0xFD
	opLoopEnd       = 0xFC
)
