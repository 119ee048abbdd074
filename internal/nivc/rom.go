// Package nivc implements the non-uniform incrementally verifiable
// computation orchestrator described in spec.md §4.4: the ROM of circuit
// opcodes, public-parameter lifecycle, and the fold loop that drives a
// circuit-proving backend one opcode at a time. The circuit/SNARK math
// itself is out of scope (spec.md §1's Non-goals); this package only
// implements the orchestration around an injected Prover.
//
// Grounded on original_source/notary/src/circuits.rs for the opcode table
// and ROM sizing constants, and on the teacher's zkey.ZkeyHttpHandler
// (zkey/zkey.go) for the public-parameter file layout, adapted in
// paramstore.go.
package nivc

import "fmt"

// Opcode identifies one circuit in the ROM, per spec.md §4.4.
type Opcode uint64

const (
	OpcodePlaintextAuthentication Opcode = 0
	OpcodeHttpVerification        Opcode = 1
	OpcodeJsonMaskObject          Opcode = 2
	OpcodeJsonMaskArrayIndex      Opcode = 3
	OpcodeJsonExtractValue        Opcode = 4
)

func (o Opcode) String() string {
	switch o {
	case OpcodePlaintextAuthentication:
		return "PlaintextAuthentication"
	case OpcodeHttpVerification:
		return "HttpVerification"
	case OpcodeJsonMaskObject:
		return "JsonMaskObject"
	case OpcodeJsonMaskArrayIndex:
		return "JsonMaskArrayIndex"
	case OpcodeJsonExtractValue:
		return "JsonExtractValue"
	default:
		return fmt.Sprintf("Opcode(%d)", uint64(o))
	}
}

// opcodeLabels is the fixed circuit-label-to-opcode table, per
// original_source/notary/src/circuits.rs.
var opcodeLabels = map[string]Opcode{
	"PLAINTEXT_AUTHENTICATION": OpcodePlaintextAuthentication,
	"HTTP_VERIFICATION":        OpcodeHttpVerification,
	"JSON_MASK_OBJECT":         OpcodeJsonMaskObject,
	"JSON_MASK_ARRAY_INDEX":    OpcodeJsonMaskArrayIndex,
	"JSON_EXTRACT_VALUE":       OpcodeJsonExtractValue,
}

// MaxROMLength bounds the ROM for the 1024-byte circuit family.
const MaxROMLength = 80

// MaxROMLength512 bounds the ROM for the 512-byte circuit family.
const MaxROMLength512 = 10

// ROMPadSentinel fills unused ROM slots in the public input, per spec.md
// §4.4's "padded with u64::MAX".
const ROMPadSentinel uint64 = ^uint64(0)

// ROM is an ordered list of circuit labels to fold over.
type ROM []string

// Opcodes resolves every label in the ROM to its opcode, failing hard (per
// spec.md §4.4's "hard error naming any ROM label absent from rom_data") if
// any label is unknown.
func (r ROM) Opcodes() ([]Opcode, error) {
	out := make([]Opcode, len(r))
	for i, label := range r {
		op, ok := opcodeLabels[label]
		if !ok {
			return nil, fmt.Errorf("nivc: rom label %q at position %d is not a known circuit", label, i)
		}
		out[i] = op
	}
	return out, nil
}

// maxROMLengthFor returns the ROM length bound for a circuit's block size.
func maxROMLengthFor(blockSize int) (int, error) {
	switch {
	case blockSize <= 512:
		return MaxROMLength512, nil
	case blockSize <= 1024:
		return MaxROMLength, nil
	default:
		return 0, fmt.Errorf("nivc: unsupported plaintext size %d bytes, maximum is 1024", blockSize)
	}
}

// PaddedPublicROM returns rom's opcodes extended to the ROM length for
// blockSize by right-padding with ROMPadSentinel, per spec.md §4.4's public
// input extension: z0 = initial_nivc_input || [0] || rom_padded.
func PaddedPublicROM(rom ROM, blockSize int) ([]uint64, error) {
	maxLen, err := maxROMLengthFor(blockSize)
	if err != nil {
		return nil, err
	}
	if len(rom) > maxLen {
		return nil, fmt.Errorf("nivc: rom of length %d exceeds maximum %d for block size %d", len(rom), maxLen, blockSize)
	}
	opcodes, err := rom.Opcodes()
	if err != nil {
		return nil, err
	}
	padded := make([]uint64, maxLen)
	for i, op := range opcodes {
		padded[i] = uint64(op)
	}
	for i := len(opcodes); i < maxLen; i++ {
		padded[i] = ROMPadSentinel
	}
	return padded, nil
}
