package nivc

import "fmt"

// Mode is the Online/Offline axis of spec.md §4.4's ProgramData typestate:
// Offline carries the witness material needed to produce a proof, Online
// only the public values needed to verify one.
type Mode int

const (
	ModeOffline Mode = iota
	ModeOnline
)

// Expansion is the Expanded/NotExpanded axis: NotExpanded holds one
// FoldInput per ROM opcode label; Expanded has split that input evenly
// across every position the label occupies in the ROM.
type Expansion int

const (
	NotExpanded Expansion = iota
	Expanded
)

// FoldInput is the private witness data folded into one circuit step,
// keyed by the ROM label it belongs to.
type FoldInput struct {
	Label string
	Value []byte
}

// ProgramData is the typestate-gated NIVC program described in spec.md
// §4.4: its Mode and Expansion fields record which of the four states it is
// in, and Program methods reject operations invalid for the current state
// rather than allowing them to be expressed in the type system (Go has no
// sum types; this is the idiomatic substitute, mirroring the teacher's
// pattern of runtime-checked state in session.Session).
type ProgramData struct {
	Mode      Mode
	Expansion Expansion
	ROM       ROM
	BlockSize int

	// inputs holds one FoldInput per ROM label before expansion, or one
	// per ROM position after expansion.
	inputs []FoldInput

	// public holds the values that remain after discarding witness data;
	// populated when Mode is ModeOnline.
	public []uint64
}

// NewOfflineProgram builds a NotExpanded, Offline ProgramData from a ROM and
// its per-label fold inputs.
func NewOfflineProgram(rom ROM, blockSize int, inputs []FoldInput) (*ProgramData, error) {
	if _, err := maxROMLengthFor(blockSize); err != nil {
		return nil, err
	}
	if _, err := rom.Opcodes(); err != nil {
		return nil, err
	}
	return &ProgramData{
		Mode:      ModeOffline,
		Expansion: NotExpanded,
		ROM:       rom,
		BlockSize: blockSize,
		inputs:    inputs,
	}, nil
}

// Expand splits each NotExpanded FoldInput evenly across every ROM position
// holding its label, per spec.md §4.4. Expand is only valid on a
// NotExpanded program; a label present in the ROM but absent from the
// caller's FoldInput set is a hard error.
func (p *ProgramData) Expand() (*ProgramData, error) {
	if p.Expansion != NotExpanded {
		return nil, fmt.Errorf("nivc: program is already expanded")
	}

	byLabel := map[string][]int{}
	for i, label := range p.ROM {
		byLabel[label] = append(byLabel[label], i)
	}

	inputByLabel := map[string]FoldInput{}
	for _, in := range p.inputs {
		inputByLabel[in.Label] = in
	}

	expanded := make([]FoldInput, len(p.ROM))
	for label, positions := range byLabel {
		in, ok := inputByLabel[label]
		if !ok {
			return nil, fmt.Errorf("nivc: rom label %q has no matching fold input", label)
		}
		share := splitEvenly(in.Value, len(positions))
		for i, pos := range positions {
			expanded[pos] = FoldInput{Label: label, Value: share[i]}
		}
	}

	return &ProgramData{
		Mode:      p.Mode,
		Expansion: Expanded,
		ROM:       p.ROM,
		BlockSize: p.BlockSize,
		inputs:    expanded,
	}, nil
}

// splitEvenly divides data into n contiguous shares of as-equal-as-possible
// length, distributing the remainder to the earliest shares.
func splitEvenly(data []byte, n int) [][]byte {
	if n <= 0 {
		return nil
	}
	base := len(data) / n
	rem := len(data) % n
	out := make([][]byte, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		out[i] = data[offset : offset+size]
		offset += size
	}
	return out
}

// ToOnline discards witness material, keeping only the public ROM and
// block size, per spec.md §4.4's Offline→Online transition. It is only
// valid on an Expanded program, since an Online verifier never sees
// unexpanded fold inputs.
func (p *ProgramData) ToOnline() (*ProgramData, error) {
	if p.Mode != ModeOffline {
		return nil, fmt.Errorf("nivc: program is already online")
	}
	if p.Expansion != Expanded {
		return nil, fmt.Errorf("nivc: only an expanded program may transition to online")
	}
	public, err := PaddedPublicROM(p.ROM, p.BlockSize)
	if err != nil {
		return nil, err
	}
	return &ProgramData{
		Mode:      ModeOnline,
		Expansion: Expanded,
		ROM:       p.ROM,
		BlockSize: p.BlockSize,
		public:    public,
	}, nil
}

// FoldInputs returns the program's per-position fold inputs. Only valid
// while Mode is ModeOffline.
func (p *ProgramData) FoldInputs() ([]FoldInput, error) {
	if p.Mode != ModeOffline {
		return nil, fmt.Errorf("nivc: fold inputs are not available on an online program")
	}
	return p.inputs, nil
}

// PublicROM returns the padded public ROM values. Only valid once the
// program has transitioned online.
func (p *ProgramData) PublicROM() ([]uint64, error) {
	if p.Mode != ModeOnline {
		return nil, fmt.Errorf("nivc: public rom is only available on an online program")
	}
	return p.public, nil
}
