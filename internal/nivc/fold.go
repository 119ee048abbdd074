package nivc

import (
	"context"
	"fmt"
)

// StepProof is an opaque proof artifact produced by one fold step. The
// orchestrator never inspects its contents; only a Prover implementation
// does.
type StepProof []byte

// Prover is the circuit-proving backend the fold loop drives one ROM
// position at a time. Its implementation (the actual SNARK arithmetic) is
// out of scope per spec.md §1 — this package only owns the sequencing.
type Prover interface {
	// Fold produces the next recursive proof given the running proof (nil
	// on the first step), the opcode to execute, its witness input, and the
	// program's public ROM wires.
	Fold(ctx context.Context, running StepProof, op Opcode, input FoldInput, romIndex int, publicROM []uint64) (StepProof, error)
}

// Fold drives prover across every position of an Expanded, Offline
// program's ROM in order, accumulating one running proof, per spec.md
// §4.4's fold loop. Fold does not check the one-hot rom[romIndex]==pc
// public-wire constraint; that is the prover's responsibility at each step.
// Fold's job is only to feed it the right (opcode, input, romIndex) triple
// in sequence.
func Fold(ctx context.Context, prover Prover, p *ProgramData) (StepProof, error) {
	if p.Mode != ModeOffline || p.Expansion != Expanded {
		return nil, fmt.Errorf("nivc: fold requires an expanded offline program")
	}

	opcodes, err := p.ROM.Opcodes()
	if err != nil {
		return nil, err
	}
	inputs, err := p.FoldInputs()
	if err != nil {
		return nil, err
	}
	publicROM, err := PaddedPublicROM(p.ROM, p.BlockSize)
	if err != nil {
		return nil, err
	}

	var running StepProof
	for i, op := range opcodes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		running, err = prover.Fold(ctx, running, op, inputs[i], i, publicROM)
		if err != nil {
			return nil, fmt.Errorf("nivc: fold step %d (%s): %w", i, op, err)
		}
	}
	return running, nil
}
