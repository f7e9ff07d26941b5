// Package symbolize disassembles the single instruction at a frame's
// program counter for human-facing display (cmd/ehwalk's `trace --asm`
// output). Nothing else in ehwalk needs instruction-level
// decoding — the unwind algorithm itself only ever reads whole
// pointer-sized values off the stack.
package symbolize

import (
	"fmt"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Instruction is one decoded machine instruction.
type Instruction struct {
	Addr uint64
	Text string
	Len  int
}

// maxInstructionBytes is wide enough for the longest amd64 instruction
// (15 bytes) and any single arm64 instruction (always 4).
const maxInstructionBytes = 16

// AtPC decodes the single instruction at pc, reading its raw bytes
// straight out of the unwinding process's own memory.
func AtPC(arch *archspec.Arch, pc uint64) (*Instruction, error) {
	var mem unwind.SelfMemory
	buf := make([]byte, maxInstructionBytes)
	if err := mem.ReadAt(pc, buf); err != nil {
		return nil, fmt.Errorf("symbolize: reading bytes at %#x: %w", pc, err)
	}

	switch arch.Name {
	case "amd64":
		inst, err := x86asm.Decode(buf, 64)
		if err != nil {
			return nil, fmt.Errorf("symbolize: decoding amd64 instruction at %#x: %w", pc, err)
		}
		return &Instruction{Addr: pc, Text: x86asm.GNUSyntax(inst, pc, nil), Len: inst.Len}, nil
	case "arm64":
		inst, err := arm64asm.Decode(buf)
		if err != nil {
			return nil, fmt.Errorf("symbolize: decoding arm64 instruction at %#x: %w", pc, err)
		}
		return &Instruction{Addr: pc, Text: arm64asm.GNUSyntax(inst), Len: 4}, nil
	default:
		return nil, fmt.Errorf("symbolize: unsupported architecture %q", arch.Name)
	}
}
