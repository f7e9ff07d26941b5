// Package archspec describes the architecture-parameterized facts the
// rest of ehwalk needs: DWARF register numbers for the instruction
// pointer, stack pointer, frame pointer and return-address register, the
// pointer size, and the largest DWARF register number that can appear in
// a Registers file for that architecture.
//
// Register numbers are not re-declared here; they come straight from the
// teacher's own published table, github.com/go-delve/delve/pkg/dwarf/regnum,
// so that ehwalk and delve agree bit-for-bit on what "register 7" means.
package archspec

import "github.com/go-delve/delve/pkg/dwarf/regnum"

// Arch is a read-only descriptor for one target architecture.
type Arch struct {
	Name string

	// PtrSize is the architecture's pointer width in bytes.
	PtrSize int

	// MaxRegNum is one past the largest DWARF register number ehwalk's
	// Registers type must be able to hold for this architecture (spec.md
	// §3: "size ≥ the largest DWARF number used on the target
	// architecture").
	MaxRegNum int

	// PCRegNum, SPRegNum, BPRegNum and RARegNum are the DWARF register
	// numbers for the program counter, stack pointer, frame/base pointer
	// and return-address register respectively. On amd64 PCRegNum and
	// RARegNum coincide (register 16, rip); on arm64 they do not (PC is a
	// pseudo-register, RA is the link register x30).
	PCRegNum uint64
	SPRegNum uint64
	BPRegNum uint64
	RARegNum uint64

	// UsesLR is true for architectures (arm64) where the return address
	// lives in a dedicated link register rather than always being read
	// off the stack at CFA-derived offsets.
	UsesLR bool
}

// AMD64 returns the x86_64 System V ABI descriptor.
func AMD64() *Arch {
	return &Arch{
		Name:      "amd64",
		PtrSize:   8,
		MaxRegNum: 33, // 0-16 GPRs/RA, plus room for segment/flags regs some CIEs reference
		PCRegNum:  regnum.AMD64_Rip,
		SPRegNum:  regnum.AMD64_Rsp,
		BPRegNum:  regnum.AMD64_Rbp,
		RARegNum:  regnum.AMD64_Rip,
		UsesLR:    false,
	}
}

// ARM64 returns the AArch64 AAPCS64 descriptor.
func ARM64() *Arch {
	return &Arch{
		Name:      "arm64",
		PtrSize:   8,
		MaxRegNum: int(regnum.ARM64MaxRegNum()) + 1,
		PCRegNum:  regnum.ARM64_PC,
		SPRegNum:  regnum.ARM64_SP,
		BPRegNum:  regnum.ARM64_BP,
		RARegNum:  regnum.ARM64_LR,
		UsesLR:    true,
	}
}

// Host returns the Arch descriptor for the architecture ehwalk itself was
// built for. It is implemented per-file with a build tag (see
// arch_amd64.go, arch_arm64.go) because the host architecture is a
// compile-time fact, not a runtime one: the capture/land glue in
// internal/glue only exists for the architecture the binary was built
// for.
func Host() *Arch {
	return host()
}
