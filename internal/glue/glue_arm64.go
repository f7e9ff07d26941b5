//go:build arm64

package glue

import (
	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/registers"
)

// capturedARM64 mirrors the aarch64 glue's SavedRegs: the eleven
// callee-saved integer registers x19-x29, the link register, and the
// eight callee-saved low 64 bits of the vector registers d8-d15, plus
// the caller's stack pointer captureRegistersARM64 derives directly
// (arm64's BL instruction leaves the return address in LR, so unlike
// amd64 there is no stack slot to dereference for it).
type capturedARM64 struct {
	X [11]uint64 // x19..x29
	LR uint64
	D [8]uint64 // d8..d15
	SP uint64
}

//go:noescape
func captureRegistersARM64(dst *capturedARM64)

// Capture returns a Registers snapshot of the machine state inside Capture
// at its call to the capture trampoline (LR holds the return address into
// Capture), so an unwind from it reports Capture first, then its caller.
func Capture() *registers.Registers {
	var c capturedARM64
	captureRegistersARM64(&c)

	r := registers.New(archspec.ARM64())
	for i, v := range c.X {
		r.Set(regnumX19+uint64(i), v)
	}
	for i, v := range c.D {
		r.Set(regnumD8+uint64(i), v)
	}
	r.SetSP(c.SP)
	r.SetPC(c.LR)
	r.SetRA(c.LR)
	return r
}

// landingARM64 mirrors the aarch64 glue's LandingRegisters: every
// general-purpose register (x0-x28), the frame pointer, the link
// register (the landing pad address Land wants to jump to), the target
// stack pointer, and all 32 vector registers' low 64 bits.
type landingARM64 struct {
	X  [29]uint64 // x0..x28
	FP uint64     // x29
	LR uint64     // x30 = landing pad address
	SP uint64
	V  [32]uint64 // d0..d31
}

//go:noescape
func landTrampolineARM64(lr *landingARM64)

// Land transfers control to regs' program counter with regs' other
// register values restored, never returning to its caller.
func Land(regs *registers.Registers) {
	var lr landingARM64
	for i := range lr.X {
		v, _ := regs.Get(uint64(i))
		lr.X[i] = v
	}
	fp, _ := regs.BP()
	lr.FP = fp
	pc, _ := regs.PC()
	lr.LR = pc
	sp, _ := regs.SP()
	lr.SP = sp
	for i := range lr.V {
		v, _ := regs.Get(regnumD8 - 8 + uint64(i))
		lr.V[i] = v
	}

	landTrampolineARM64(&lr)
}
