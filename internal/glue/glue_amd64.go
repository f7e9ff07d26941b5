//go:build amd64

// Package glue captures and restores the raw machine register state that
// internal/unwind's algorithm needs a starting point for, and that
// internal/personality needs in order to actually transfer control to a
// landing pad once a cleanup frame has been chosen. This is the one part
// of ehwalk that cannot be written in portable Go: it is ported,
// architecture by architecture, from the original source's
// src/glue.rs/src/glue/aarch64.rs naked-function trampolines into the Go
// assembler's equivalent idiom (teleport the hardware stack pointer onto
// a caller-supplied register block, then POP/load each field back out),
// rather than delve's own approach of reading registers out of a ptrace'd
// target process, which has no analogue when unwinding the current
// thread in-process.
package glue

import (
	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/registers"
)

// capturedAMD64 mirrors glue.rs's SavedRegs plus the IP/SP pair
// unwind_recorder derives from its stack-argument and the return address
// the CALL instruction pushed. Field order is load-bearing: it matches
// the offsets captureRegistersAMD64 (glue_amd64.s) writes.
type capturedAMD64 struct {
	RBX, RBP, R12, R13, R14, R15, IP, SP uint64
}

// captureRegistersAMD64 is implemented in glue_amd64.s. It records the
// callee-saved registers live at its call site, plus the return address
// and stack pointer of that call site. Since its only caller is Capture,
// that is Capture's own register state, so the first frame an unwind from
// it reports is Capture itself, followed by Capture's caller.
//
//go:noescape
func captureRegistersAMD64(dst *capturedAMD64)

// Capture returns a Registers snapshot of the machine state inside Capture
// at its call to the capture trampoline, the starting point for an unwind
// trace (whose first frame is Capture, then Capture's caller).
func Capture() *registers.Registers {
	var c capturedAMD64
	captureRegistersAMD64(&c)

	r := registers.New(archspec.AMD64())
	r.Set(regnumRBX, c.RBX)
	r.Set(regnumRBP, c.RBP)
	r.Set(regnumR12, c.R12)
	r.Set(regnumR13, c.R13)
	r.Set(regnumR14, c.R14)
	r.Set(regnumR15, c.R15)
	r.SetSP(c.SP)
	r.SetPC(c.IP)
	r.SetRA(c.IP)
	return r
}

// landingAMD64 mirrors glue.rs's LandingRegisters: every general-purpose
// register the ABI might need restored before jumping to a landing pad.
type landingAMD64 struct {
	RAX, RBX, RCX, RDX, RDI, RSI, RBP uint64
	R8, R9, R10, R11, R12, R13, R14, R15 uint64
	RSP uint64
}

// landTrampolineAMD64 is implemented in glue_amd64.s. It teleports the
// hardware stack pointer onto lr (treating the passed struct as if it
// were a genuine stack frame), pops every GPR back out of it in the
// order they're declared, and finally RETs — which pops the value
// stored at lr.RSP (one slot below the target stack pointer) and jumps
// to it. Land (below) arranges for
// that value to be the landing pad address.
//
//go:noescape
func landTrampolineAMD64(lr *landingAMD64)

// Land transfers control to regs' program counter with regs' other
// register values restored, never returning to its caller. It is the
// mechanism internal/personality uses to resume execution at a cleanup
// landing pad once _Unwind_RaiseException has located one.
func Land(regs *registers.Registers) {
	lr := landingAMD64{
		RAX: get(regs, regnumRAX), RBX: get(regs, regnumRBX),
		RCX: get(regs, regnumRCX), RDX: get(regs, regnumRDX),
		RDI: get(regs, regnumRDI), RSI: get(regs, regnumRSI),
		RBP: get(regs, regnumRBP),
		R8:  get(regs, regnumR8), R9: get(regs, regnumR9),
		R10: get(regs, regnumR10), R11: get(regs, regnumR11),
		R12: get(regs, regnumR12), R13: get(regs, regnumR13),
		R14: get(regs, regnumR14), R15: get(regs, regnumR15),
	}
	sp, _ := regs.SP()
	pc, _ := regs.PC()

	// Reserve one slot below the target SP for the landing pad address,
	// exactly as the original source's land() does ("lr.rsp -= 8;
	// *(lr.rsp) = IP"), so that landTrampolineAMD64's final RET pops it.
	sp -= 8
	writeUint64(sp, pc)
	lr.RSP = sp

	landTrampolineAMD64(&lr)
}

func get(r *registers.Registers, n uint64) uint64 {
	v, _ := r.Get(n)
	return v
}
