// Package unwind implements the per-frame unwind algorithm: given a
// starting register snapshot, walk the call stack one frame at a time by
// locating the Frame Description Entry covering each return address,
// computing its Canonical Frame Address, and applying the CIE/FDE's
// register rules to recover the caller's registers.
//
// The state-machine shape (apply the previous row's rules lazily, on the
// next call to Next, rather than eagerly when the row is found) mirrors
// the original source's StackFrames::next (src/lib.rs) and delve's own
// stackIterator.Next (pkg/proc/stack.go): both only commit a frame's
// register rules once the caller asks to advance past it, so the
// currently-yielded frame's own registers are still the ones live when
// Next returns.
package unwind

import (
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/frame"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/ehframehdr"
	"github.com/ehwalk/ehwalk/internal/logflags"
	"github.com/ehwalk/ehwalk/internal/object"
	"github.com/ehwalk/ehwalk/internal/registers"
)

// ErrEndOfStack is the sentinel FrameIterator.Next returns once the trace
// has reached its natural end: either the outermost frame's return
// address rule is undefined (the bottom of the call stack, per the
// DWARF CFI convention that the entry function's CIE leaves RA
// undefined) or no loaded object covers the next return address (we have
// walked off the known-CFI part of the stack, e.g. into a libc frame
// built without unwind tables). Neither is a failure of the unwinder;
// both just mean "nothing more to report".
var ErrEndOfStack = errors.New("unwind: end of stack")

// ErrUndefinedReturnAddress is wrapped into ErrEndOfStack by Next, but
// exported so callers that want to distinguish "ran off the end
// cleanly" from "CFI table is missing for this address" can unwrap it.
var ErrUndefinedReturnAddress = errors.New("unwind: return address register rule is undefined")

// ObjectSource resolves a code address to the object.Record whose text
// range contains it. internal/locator's per-OS implementations are the
// production source; tests can supply a single-object fake.
type ObjectSource interface {
	ObjectForPC(pc uint64) (*object.Record, bool)
}

// Unwinder drives frame iteration for one architecture against one
// ObjectSource. It holds no per-trace state; call Trace (or NewIterator)
// once per stack walk.
type Unwinder struct {
	Arch    *archspec.Arch
	Objects ObjectSource
	Mem     SelfMemory
}

// New returns an Unwinder for the host architecture.
func New(objects ObjectSource) *Unwinder {
	return &Unwinder{Arch: archspec.Host(), Objects: objects}
}

// StackFrame is one reported frame: the facts a personality-routine
// driver or a human-facing backtrace both need. It corresponds to
// spec.md's StackFrame type (personality/lsda/initial_address), plus the
// PC and CFA ehwalk's CLI prints.
type StackFrame struct {
	PC             uint64
	CFA            uint64
	InitialAddress uint64
	Personality    *uint64
	LSDA           *uint64
	IsSignalFrame  bool
}

// FrameIterator walks a call stack lazily: Next advances to and returns
// the next frame, or ErrEndOfStack when the walk is complete.
type FrameIterator struct {
	u    *Unwinder
	regs *registers.Registers

	// pending holds the just-found row and CFA for the frame Next most
	// recently returned; it is applied to regs at the start of the next
	// call to Next, matching the original's "(row, cfa)" staged Option.
	pending *pendingRow
}

type pendingRow struct {
	ctx *object.Info
	cfa uint64
}

// NewIterator starts a frame walk from an initial register snapshot
// (typically produced by internal/glue's architecture-specific capture
// trampoline).
func (u *Unwinder) NewIterator(initial *registers.Registers) *FrameIterator {
	return &FrameIterator{u: u, regs: initial.Clone()}
}

// Registers exposes the iterator's live register file, so a personality
// routine can mutate it in place before resuming execution at a landing
// pad (see internal/glue's land trampoline).
func (it *FrameIterator) Registers() *registers.Registers { return it.regs }

// Next advances to the next frame up the stack. The first call reports
// the frame containing the program counter already in the iterator's
// registers (the throw site, or whatever internal/glue captured);
// subsequent calls first apply the previous frame's register rules, then
// look up its caller.
func (it *FrameIterator) Next() (*StackFrame, error) {
	logger := logflags.StackLogger()

	if it.pending != nil {
		if err := it.applyPending(); err != nil {
			return nil, err
		}
		it.pending = nil
	}

	ra, ok := it.regs.RA()
	if !ok {
		return nil, fmt.Errorf("%w: %w", ErrEndOfStack, ErrUndefinedReturnAddress)
	}

	// The return address is the instruction *after* the call; the call
	// frame information for the call itself is keyed to an address
	// inside the call instruction, so callers must back up by one byte
	// before looking up CFI. This one-byte backup is load-bearing: ported
	// unchanged from the original source's "caller -= 1; // THIS IS
	// NECESSARY" and from delve's identical convention.
	pc := ra - 1

	rec, ok := it.u.Objects.ObjectForPC(pc)
	if !ok {
		return nil, ErrEndOfStack
	}

	info, err := rec.UnwindInfoForAddress(pc)
	if err != nil {
		var noInfo *object.ErrNoUnwindInfoForAddress
		if errors.As(err, &noInfo) {
			return nil, ErrEndOfStack
		}
		return nil, err
	}

	cfa, err := it.computeCFA(info.Context.CFA)
	if err != nil {
		return nil, err
	}

	if logflags.Stack() {
		logger.Debugf("frame pc=%#x cfa=%#x initial=%#x", pc, cfa, info.InitialAddress)
	}

	it.pending = &pendingRow{ctx: info, cfa: cfa}

	return &StackFrame{
		PC:             pc,
		CFA:            cfa,
		InitialAddress: info.InitialAddress,
		Personality:    derefOptional(it.u.Mem, info.Personality),
		LSDA:           derefOptional(it.u.Mem, info.LSDA),
		IsSignalFrame:  info.IsSignalFrame,
	}, nil
}

func (it *FrameIterator) computeCFA(rule frame.DWRule) (uint64, error) {
	switch rule.Rule {
	case frame.RuleCFA:
		base, ok := it.regs.Get(rule.Reg)
		if !ok {
			return 0, fmt.Errorf("unwind: CFA register %d is undefined", rule.Reg)
		}
		return uint64(int64(base) + rule.Offset), nil
	case frame.RuleExpression:
		return 0, ErrUnimplementedRule
	default:
		return 0, fmt.Errorf("unwind: unsupported CFA rule kind")
	}
}

func (it *FrameIterator) applyPending() error {
	logger := logflags.StackLogger()
	cur := it.regs

	// Start from a clone of the current registers, not a fresh all-
	// unknown file: a register with no rule in this row (a callee-saved
	// register passed through an intermediate frame unchanged) keeps its
	// current value, per spec Step A and the original's
	// "newregs = registers.clone()". Only the return-address register is
	// cleared up front, since an undefined RA is what signals end-of-stack.
	next := cur.Clone()
	next.Clear(next.Arch().RARegNum)

	// The stack pointer of the caller's frame is always the CFA; this is
	// an implicit rule the DWARF standard leaves to the consumer (see the
	// comment in GDB's dwarf2_frame_default_init, quoted in delve's
	// advanceRegs), since compilers never emit an explicit rule for it.
	next.SetSP(it.pending.cfa)

	for regnum, rule := range it.pending.ctx.Context.Regs {
		if regnum == next.Arch().SPRegNum {
			continue
		}
		v, ok, err := executeRule(it.u.Mem, cur, regnum, rule, it.pending.cfa)
		if err != nil {
			return err
		}
		if logflags.Stack() {
			logger.Debugf("\treg %d rule %s -> %v (%v)", regnum, ruleString(rule), v, ok)
		}
		if ok {
			next.Set(regnum, v)
		}
	}

	it.regs = next
	return nil
}

func derefOptional(mem SelfMemory, p *ehframehdr.Pointer) *uint64 {
	if p == nil {
		return nil
	}
	v, err := p.Deref(mem)
	if err != nil {
		return nil
	}
	return &v
}

// Trace walks the full stack starting from initial, invoking cb for each
// frame until ErrEndOfStack or a real error. It stops and returns nil on
// ErrEndOfStack, matching the original source's FallibleIterator-based
// "drain until None" usage in tests/correctness.rs.
func (u *Unwinder) Trace(initial *registers.Registers, cb func(*StackFrame) error) error {
	it := u.NewIterator(initial)
	for {
		frame, err := it.Next()
		if err != nil {
			if errors.Is(err, ErrEndOfStack) {
				return nil
			}
			return err
		}
		if err := cb(frame); err != nil {
			return err
		}
	}
}
