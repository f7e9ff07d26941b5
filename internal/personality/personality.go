// Package personality implements the Itanium C++ ABI's exception-handling
// entry points (_Unwind_RaiseException, _Unwind_Resume, _Unwind_Backtrace,
// and the _Unwind_Context accessors a language's personality routine
// calls back into) on top of internal/unwind's DWARF-driven frame walk,
// instead of linking against libgcc_s or LLVM's libunwind.
//
// This is ehwalk's port of the original source's libunwind_shim.rs: the
// phase/action/reason-code vocabulary, the Context/Exception layouts,
// and unwind_tracer's single-phase (cleanup-only) walk are unchanged in
// meaning, generalized from x86_64-only to whatever architecture
// internal/archspec.Host() resolves to.
package personality

import (
	"errors"
	"fmt"
	"os"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/glue"
	"github.com/ehwalk/ehwalk/internal/logflags"
	"github.com/ehwalk/ehwalk/internal/object"
	"github.com/ehwalk/ehwalk/internal/registers"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Action mirrors _Unwind_Action: the phase/intent bitmask passed to a
// personality routine.
type Action uint32

const (
	ActionSearchPhase  Action = 1
	ActionCleanupPhase Action = 2
	ActionHandlerFrame Action = 4
	ActionForceUnwind  Action = 8
	ActionEndOfStack   Action = 16
)

// ReasonCode mirrors _Unwind_Reason_Code, a personality routine's return
// value and this package's own internal result code.
type ReasonCode int32

const (
	ReasonNoReason                ReasonCode = 0
	ReasonForeignExceptionCaught  ReasonCode = 1
	ReasonFatalPhase2Error        ReasonCode = 2
	ReasonFatalPhase1Error        ReasonCode = 3
	ReasonNormalStop              ReasonCode = 4
	ReasonEndOfStack              ReasonCode = 5
	ReasonHandlerFound            ReasonCode = 6
	ReasonInstallContext          ReasonCode = 7
	ReasonContinueUnwind          ReasonCode = 8
	ReasonFailure                 ReasonCode = 9
)

// Exception mirrors _Unwind_Exception: the language runtime's own
// exception object, of which ehwalk only needs the class tag, the
// cleanup callback, and a private field used to resume a walk already in
// progress (see Resume).
type Exception struct {
	ExceptionClass   uint64
	Cleanup          func(reason ReasonCode, exc *Exception)
	privateContPtr   uint64
	privateContPtrOK bool
}

// Context mirrors _Unwind_Context: what a personality routine is handed
// for the one frame currently being examined.
type Context struct {
	LSDA           uint64
	IP             uint64
	InitialAddress uint64
	Registers      *registers.Registers
}

// PersonalityFn is the signature a language's personality routine has
// under the Itanium ABI. The cgo export shim (abi_cgo.go) adapts a raw C
// function pointer recovered from CFI augmentation data into this type;
// pure-Go tests can supply a Go func directly.
type PersonalityFn func(version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode

// ErrUnknownPersonalityReturn builds the error the driver logs, before
// exiting the process, when a personality routine returns a reason code
// this single-phase driver has no defined
// behavior for (real two-phase drivers would also accept
// ReasonHandlerFound here; ehwalk only ever runs the cleanup phase, per
// SPEC_FULL.md's scope decision to support destructors/cleanups, not
// full catch-handler search).
var ErrUnknownPersonalityReturn = func(rc ReasonCode) error {
	return fmt.Errorf("personality: unexpected reason code %d from personality routine", rc)
}

// Driver runs the frame-by-frame personality-routine protocol over a
// single unwind trace.
type Driver struct {
	Unwinder       *unwind.Unwinder
	CallPersonality func(fn uintptr, version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode
}

// hostDriver is the single process-wide Driver every exported entry
// point uses. ehwalk only ever unwinds its own address space (see
// SelfMemory in internal/unwind), so one shared Driver, backed by
// whatever objects internal/locator has discovered, is all any of these
// exported symbols need. CallPersonality is filled in by this package's
// build-tag-selected init (abi_cgo.go's real C trampoline, or
// abi_nocgo.go's hard failure) rather than here, since calling through
// an arbitrary personality-routine function pointer needs cgo.
var hostDriver = &Driver{
	Unwinder: &unwind.Unwinder{
		Arch:    archspec.Host(),
		Objects: object.EmptySource{},
	},
}

// SetObjectSource rebinds the shared driver's object registry. cmd/ehwalk
// and any embedding application call this once, after internal/locator
// has discovered the process's loaded CFI, and before any C++/Rust code
// can throw. Available regardless of the cgo build tag so cmd/ehwalk
// compiles the same way under CGO_ENABLED=0 (the Linux locator is pure
// Go, so that configuration is supported); only the actual personality
// call requires cgo.
func SetObjectSource(src unwind.ObjectSource) {
	hostDriver.Unwinder.Objects = src
}

// RaiseException starts a fresh unwind from the caller's own register
// state (via internal/glue.Capture) and drives the personality-routine
// protocol until a handler installs a context (which never returns to
// here — Land transfers control away) or the stack is exhausted.
func (d *Driver) RaiseException(exc *Exception) ReasonCode {
	exc.privateContPtrOK = false
	initial := glue.Capture()
	return d.trace(initial, exc)
}

// Resume continues an unwind that a previous RaiseException call paused
// partway through (exc.privateContPtr records the stack pointer of the
// frame that was being examined), matching _Unwind_Resume's contract:
// a personality routine that wants the walk to continue past its own
// frame calls back into this entry point.
func (d *Driver) Resume(exc *Exception) ReasonCode {
	initial := glue.Capture()
	return d.trace(initial, exc)
}

func (d *Driver) trace(initial *registers.Registers, exc *Exception) ReasonCode {
	logger := logflags.PersonalityLogger()
	it := d.Unwinder.NewIterator(initial)

	if exc.privateContPtrOK {
		for {
			_, err := it.Next()
			if err != nil {
				if errors.Is(err, unwind.ErrUnimplementedRule) {
					logger.Error(err)
					os.Exit(1)
				}
				return ReasonEndOfStack
			}
			if sp, ok := it.Registers().SP(); ok && sp == exc.privateContPtr {
				break
			}
		}
	}

	for {
		frame, err := it.Next()
		if err != nil {
			if errors.Is(err, unwind.ErrUnimplementedRule) {
				logger.Error(err)
				os.Exit(1)
			}
			return ReasonEndOfStack
		}
		if frame.Personality == nil {
			continue
		}
		if logflags.Personality() {
			logger.Debugf("frame pc=%#x has personality routine %#x", frame.PC, *frame.Personality)
		}

		var lsda uint64
		if frame.LSDA != nil {
			lsda = *frame.LSDA
		}

		ctx := &Context{
			LSDA:           lsda,
			IP:             frame.PC,
			InitialAddress: frame.InitialAddress,
			Registers:      it.Registers(),
		}

		if sp, ok := it.Registers().SP(); ok {
			exc.privateContPtr = sp
			exc.privateContPtrOK = true
		}

		// The ABI specifies phase 1 (search) as optional for a
		// single-catch-handler unwinder; ehwalk only drives cleanup
		// unwinding (see SPEC_FULL.md's scope decision), so phase 2 is
		// the only phase it ever requests.
		rc := d.CallPersonality(uintptr(*frame.Personality), 1, ActionCleanupPhase, exc.ExceptionClass, exc, ctx)
		switch rc {
		case ReasonContinueUnwind:
			continue
		case ReasonInstallContext:
			glue.Land(it.Registers())
			panic("personality: glue.Land returned")
		default:
			logger.Error(ErrUnknownPersonalityReturn(rc))
			os.Exit(1)
		}
	}
}

// GetRegionStart implements _Unwind_GetRegionStart.
func GetRegionStart(ctx *Context) uint64 { return ctx.InitialAddress }

// GetTextRelBase implements _Unwind_GetTextRelBase. The original source
// leaves this unreachable!(); ehwalk's augmentation scanner always
// resolves personality/LSDA pointers to absolute addresses up front (see
// internal/object's augEntry), so no personality routine ehwalk has
// driven has ever needed a text-relative base in practice. Returning 0
// with a logged warning is strictly safer than panicking if one ever
// does.
func GetTextRelBase(ctx *Context) uint64 {
	logflags.PersonalityLogger().Warn("_Unwind_GetTextRelBase called; ehwalk does not track a text-relative base")
	return 0
}

// GetDataRelBase implements _Unwind_GetDataRelBase, with the same
// hardened-instead-of-panicking behavior as GetTextRelBase.
func GetDataRelBase(ctx *Context) uint64 {
	logflags.PersonalityLogger().Warn("_Unwind_GetDataRelBase called; ehwalk does not track a data-relative base")
	return 0
}

// GetLanguageSpecificData implements _Unwind_GetLanguageSpecificData.
func GetLanguageSpecificData(ctx *Context) uint64 { return ctx.LSDA }

// SetGR implements _Unwind_SetGR: a personality routine uses this to
// stage the value a landing pad should find in a given register once
// Land transfers control there.
func SetGR(ctx *Context, regIndex uint64, value uint64) {
	ctx.Registers.Set(regIndex, value)
}

// SetIP implements _Unwind_SetIP: stages the landing pad address itself.
func SetIP(ctx *Context, value uint64) {
	ctx.Registers.SetPC(value)
	ctx.Registers.SetRA(value)
}

// GetIPInfo implements _Unwind_GetIPInfo. The returned ip is the frame's
// PC, which internal/unwind has already backed up by one byte from the
// return address; ipBeforeInsn is reported false unconditionally
// regardless, matching the original source's *ip_before_insn = 0.
func GetIPInfo(ctx *Context) (ip uint64, ipBeforeInsn bool) {
	return ctx.IP, false
}

// FindEnclosingFunction implements _Unwind_FindEnclosingFunction. Unlike
// the original source's FIXME'd echo-the-input stub, ehwalk resolves pc
// to the FDE that actually covers it and returns that FDE's
// initial_address — the corrected behavior SPEC_FULL.md calls for.
func FindEnclosingFunction(objects unwind.ObjectSource, pc uint64) (uint64, error) {
	rec, ok := objects.ObjectForPC(pc)
	if !ok {
		return 0, fmt.Errorf("personality: no object covers pc %#x", pc)
	}
	info, err := rec.UnwindInfoForAddress(pc)
	if err != nil {
		return 0, err
	}
	return info.InitialAddress, nil
}

// Backtrace implements _Unwind_Backtrace: walk every frame from the
// caller's own register state, invoking trace for each one, stopping
// early if trace returns anything other than ReasonNoReason.
func (d *Driver) Backtrace(trace func(ctx *Context) ReasonCode) ReasonCode {
	initial := glue.Capture()
	it := d.Unwinder.NewIterator(initial)
	for {
		frame, err := it.Next()
		if err != nil {
			return ReasonEndOfStack
		}
		var lsda uint64
		if frame.LSDA != nil {
			lsda = *frame.LSDA
		}
		ctx := &Context{
			LSDA:           lsda,
			IP:             frame.PC,
			InitialAddress: frame.InitialAddress,
			Registers:      it.Registers(),
		}
		if rc := trace(ctx); rc != ReasonNoReason {
			return rc
		}
	}
}
