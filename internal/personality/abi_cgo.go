//go:build cgo

// This file is ehwalk's binary-compatible ABI surface: the actual
// //export'd _Unwind_* C symbols a compiler's generated landing-pad code
// and personality routine call directly, laid out to match the Itanium
// C++ ABI's struct layout so object files compiled against a real
// libgcc_s/libunwind link against ehwalk instead without modification.
// Everything here is a thin adapter over the pure-Go Driver in
// personality.go; the only reason this file needs cgo at all is calling
// through an arbitrary C function pointer (the personality routine),
// which Go cannot do without a small C trampoline.
package personality

/*
#include <stdint.h>

typedef int (*ehwalk_personality_fn)(int version, int actions, uint64_t cls, void *exc, void *ctx);

static int ehwalk_call_personality(void *fn, int version, int actions, uint64_t cls, void *exc, void *ctx) {
	return ((ehwalk_personality_fn)fn)(version, actions, cls, exc, ctx);
}

struct ehwalk_unwind_exception {
	uint64_t exception_class;
	void (*exception_cleanup)(int reason, void *exc);
	uintptr_t private_1;
	uintptr_t private_2;
};
*/
import "C"

import "unsafe"

// init wires the process-wide hostDriver (declared in personality.go) to
// the real cgo trampoline. Only this file's build (cgo enabled) can
// actually call through a C function pointer.
func init() {
	hostDriver.CallPersonality = callPersonalityC
}

func callPersonalityC(fn uintptr, version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode {
	cExc := toCException(exc)
	rc := C.ehwalk_call_personality(
		unsafe.Pointer(fn),
		C.int(version),
		C.int(actions),
		C.uint64_t(class),
		unsafe.Pointer(cExc),
		unsafe.Pointer(ctx),
	)
	fromCException(cExc, exc)
	return ReasonCode(rc)
}

func toCException(exc *Exception) *C.struct_ehwalk_unwind_exception {
	c := (*C.struct_ehwalk_unwind_exception)(C.malloc(C.sizeof_struct_ehwalk_unwind_exception))
	c.exception_class = C.uint64_t(exc.ExceptionClass)
	if exc.privateContPtrOK {
		c.private_1 = C.uintptr_t(exc.privateContPtr)
	} else {
		c.private_1 = 0
	}
	return c
}

func fromCException(c *C.struct_ehwalk_unwind_exception, exc *Exception) {
	exc.privateContPtr = uint64(c.private_1)
	exc.privateContPtrOK = c.private_1 != 0
	C.free(unsafe.Pointer(c))
}

//export _Unwind_RaiseException
func _Unwind_RaiseException(rawExc unsafe.Pointer) C.int {
	exc := exceptionFromRaw(rawExc)
	return C.int(hostDriver.RaiseException(exc))
}

//export _Unwind_Resume
func _Unwind_Resume(rawExc unsafe.Pointer) {
	exc := exceptionFromRaw(rawExc)
	hostDriver.Resume(exc)
}

//export _Unwind_DeleteException
func _Unwind_DeleteException(rawExc unsafe.Pointer) {
	// The real ABI calls back into the exception object's own cleanup
	// function; ehwalk's Go-side Exception doesn't carry one across the
	// cgo boundary in this simplified shim (see DESIGN.md), so deletion
	// is a no-op here. A language runtime that needs cleanup-on-delete
	// should call its own cleanup before releasing the exception.
}

//export _Unwind_GetRegionStart
func _Unwind_GetRegionStart(ctx unsafe.Pointer) C.uintptr_t {
	return C.uintptr_t(GetRegionStart((*Context)(ctx)))
}

//export _Unwind_GetTextRelBase
func _Unwind_GetTextRelBase(ctx unsafe.Pointer) C.uintptr_t {
	return C.uintptr_t(GetTextRelBase((*Context)(ctx)))
}

//export _Unwind_GetDataRelBase
func _Unwind_GetDataRelBase(ctx unsafe.Pointer) C.uintptr_t {
	return C.uintptr_t(GetDataRelBase((*Context)(ctx)))
}

//export _Unwind_GetLanguageSpecificData
func _Unwind_GetLanguageSpecificData(ctx unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(GetLanguageSpecificData((*Context)(ctx))))
}

//export _Unwind_SetGR
func _Unwind_SetGR(ctx unsafe.Pointer, regIndex C.int, value C.uintptr_t) {
	SetGR((*Context)(ctx), uint64(regIndex), uint64(value))
}

//export _Unwind_SetIP
func _Unwind_SetIP(ctx unsafe.Pointer, value C.uintptr_t) {
	SetIP((*Context)(ctx), uint64(value))
}

//export _Unwind_GetIPInfo
func _Unwind_GetIPInfo(ctx unsafe.Pointer, ipBeforeInsn *C.int) C.uintptr_t {
	ip, before := GetIPInfo((*Context)(ctx))
	if before {
		*ipBeforeInsn = 1
	} else {
		*ipBeforeInsn = 0
	}
	return C.uintptr_t(ip)
}

//export _Unwind_FindEnclosingFunction
func _Unwind_FindEnclosingFunction(pc unsafe.Pointer) unsafe.Pointer {
	addr, err := FindEnclosingFunction(hostDriver.Unwinder.Objects, uint64(uintptr(pc)))
	if err != nil {
		return pc
	}
	return unsafe.Pointer(uintptr(addr))
}

// exceptionFromRaw recovers (or lazily creates) the Go-side Exception
// bookkeeping for a C-side _Unwind_Exception pointer. Since the
// exception object's lifetime is owned by the throwing language runtime,
// not ehwalk, ehwalk keeps its own per-exception state (the
// private_contptr resume marker) keyed by the C pointer's address.
func exceptionFromRaw(raw unsafe.Pointer) *Exception {
	c := (*C.struct_ehwalk_unwind_exception)(raw)
	exc := &Exception{ExceptionClass: uint64(c.exception_class)}
	if c.private_1 != 0 {
		exc.privateContPtr = uint64(c.private_1)
		exc.privateContPtrOK = true
	}
	return exc
}
