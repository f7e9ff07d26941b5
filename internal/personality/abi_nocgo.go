//go:build !cgo

package personality

import "github.com/ehwalk/ehwalk/internal/logflags"

// init wires the process-wide hostDriver (declared in personality.go) to
// a CallPersonality that always fails. Invoking an arbitrary
// personality-routine function pointer recovered from CFI augmentation
// data requires a C trampoline (see abi_cgo.go); a CGO_ENABLED=0 build
// still needs to compile and still needs internal/locator and the
// trace/sections/dap/repl subcommands to work (none of those call a
// personality routine), so this build only gives up once a real
// exception actually tries to unwind through one.
func init() {
	hostDriver.CallPersonality = callPersonalityUnavailable
}

func callPersonalityUnavailable(fn uintptr, version int32, actions Action, class uint64, exc *Exception, ctx *Context) ReasonCode {
	logflags.PersonalityLogger().Error("personality: cannot call personality routine: built without cgo")
	return ReasonFatalPhase2Error
}
