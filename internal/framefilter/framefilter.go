// Package framefilter lets a caller narrow a trace to the frames it
// cares about with a small boolean expression, instead of ehwalk
// inventing its own query syntax. cmd/ehwalk's `trace --filter` flag is
// the only consumer.
package framefilter

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Predicate evaluates a Starlark boolean expression against one frame's
// exported fields each time Match is called.
type Predicate struct {
	expr string
}

// New returns a Predicate for expr, a Starlark expression referencing
// the frame-scoped globals pc, cfa, initial_address and
// is_signal_frame, e.g. "pc > 0x400000 and not is_signal_frame".
func New(expr string) *Predicate {
	return &Predicate{expr: expr}
}

// Match reports whether frame satisfies the predicate.
func (p *Predicate) Match(frame *unwind.StackFrame) (bool, error) {
	thread := &starlark.Thread{Name: "framefilter"}
	globals := starlark.StringDict{
		"pc":              starlark.MakeUint64(frame.PC),
		"cfa":             starlark.MakeUint64(frame.CFA),
		"initial_address": starlark.MakeUint64(frame.InitialAddress),
		"is_signal_frame": starlark.Bool(frame.IsSignalFrame),
	}
	v, err := starlark.Eval(thread, "<filter>", p.expr, globals)
	if err != nil {
		return false, fmt.Errorf("framefilter: evaluating %q: %w", p.expr, err)
	}
	return bool(v.Truth()), nil
}
