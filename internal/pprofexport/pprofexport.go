// Package pprofexport renders one captured stack trace as a pprof
// profile (a single sample whose location stack is the trace itself),
// so a trace captured by cmd/ehwalk can be opened in `pprof -traces` or
// any other pprof-format viewer instead of only ehwalk's own output.
package pprofexport

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"

	"github.com/ehwalk/ehwalk/internal/unwind"
)

// Export writes frames (innermost-first, as produced by
// unwind.Unwinder.Trace) to w as a gzip-compressed pprof profile
// containing exactly one sample.
func Export(w io.Writer, frames []*unwind.StackFrame) error {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "trace", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "trace", Unit: "count"},
		Period:     1,
	}

	sample := &profile.Sample{Value: []int64{1}}

	for i, f := range frames {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:   id,
			Name: fmt.Sprintf("0x%x", f.InitialAddress),
		}
		loc := &profile.Location{
			ID:      id,
			Address: f.PC,
			Line:    []profile.Line{{Function: fn, Line: 0}},
		}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		sample.Location = append(sample.Location, loc)
	}
	p.Sample = append(p.Sample, sample)

	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("pprofexport: building profile: %w", err)
	}
	return p.Write(w)
}
