package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ehwalk/ehwalk/internal/archspec"
	"github.com/ehwalk/ehwalk/internal/framefilter"
	"github.com/ehwalk/ehwalk/internal/glue"
	"github.com/ehwalk/ehwalk/internal/locator"
	"github.com/ehwalk/ehwalk/internal/personality"
	"github.com/ehwalk/ehwalk/internal/pprofexport"
	"github.com/ehwalk/ehwalk/internal/symbolize"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

var (
	filterExpr string
	pprofOut   string
	showAsm    bool
)

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Capture and print the current call stack",
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().StringVar(&filterExpr, "filter", "", "Starlark predicate narrowing which frames print")
	traceCmd.Flags().StringVar(&pprofOut, "pprof", "", "write the trace as a pprof profile to this path")
	traceCmd.Flags().BoolVar(&showAsm, "asm", false, "disassemble the instruction at each frame's pc")
}

func runTrace(cmd *cobra.Command, args []string) error {
	reg, err := locator.Load()
	if err != nil {
		return err
	}
	personality.SetObjectSource(reg)

	expr := filterExpr
	if expr == "" {
		expr = cfg.Filter
	}
	var pred *framefilter.Predicate
	if expr != "" {
		pred = framefilter.New(expr)
	}

	out := pprofOut
	if out == "" {
		out = cfg.PprofOut
	}

	u := unwind.New(reg)
	initial := glue.Capture()

	var frames []*unwind.StackFrame
	err = u.Trace(initial, func(f *unwind.StackFrame) error {
		if pred != nil {
			ok, err := pred.Match(f)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}
		frames = append(frames, f)
		printFrame(f, showAsm)
		return nil
	})
	if err != nil {
		return err
	}

	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("trace: opening %s: %w", out, err)
		}
		defer f.Close()
		return pprofexport.Export(f, frames)
	}
	return nil
}

func printFrame(f *unwind.StackFrame, asm bool) {
	line := fmt.Sprintf("pc=%#x cfa=%#x initial=%#x", f.PC, f.CFA, f.InitialAddress)
	if f.IsSignalFrame {
		line += " [signal]"
	}
	if asm {
		if inst, err := symbolize.AtPC(archspec.Host(), f.PC); err == nil {
			line += "  " + inst.Text
		}
	}
	fmt.Println(line)
}
