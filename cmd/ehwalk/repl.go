package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cosiner/argv"
	"github.com/derekparker/trie"
	"github.com/go-delve/liner"
	"github.com/spf13/cobra"

	"github.com/ehwalk/ehwalk/internal/glue"
	"github.com/ehwalk/ehwalk/internal/locator"
	"github.com/ehwalk/ehwalk/internal/personality"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

var replCommands = []string{"trace", "sections", "help", "quit"}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive shell over the trace/sections commands",
	RunE:  runREPL,
}

func runREPL(cmd *cobra.Command, args []string) error {
	reg, err := locator.Load()
	if err != nil {
		return err
	}
	personality.SetObjectSource(reg)
	u := unwind.New(reg)

	completions := trie.New()
	for _, c := range replCommands {
		completions.Add(c, nil)
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCompleter(func(what string) []string {
		return completions.PrefixSearch(what)
	})

	for {
		input, err := line.Prompt("ehwalk> ")
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		line.AppendHistory(input)

		if strings.TrimSpace(input) == "" {
			continue
		}
		tokens, err := argv.Argv(input, nil, nil)
		if err != nil || len(tokens) == 0 || len(tokens[0]) == 0 {
			fmt.Fprintf(os.Stderr, "ehwalk: could not parse input: %v\n", err)
			continue
		}

		switch tokens[0][0] {
		case "quit":
			return nil
		case "trace":
			replTrace(u)
		case "sections":
			replSections(reg)
		case "help":
			fmt.Println("commands: " + strings.Join(replCommands, ", "))
		default:
			fmt.Fprintf(os.Stderr, "ehwalk: unknown command %q\n", tokens[0][0])
		}
	}
}

func replTrace(u *unwind.Unwinder) {
	initial := glue.Capture()
	err := u.Trace(initial, func(f *unwind.StackFrame) error {
		printFrame(f, false)
		return nil
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ehwalk: %v\n", err)
	}
}

func replSections(reg *locator.Registry) {
	for _, rec := range reg.Records() {
		fmt.Printf("%-40s text=%s\n", rec.Name, rec.Text)
	}
}
