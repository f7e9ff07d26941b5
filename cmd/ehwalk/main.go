// Command ehwalk is a CLI front end over the unwind/personality
// packages: capture and print the calling process's own stack, list the
// call frame information ehwalk discovered, or run a DAP/REPL server
// over it.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
