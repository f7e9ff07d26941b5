package main

import (
	"os"

	"github.com/spf13/cobra"

	dapserver "github.com/ehwalk/ehwalk/internal/dap"
	"github.com/ehwalk/ehwalk/internal/locator"
	"github.com/ehwalk/ehwalk/internal/personality"
	"github.com/ehwalk/ehwalk/internal/unwind"
)

var dapCmd = &cobra.Command{
	Use:   "dap",
	Short: "Run a minimal Debug Adapter Protocol server over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := locator.Load()
		if err != nil {
			return err
		}
		personality.SetObjectSource(reg)
		u := unwind.New(reg)
		return dapserver.New(u, os.Stdin, os.Stdout).Run()
	},
}
