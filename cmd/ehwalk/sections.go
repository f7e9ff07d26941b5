package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehwalk/ehwalk/internal/locator"
)

var sectionsCmd = &cobra.Command{
	Use:   "sections",
	Short: "List the loaded objects ehwalk found call frame information for",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := locator.Load()
		if err != nil {
			return err
		}
		for _, rec := range reg.Records() {
			fmt.Printf("%-40s text=%-24s search_table=%v\n", rec.Name, rec.Text, rec.HasSearchTable())
		}
		return nil
	},
}
