package main

import (
	"github.com/spf13/cobra"

	"github.com/ehwalk/ehwalk/internal/config"
	"github.com/ehwalk/ehwalk/internal/logflags"
)

var (
	logSpec string
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ehwalk",
	Short: "DWARF-driven stack unwinder and exception-handling ABI driver",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		spec := logSpec
		if spec == "" {
			spec = cfg.Log
		}
		if spec != "" {
			return logflags.Setup(spec)
		}
		return logflags.FromEnv()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logSpec, "log", "", "comma-separated log subsystems (unwind,stack,personality,locator)")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "ehwalk.yml", "path to a YAML config file (optional)")
	rootCmd.AddCommand(traceCmd, sectionsCmd, dapCmd, replCmd)
}

// Execute runs the root command; main's only caller.
func Execute() error {
	return rootCmd.Execute()
}
