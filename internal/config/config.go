// Package config loads ehwalk's optional on-disk configuration: the
// handful of settings (log subsystems, default filter expression,
// pprof export path) a user would otherwise have to repeat as flags on
// every invocation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is ehwalk's top-level config-file shape.
type Config struct {
	// Log is a comma-separated subsystem list, the same syntax
	// internal/logflags.Setup accepts via EHWALK_LOG.
	Log string `yaml:"log"`

	// Filter is the default Starlark predicate applied to `trace` when
	// no --filter flag is given.
	Filter string `yaml:"filter"`

	// PprofOut, if set, is the default path `trace --pprof` writes to.
	PprofOut string `yaml:"pprof_out"`
}

// Load reads and parses the YAML config file at path. A missing file is
// not an error — it returns the zero Config, matching cmd/ehwalk's
// "config file is optional" contract.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
