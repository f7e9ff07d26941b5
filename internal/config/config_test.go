package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ehwalk/ehwalk/internal/config"
)

func TestLoadMissingFileReturnsZeroConfig(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yml"))
	require.NoError(t, err)
	require.Equal(t, &config.Config{}, cfg)
}

func TestLoadParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ehwalk.yml")
	require.NoError(t, os.WriteFile(path, []byte("log: locator,personality\nfilter: \"pc > 0\"\npprof_out: /tmp/out.pb.gz\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "locator,personality", cfg.Log)
	require.Equal(t, "pc > 0", cfg.Filter)
	require.Equal(t, "/tmp/out.pb.gz", cfg.PprofOut)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("log: [unterminated"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
