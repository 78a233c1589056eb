package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/regression-baseline/internal/config"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagCommand(f *commonFlags, args ...string) (*cobra.Command, error) {
	cmd := &cobra.Command{Use: "test"}
	f.register(cmd)
	return cmd, cmd.ParseFlags(args)
}

func TestResolve_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("target_url: http://file:3000\nbaseline_dir: from-file\nmax_diff_pixels: 7\n"), 0644))

	var f commonFlags
	cmd, err := newFlagCommand(&f, "--config", path, "--url", "http://flag:4000", "--timeout", "9")
	require.NoError(t, err)

	cfg, err := f.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:4000", cfg.TargetURL)
	assert.Equal(t, "from-file", cfg.BaselineDir)
	assert.Equal(t, 9, cfg.DimensionTimeoutSeconds)
	require.NotNil(t, cfg.MaxDiffPixels)
	assert.Equal(t, 7, *cfg.MaxDiffPixels)
	assert.Equal(t, config.ProbeBrowser, cfg.ProbeMode)
}

func TestResolve_Environment(t *testing.T) {
	t.Setenv(config.EnvTargetURL, "http://env:5000")
	t.Setenv(config.EnvDatabaseURL, "")

	var f commonFlags
	cmd, err := newFlagCommand(&f)
	require.NoError(t, err)

	cfg, err := f.resolve(cmd)
	require.NoError(t, err)
	assert.Equal(t, "http://env:5000", cfg.TargetURL)
	assert.Equal(t, "baselines", cfg.BaselineDir)
}

func TestResolve_InvalidFlag(t *testing.T) {
	var f commonFlags
	cmd, err := newFlagCommand(&f, "--probe", "telnet")
	require.NoError(t, err)

	_, err = f.resolve(cmd)
	assert.Error(t, err)
}

func TestResolve_InvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"masks": ["weather"]}`), 0644))

	var f commonFlags
	cmd, err := newFlagCommand(&f, "--config", path)
	require.NoError(t, err)

	_, err = f.resolve(cmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mask")
}

func TestRequireTarget(t *testing.T) {
	assert.Error(t, requireTarget(config.Config{}))
	assert.NoError(t, requireTarget(config.Config{TargetURL: "http://localhost"}))
}
