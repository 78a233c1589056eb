package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/regression-baseline/internal/masking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMasks_StandardCatalog(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listMasks(&out, "STANDARD MASK REGIONS", standardRegions()))

	for _, name := range masking.StandardNames() {
		assert.Contains(t, out.String(), name)
	}
}

func TestListMasks_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listMasks(&out, "NONE", nil))
	assert.Contains(t, out.String(), "No mask regions configured")
}

func TestRunMasks_WithConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"masks": ["grafana"],
		"custom_masks": [{"name": "clock", "selector": "#clock", "label": "Clock", "reason": "wall time", "category": "timestamp"}]
	}`), 0644))

	masksConfigPath = path
	t.Cleanup(func() { masksConfigPath = "" })

	var out bytes.Buffer
	masksCmd.SetOut(&out)
	t.Cleanup(func() { masksCmd.SetOut(nil) })

	require.NoError(t, runMasks(masksCmd, nil))
	assert.Contains(t, out.String(), "CONFIGURED MASK REGIONS")
	assert.Contains(t, out.String(), "grafana")
	assert.Contains(t, out.String(), "clock [timestamp]")
	assert.NotContains(t, out.String(), "externalContent")
}
