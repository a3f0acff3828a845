package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Features.SuccessCriteria)
	assert.Equal(t, "standard", cfg.Enforcement.Level)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	cfg.SetFeature("feedback", false)
	cfg.Enforcement.Level = "strict"
	require.NoError(t, cfg.Save())

	assert.FileExists(t, filepath.Join(dir, "config.yaml"))

	reloaded, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, reloaded.Features.Feedback)
	assert.Equal(t, "strict", reloaded.Enforcement.Level)
}

func TestMinimalModeDisablesEverything(t *testing.T) {
	cfg := Default()
	cfg.Features.MinimalMode = true
	assert.False(t, cfg.Enabled("success_criteria"))
	assert.False(t, cfg.Enabled("feedback"))
	assert.False(t, cfg.Enabled("deadlines"))
}

func TestEnabledUnknownFeature(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.Enabled("not_a_feature"))
}

func TestSetFeatureUnknownReturnsFalse(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.SetFeature("nope", true))
}

func TestReset(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	cfg.SetFeature("feedback", false)
	cfg.Reset()
	assert.True(t, cfg.Features.Feedback)
}
