package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, MirrorKindFile, cfg.Mirror.Kind)
	assert.Equal(t, 3, cfg.Mirror.MaxAttempts)
	assert.Equal(t, "UTC", cfg.Workspace.Timezone)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.Mirror.Kind = MirrorKindHTTP
	cfg.Mirror.BaseURL = "https://mirror.example.com"
	cfg.Workspace.Timezone = "Europe/Bucharest"
	cfg.GC.GraceDays = 7

	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, MirrorKindHTTP, loaded.Mirror.Kind)
	assert.Equal(t, "https://mirror.example.com", loaded.Mirror.BaseURL)
	assert.Equal(t, "Europe/Bucharest", loaded.Workspace.Timezone)
	assert.Equal(t, 7, loaded.GC.GraceDays)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("LIFEPLAN_MIRROR_KIND", MirrorKindMemory)
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, MirrorKindMemory, cfg.Mirror.Kind)
}
