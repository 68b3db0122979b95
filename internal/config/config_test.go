package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Actor = "alice"
	cfg.Playbooks.Paths = []string{"playbooks/onboarding"}
	cfg.Plugins.Packages = []string{"stoneforge-jira"}

	require.NoError(t, Save(dir, cfg))

	got, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, Dir, "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("actor: [unterminated"), 0o600))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestDatabasePathResolvesRelativeToWorkspace(t *testing.T) {
	cfg := Default()
	got := DatabasePath("/work/proj", cfg)
	require.Equal(t, filepath.Join("/work/proj", ".stoneforge", "stoneforge.db"), got)
}

func TestDatabasePathKeepsAbsolute(t *testing.T) {
	cfg := Default()
	cfg.Database = "/var/lib/stoneforge.db"
	got := DatabasePath("/work/proj", cfg)
	require.Equal(t, "/var/lib/stoneforge.db", got)
}
