// Package config loads .stoneforge/config.yaml, the project-level
// settings file consumed by the core (spec.md §6). Grounded on the
// teacher's internal/config/local_config.go direct-YAML-read
// convention: config is parsed straight into a struct with
// gopkg.in/yaml.v3 rather than routed through a package-global viper
// singleton, so callers can load a workspace's config before any store
// or session machinery exists.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the name of the workspace's metadata directory.
const Dir = ".stoneforge"

// Sync holds the sync.* keys.
type Sync struct {
	AutoExport       bool   `yaml:"auto_export"`
	ElementsFile     string `yaml:"elements_file"`
	DependenciesFile string `yaml:"dependencies_file"`
}

// Identity holds the identity.* keys.
type Identity struct {
	Mode string `yaml:"mode"`
}

// Playbooks holds the playbooks.* keys.
type Playbooks struct {
	Paths []string `yaml:"paths"`
}

// Plugins holds the plugins.* keys.
type Plugins struct {
	Packages []string `yaml:"packages"`
}

// Config is the subset of config.yaml the core consumes, per spec.md §6.
type Config struct {
	Actor     string    `yaml:"actor"`
	Database  string    `yaml:"database"`
	Sync      Sync      `yaml:"sync"`
	Identity  Identity  `yaml:"identity"`
	Playbooks Playbooks `yaml:"playbooks"`
	Plugins   Plugins   `yaml:"plugins"`
}

// Default returns the config a freshly initialized workspace gets.
func Default() *Config {
	return &Config{
		Actor:    "local",
		Database: filepath.Join(Dir, "stoneforge.db"),
		Sync: Sync{
			AutoExport:       true,
			ElementsFile:     filepath.Join(Dir, "sync", "elements.jsonl"),
			DependenciesFile: filepath.Join(Dir, "sync", "dependencies.jsonl"),
		},
		Identity: Identity{Mode: "local"},
	}
}

// Load reads config.yaml from workspaceRoot/.stoneforge/config.yaml.
// Returns the default config (not nil, not an error) if the file does
// not exist yet, matching the teacher's LoadLocalConfig precedent of
// never failing a missing-file read.
func Load(workspaceRoot string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(workspaceRoot, Dir, "config.yaml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config.yaml: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to workspaceRoot/.stoneforge/config.yaml.
func Save(workspaceRoot string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config.yaml: %w", err)
	}
	path := filepath.Join(workspaceRoot, Dir, "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", Dir, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config.yaml: %w", err)
	}
	return nil
}

// DatabasePath resolves cfg.Database relative to workspaceRoot.
func DatabasePath(workspaceRoot string, cfg *Config) string {
	if filepath.IsAbs(cfg.Database) {
		return cfg.Database
	}
	return filepath.Join(workspaceRoot, cfg.Database)
}
