package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stoneforge-ai/stoneforge/internal/config"
	"github.com/stoneforge-ai/stoneforge/internal/store"
)

// openWorkspace loads the workspace's config.yaml and opens its store,
// failing fast with a clear message if `stoneforge init` was never run.
func openWorkspace(ctx context.Context) (*config.Config, *store.Store, error) {
	dotDir := filepath.Join(flagRoot, config.Dir)
	if _, err := os.Stat(dotDir); err != nil {
		return nil, nil, fmt.Errorf("no %s found under %s — run `stoneforge init` first", config.Dir, flagRoot)
	}
	cfg, err := config.Load(flagRoot)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.Open(ctx, config.DatabasePath(flagRoot, cfg))
	if err != nil {
		return nil, nil, err
	}
	return cfg, s, nil
}
