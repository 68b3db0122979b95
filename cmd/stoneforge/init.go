package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/config"
	"github.com/stoneforge-ai/stoneforge/internal/store"
)

const gitignoreContents = "*.db*\n"

func newInitCmd() *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the .stoneforge workspace layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			dotDir := filepath.Join(flagRoot, config.Dir)
			for _, sub := range []string{"sync", "playbooks", ".worktrees"} {
				if err := os.MkdirAll(filepath.Join(dotDir, sub), 0o755); err != nil {
					return fail(err)
				}
			}
			if err := os.WriteFile(filepath.Join(dotDir, ".gitignore"), []byte(gitignoreContents), 0o644); err != nil {
				return fail(err)
			}

			cfg := config.Default()
			if actor != "" {
				cfg.Actor = actor
			}
			if err := config.Save(flagRoot, cfg); err != nil {
				return fail(err)
			}

			s, err := store.Open(cmd.Context(), config.DatabasePath(flagRoot, cfg))
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			return emit(cmd, map[string]string{"workspace": dotDir}, "initialized workspace at "+dotDir)
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor identity recorded in config.yaml (default: local)")
	return cmd
}
