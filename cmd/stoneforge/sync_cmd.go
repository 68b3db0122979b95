package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/config"
	"github.com/stoneforge-ai/stoneforge/internal/sync"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sync", Short: "Export and import the JSONL sync bundle"}
	cmd.AddCommand(newSyncExportCmd(), newSyncImportCmd())
	return cmd
}

func syncPaths(cfg *config.Config) (elements, dependencies, originalDependencies, conflicts string) {
	elements = filepath.Join(flagRoot, cfg.Sync.ElementsFile)
	dependencies = filepath.Join(flagRoot, cfg.Sync.DependenciesFile)
	originalDependencies = dependencies + ".orig"
	conflicts = filepath.Join(flagRoot, config.Dir, "sync", "conflicts.jsonl")
	return
}

func newSyncExportCmd() *cobra.Command {
	var dirtyOnly bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write elements.jsonl and dependencies.jsonl",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			elements, dependencies, _, _ := syncPaths(cfg)
			exporter := sync.NewExporter(s)
			if dirtyOnly {
				n, err := exporter.ExportDirty(cmd.Context(), elements, dependencies)
				if err != nil {
					return fail(err)
				}
				return emit(cmd, map[string]int{"exported": n}, fmt.Sprintf("exported %d dirty elements", n))
			}
			if err := exporter.ExportAll(cmd.Context(), elements, dependencies); err != nil {
				return fail(err)
			}
			return emit(cmd, nil, "exported full sync bundle")
		},
	}
	cmd.Flags().BoolVar(&dirtyOnly, "dirty", true, "export only elements touched since the last export")
	return cmd
}

func newSyncImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge elements.jsonl and dependencies.jsonl into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			elements, dependencies, originalDependencies, conflicts := syncPaths(cfg)
			importer := sync.NewImporter(s, 0)
			result, err := importer.Import(cmd.Context(), elements, dependencies, originalDependencies, conflicts)
			if err != nil {
				return fail(err)
			}
			return emit(cmd, result, fmt.Sprintf(
				"imported: %d created, %d merged, %d conflicts, %d dependencies",
				result.ElementsCreated, result.ElementsMerged, len(result.Conflicts), result.DependenciesSet,
			))
		},
	}
	return cmd
}
