package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/graph"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func newDepCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dep", Short: "Manage dependency edges"}
	cmd.AddCommand(newDepAddCmd(), newDepRemoveCmd(), newDepCycleCmd())
	return cmd
}

func newDepAddCmd() *cobra.Command {
	var depType string
	var checkCycle bool
	cmd := &cobra.Command{
		Use:   "add <blockedId> <blockerId>",
		Short: "Add a dependency edge (blockedId depends on blockerId)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			edge := types.Dependency{BlockedID: args[0], BlockerID: args[1], Type: types.DependencyType(depType)}
			if err := s.AddDependency(cmd.Context(), edge, store.AddDependencyOptions{CheckCycle: checkCycle}); err != nil {
				return fail(err)
			}
			return emit(cmd, edge, fmt.Sprintf("%s blocked-by %s (%s)", edge.BlockedID, edge.BlockerID, edge.Type))
		},
	}
	cmd.Flags().StringVar(&depType, "type", string(types.DepBlocks), "dependency type: "+dependencyTypeList())
	cmd.Flags().BoolVar(&checkCycle, "check-cycle", false, "reject the edge if it would close a cycle")
	return cmd
}

func newDepRemoveCmd() *cobra.Command {
	var depType string
	cmd := &cobra.Command{
		Use:   "rm <blockedId> <blockerId>",
		Short: "Remove a dependency edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			edge := types.Dependency{BlockedID: args[0], BlockerID: args[1], Type: types.DependencyType(depType)}
			if err := s.RemoveDependency(cmd.Context(), edge); err != nil {
				return fail(err)
			}
			return emit(cmd, nil, "removed "+edge.Key())
		},
	}
	cmd.Flags().StringVar(&depType, "type", string(types.DepBlocks), "dependency type: "+dependencyTypeList())
	return cmd
}

func newDepCycleCmd() *cobra.Command {
	var depType string
	cmd := &cobra.Command{
		Use:   "cycle <blockedId> <blockerId>",
		Short: "Check whether adding this edge would close a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			edge := types.Dependency{BlockedID: args[0], BlockerID: args[1], Type: types.DependencyType(depType)}
			engine := graph.New(s)
			path, err := engine.DetectCycle(cmd.Context(), edge)
			if err != nil {
				return fail(err)
			}
			if path == nil {
				return emit(cmd, nil, "no cycle")
			}
			return emit(cmd, path, "cycle: "+strings.Join(path, " -> "))
		},
	}
	cmd.Flags().StringVar(&depType, "type", string(types.DepBlocks), "dependency type: "+dependencyTypeList())
	return cmd
}

func dependencyTypeList() string {
	types := []string{"blocks", "awaits", "parent-child", "relates-to", "mentions", "references"}
	return strings.Join(types, "|")
}
