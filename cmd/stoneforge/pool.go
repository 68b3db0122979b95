package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/dispatch"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pool", Short: "Manage concurrency pools"}
	cmd.AddCommand(newPoolSetCmd(), newPoolListCmd())
	return cmd
}

func newPoolSetCmd() *cobra.Command {
	var maxSize, priority, maxSlots int
	var role, workerMode, stewardFocus string
	var enabled bool
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Create or update a pool with a single agent-type slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			value, ok, err := s.GetConfig(cmd.Context(), dispatch.PoolsConfigKey)
			if err != nil {
				return fail(err)
			}
			var pools []types.Pool
			if ok {
				pools, err = dispatch.DecodePools(value)
				if err != nil {
					return fail(err)
				}
			}

			spec := types.AgentTypeSpec{Role: types.AgentRole(role), WorkerMode: types.WorkerMode(workerMode), StewardFocus: types.StewardFocus(stewardFocus), Priority: priority}
			if maxSlots >= 0 {
				spec.MaxSlots = &maxSlots
			}
			pool := types.Pool{Name: args[0], MaxSize: maxSize, Enabled: enabled, AgentTypes: []types.AgentTypeSpec{spec}}
			if err := pool.Validate(); err != nil {
				return fail(err)
			}

			replaced := false
			for i, p := range pools {
				if p.Name == pool.Name {
					pools[i] = pool
					replaced = true
					break
				}
			}
			if !replaced {
				pools = append(pools, pool)
			}

			encoded, err := dispatch.EncodePools(pools)
			if err != nil {
				return fail(err)
			}
			if err := s.SetConfig(cmd.Context(), dispatch.PoolsConfigKey, encoded); err != nil {
				return fail(err)
			}
			return emit(cmd, pool, fmt.Sprintf("pool %s saved (maxSize=%d)", pool.Name, pool.MaxSize))
		},
	}
	cmd.Flags().IntVar(&maxSize, "max-size", 1, "pool-wide concurrency cap [1,1000]")
	cmd.Flags().StringVar(&role, "role", string(types.RoleWorker), "agent-type role: director|worker|steward")
	cmd.Flags().StringVar(&workerMode, "worker-mode", "", "agent-type worker mode (worker role only)")
	cmd.Flags().StringVar(&stewardFocus, "steward-focus", "", "agent-type steward focus (steward role only)")
	cmd.Flags().IntVar(&priority, "priority", 0, "agent-type priority, ranks contention for a slot")
	cmd.Flags().BoolVar(&enabled, "enabled", true, "whether the pool currently admits spawns")
	cmd.Flags().IntVar(&maxSlots, "max-slots", -1, "per-agent-type slot cap (-1 for unlimited)")
	return cmd
}

func newPoolListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			value, ok, err := s.GetConfig(cmd.Context(), dispatch.PoolsConfigKey)
			if err != nil {
				return fail(err)
			}
			var pools []types.Pool
			if ok {
				pools, err = dispatch.DecodePools(value)
				if err != nil {
					return fail(err)
				}
			}
			return emit(cmd, pools, fmt.Sprintf("%d pools", len(pools)))
		},
	}
	return cmd
}
