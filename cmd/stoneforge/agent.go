package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/idgen"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "agent", Short: "Manage agent entities"}
	cmd.AddCommand(newAgentCreateCmd(), newAgentShowCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	var name, role, workerMode, stewardFocus, channelID, executable string
	var cronSchedule, eventName string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent (director, worker, or steward)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			meta := types.AgentMeta{
				Role:         types.AgentRole(role),
				WorkerMode:   types.WorkerMode(workerMode),
				StewardFocus: types.StewardFocus(stewardFocus),
				ChannelID:    channelID,
				Executable:   executable,
			}
			if cronSchedule != "" {
				meta.Triggers = append(meta.Triggers, types.Trigger{Kind: types.TriggerCron, Schedule: cronSchedule})
			}
			if eventName != "" {
				meta.Triggers = append(meta.Triggers, types.Trigger{Kind: types.TriggerEvent, Event: eventName})
			}
			if err := meta.Validate(); err != nil {
				return fail(err)
			}

			now := time.Now().UTC()
			metaJSON, err := json.Marshal(map[string]interface{}{
				"name":         name,
				"role":         meta.Role,
				"workerMode":   meta.WorkerMode,
				"stewardFocus": meta.StewardFocus,
				"triggers":     meta.Triggers,
				"channelId":    meta.ChannelID,
				"executable":   meta.Executable,
			})
			if err != nil {
				return fail(err)
			}
			el := &types.Element{
				ID:        idgen.GenerateRootID(string(types.ElementEntity), cfg.Actor, now, nextIndex()),
				Type:      types.ElementEntity,
				CreatedAt: now,
				UpdatedAt: now,
				CreatedBy: cfg.Actor,
				Metadata:  metaJSON,
			}
			if err := s.Create(cmd.Context(), el); err != nil {
				return fail(err)
			}
			return emit(cmd, el, fmt.Sprintf("created agent %s (%s)", el.ID, role))
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", "", "director|worker|steward")
	cmd.Flags().StringVar(&workerMode, "worker-mode", "", "ephemeral|persistent (workers only)")
	cmd.Flags().StringVar(&stewardFocus, "steward-focus", "", "merge|docs|custom (stewards only)")
	cmd.Flags().StringVar(&channelID, "channel", "", "channel element id dispatch notifications go to")
	cmd.Flags().StringVar(&executable, "executable", "", "provider executable, e.g. claude, gpt-4")
	cmd.Flags().StringVar(&cronSchedule, "cron", "", "cron trigger expression, UTC (stewards only)")
	cmd.Flags().StringVar(&eventName, "event", "", "event-bus trigger name (stewards only)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newAgentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an agent element by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			el, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return emit(cmd, el, "")
		},
	}
	return cmd
}
