package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/session"
	"github.com/stoneforge-ai/stoneforge/internal/steward"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func newStewardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "steward", Short: "Run and inspect scheduled stewards"}
	cmd.AddCommand(newStewardRunCmd(), newStewardHistoryCmd())
	return cmd
}

func newStewardRunCmd() *cobra.Command {
	var triggerKind, schedule, event string
	cmd := &cobra.Command{
		Use:   "run <agentId>",
		Short: "Execute a steward's registered executor once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			sched := steward.New(s, nil)
			mergeSvc := steward.NewMergeStewardService(s)
			sched.RegisterExecutor(types.FocusMerge, steward.MergeExecutor(mergeSvc))
			mgr := session.NewManager(session.NewAnthropicHeadlessFactory(os.Getenv("ANTHROPIC_API_KEY"), ""), nil)
			sched.RegisterExecutor(types.FocusDocs, steward.DocsExecutor(mgr, flagRoot))

			trigger := types.Trigger{Kind: types.TriggerKind(triggerKind), Schedule: schedule, Event: event}
			result, err := sched.ExecuteSteward(cmd.Context(), args[0], trigger)
			if err != nil {
				return fail(err)
			}
			if !result.Success {
				return fail(fmt.Errorf("steward run failed: %s", result.Error))
			}
			return emit(cmd, result, fmt.Sprintf("steward %s ran in %dms", args[0], result.DurationMs))
		},
	}
	cmd.Flags().StringVar(&triggerKind, "trigger", string(types.TriggerCron), "cron|event")
	cmd.Flags().StringVar(&schedule, "schedule", "manual", "cron schedule recorded against this run")
	cmd.Flags().StringVar(&event, "event", "", "event name recorded against this run")
	return cmd
}

func newStewardHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <agentId>",
		Short: "Show a steward's execution history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			sched := steward.New(s, nil)
			runs, err := sched.History(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return emit(cmd, runs, fmt.Sprintf("%d runs", len(runs)))
		},
	}
	return cmd
}
