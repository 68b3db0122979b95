package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/dispatch"
)

func newDispatchCmd() *cobra.Command {
	var branch, worktree, sessionID string
	var markStarted bool
	cmd := &cobra.Command{
		Use:   "dispatch <taskId> <agentId>",
		Short: "Assign a task to an agent and send its notification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			d := dispatch.New(s, dispatch.Config{}, nil)
			res, err := d.Dispatch(cmd.Context(), args[0], args[1], dispatch.DispatchOptions{
				Branch: branch, Worktree: worktree, SessionID: sessionID, MarkAsStarted: markStarted,
			})
			if err != nil {
				return fail(err)
			}
			return emit(cmd, res, fmt.Sprintf("dispatched %s to %s (new=%v)", args[0], args[1], res.IsNewAssignment))
		},
	}
	cmd.Flags().StringVar(&branch, "branch", "", "override the derived branch name")
	cmd.Flags().StringVar(&worktree, "worktree", "", "override the derived worktree path")
	cmd.Flags().StringVar(&sessionID, "session", "", "bind an existing session id to this assignment")
	cmd.Flags().BoolVar(&markStarted, "start", false, "mark the task in_progress immediately")
	return cmd
}
