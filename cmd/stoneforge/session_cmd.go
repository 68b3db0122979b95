package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// newSessionCmd exposes the persisted session ledger (store.Session*):
// list/show read the snapshot rows of the store's sessions table, which
// internal/session.Manager does not write (it keeps its state in
// memory); suspend and end record the
// administrative transitions spec.md §4.5's state machine allows.
// Driving a session's live provider stream is an in-process concern of
// internal/session.Manager, owned by whatever long-running service
// embeds the core — not a stateless CLI invocation.
func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Inspect and transition persisted agent sessions"}
	cmd.AddCommand(newSessionListCmd(), newSessionShowCmd(), newSessionSuspendCmd(), newSessionEndCmd())
	return cmd
}

func newSessionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <agentId>",
		Short: "List an agent's sessions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			sessions, err := s.ListSessionsByAgent(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return emit(cmd, sessions, fmt.Sprintf("%d sessions", len(sessions)))
		},
	}
	return cmd
}

func newSessionShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <sessionId>",
		Short: "Show a session's persisted snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			sess, err := s.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			return emit(cmd, sess, "")
		},
	}
	return cmd
}

func newSessionSuspendCmd() *cobra.Command {
	var providerSessionID string
	cmd := &cobra.Command{
		Use:   "suspend <sessionId>",
		Short: "Record a session as suspended (requires a captured provider session id)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			sess, err := s.GetSession(cmd.Context(), args[0])
			if err != nil {
				return fail(err)
			}
			effectiveProvider := sess.ProviderSessionID
			if providerSessionID != "" {
				effectiveProvider = providerSessionID
			}
			if effectiveProvider == "" {
				return fail(fmt.Errorf("session %s has no providerSessionId and none was given; suspend requires a resumable session", args[0]))
			}
			if err := s.UpdateSessionStatus(cmd.Context(), args[0], types.SessionSuspended, providerSessionID, nil); err != nil {
				return fail(err)
			}
			return emit(cmd, nil, "suspended "+args[0])
		},
	}
	cmd.Flags().StringVar(&providerSessionID, "provider-session-id", "", "provider session id, if not already captured")
	return cmd
}

func newSessionEndCmd() *cobra.Command {
	var failed bool
	cmd := &cobra.Command{
		Use:   "end <sessionId>",
		Short: "Record a session as ended (or failed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			status := types.SessionEnded
			if failed {
				status = types.SessionFailed
			}
			now := time.Now().UTC()
			if err := s.UpdateSessionStatus(cmd.Context(), args[0], status, "", &now); err != nil {
				return fail(err)
			}
			return emit(cmd, nil, string(status)+" "+args[0])
		},
	}
	cmd.Flags().BoolVar(&failed, "failed", false, "record as failed instead of ended")
	return cmd
}
