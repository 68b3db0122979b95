package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stoneforge-ai/stoneforge/internal/graph"
	"github.com/stoneforge-ai/stoneforge/internal/idgen"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// processLocalIndex disambiguates elements minted within the same
// process in the same nanosecond, the monotonicIndex idgen.GenerateRootID
// expects.
var processLocalIndex int64

func nextIndex() int64 {
	processLocalIndex++
	return processLocalIndex
}

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "task", Short: "Create and query task elements"}
	cmd.AddCommand(newTaskCreateCmd(), newTaskShowCmd(), newTaskListCmd(), newTaskReadyCmd(), newTaskBacklogCmd())
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var title string
	var priority, complexity int
	var tags []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			now := time.Now().UTC()
			meta, err := json.Marshal(map[string]interface{}{
				"title":      title,
				"status":     string(types.TaskOpen),
				"priority":   priority,
				"complexity": complexity,
			})
			if err != nil {
				return fail(err)
			}
			el := &types.Element{
				ID:        idgen.GenerateRootID(string(types.ElementTask), cfg.Actor, now, nextIndex()),
				Type:      types.ElementTask,
				CreatedAt: now,
				UpdatedAt: now,
				CreatedBy: cfg.Actor,
				Tags:      tags,
				Metadata:  meta,
			}
			if err := s.Create(cmd.Context(), el); err != nil {
				return fail(err)
			}
			return emit(cmd, el, "created task "+el.ID)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().IntVar(&priority, "priority", 0, "task priority (higher dispatches first)")
	cmd.Flags().IntVar(&complexity, "complexity", 0, "task complexity (lower dispatches first among equal priority)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single element by id",
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

func newTaskListCmd() *cobra.Command {
	var cursor string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List task elements, paginated",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			els, next, err := s.ListPaginated(cmd.Context(), store.ListFilter{
				Type: types.ElementTask, Cursor: cursor, Limit: limit,
			})
			if err != nil {
				return fail(err)
			}
			return emit(cmd, map[string]interface{}{"tasks": els, "nextCursor": next}, fmt.Sprintf("%d tasks", len(els)))
		},
	}
	cmd.Flags().StringVar(&cursor, "cursor", "", "pagination cursor")
	cmd.Flags().IntVar(&limit, "limit", 100, "page size")
	return cmd
}

func readyFilter(cmd *cobra.Command) (limit int, filter types.WorkFilter) {
	labels, _ := cmd.Flags().GetStringSlice("label")
	labelsAny, _ := cmd.Flags().GetStringSlice("label-any")
	assignee, _ := cmd.Flags().GetString("assignee")
	unassigned, _ := cmd.Flags().GetBool("unassigned")
	limit, _ = cmd.Flags().GetInt("limit")

	filter = types.WorkFilter{Labels: labels, LabelsAny: labelsAny, Unassigned: unassigned, Limit: limit}
	if assignee != "" {
		filter.Assignee = &assignee
	}
	return limit, filter
}

func newTaskReadyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ready",
		Short: "List ready tasks (open, not blocked, not deferred)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			limit, filter := readyFilter(cmd)
			engine := graph.New(s)
			tasks, err := engine.GetReadyTasks(cmd.Context(), limit, filter)
			if err != nil {
				return fail(err)
			}
			return emit(cmd, tasks, fmt.Sprintf("%d ready tasks", len(tasks)))
		},
	}
	addWorkFilterFlags(cmd)
	return cmd
}

func newTaskBacklogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backlog",
		Short: "List backlog tasks (open and blocked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, s, err := openWorkspace(cmd.Context())
			if err != nil {
				return fail(err)
			}
			defer func() { _ = s.Close() }()

			limit, filter := readyFilter(cmd)
			engine := graph.New(s)
			tasks, err := engine.GetBacklogTasks(cmd.Context(), limit, filter)
			if err != nil {
				return fail(err)
			}
			return emit(cmd, tasks, fmt.Sprintf("%d backlog tasks", len(tasks)))
		},
	}
	addWorkFilterFlags(cmd)
	return cmd
}

func addWorkFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 50, "max results")
	cmd.Flags().String("assignee", "", "filter by assignee")
	cmd.Flags().Bool("unassigned", false, "only unassigned tasks")
	cmd.Flags().StringSlice("label", nil, "require all of these tags (repeatable)")
	cmd.Flags().StringSlice("label-any", nil, "require any of these tags (repeatable)")
}
