package graph

import (
	"context"
	"sort"

	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// taskMeta is the subset of a task element's metadata the ready/backlog
// sort and filter logic reads.
type taskMeta struct {
	el         *types.Element
	status     types.TaskStatus
	priority   int
	complexity int
	assignee   string
	labels     []string
}

func loadTaskMeta(el *types.Element) taskMeta {
	tm := taskMeta{el: el}
	var s string
	if ok, _ := el.MetadataValue("status", &s); ok {
		tm.status = types.TaskStatus(s)
	}
	var p int
	if ok, _ := el.MetadataValue("priority", &p); ok {
		tm.priority = p
	}
	var c int
	if ok, _ := el.MetadataValue("complexity", &c); ok {
		tm.complexity = c
	}
	var a string
	if ok, _ := el.MetadataValue("assignee", &a); ok {
		tm.assignee = a
	}
	tm.labels = el.Tags
	return tm
}

func matchesFilter(tm taskMeta, filter types.WorkFilter) bool {
	wantStatus := filter.Status
	if wantStatus == "" {
		wantStatus = types.TaskOpen
	}
	if tm.status != wantStatus {
		return false
	}
	if filter.Priority != nil && tm.priority != *filter.Priority {
		return false
	}
	if filter.Unassigned {
		if tm.assignee != "" {
			return false
		}
	} else if filter.Assignee != nil && tm.assignee != *filter.Assignee {
		return false
	}
	if len(filter.Labels) > 0 && !hasAllLabels(tm.labels, filter.Labels) {
		return false
	}
	if len(filter.LabelsAny) > 0 && !hasAnyLabel(tm.labels, filter.LabelsAny) {
		return false
	}
	return true
}

func hasAllLabels(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, l := range have {
		set[l] = true
	}
	for _, w := range want {
		if !set[w] {
			return false
		}
	}
	return true
}

func hasAnyLabel(have, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, l := range have {
		set[l] = true
	}
	for _, w := range want {
		if set[w] {
			return true
		}
	}
	return false
}

// sortByDefaultPolicy orders by (priority desc, complexity asc,
// createdAt asc), per spec.md §4.3.
func sortByDefaultPolicy(tasks []taskMeta) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.priority != b.priority {
			return a.priority > b.priority
		}
		if a.complexity != b.complexity {
			return a.complexity < b.complexity
		}
		return a.el.CreatedAt.Before(b.el.CreatedAt)
	})
}

// GetReadyTasks returns open, non-deferred, non-blocked tasks matching
// filter, sorted by (priority desc, complexity asc, createdAt asc) and
// capped at limit (0 means unlimited).
func (e *Engine) GetReadyTasks(ctx context.Context, limit int, filter types.WorkFilter) ([]*types.Element, error) {
	return e.queryTasks(ctx, limit, filter, false)
}

// GetBacklogTasks returns tasks matching filter that are currently
// blocked, the complement of GetReadyTasks — the L3 "backlog query"
// spec.md §4.1 lists alongside ready-task dispatch.
func (e *Engine) GetBacklogTasks(ctx context.Context, limit int, filter types.WorkFilter) ([]*types.Element, error) {
	return e.queryTasks(ctx, limit, filter, true)
}

func (e *Engine) queryTasks(ctx context.Context, limit int, filter types.WorkFilter, wantBlocked bool) ([]*types.Element, error) {
	var candidates []taskMeta
	cursor := ""
	for {
		page, next, err := e.store.ListPaginated(ctx, store.ListFilter{Type: types.ElementTask, Cursor: cursor, Limit: 500})
		if err != nil {
			return nil, err
		}
		for _, el := range page {
			tm := loadTaskMeta(el)
			if tm.status == types.TaskDeferred && !wantBlocked {
				continue
			}
			if !matchesFilter(tm, filter) {
				continue
			}
			blocked, err := e.IsBlocked(ctx, el.ID)
			if err != nil {
				return nil, err
			}
			if blocked != wantBlocked {
				continue
			}
			candidates = append(candidates, tm)
		}
		if next == "" {
			break
		}
		cursor = next
	}

	sortByDefaultPolicy(candidates)

	if limit <= 0 {
		limit = len(candidates)
	}
	out := make([]*types.Element, 0, limit)
	for i, tm := range candidates {
		if i >= limit {
			break
		}
		out = append(out, tm.el)
	}
	return out, nil
}
