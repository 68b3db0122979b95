package types

// TaskStatus is the lifecycle status of a task element, held in its
// metadata (not a top-level Element field, since only tasks use it).
type TaskStatus string

const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskClosed     TaskStatus = "closed"
	TaskDeferred   TaskStatus = "deferred"
)

// ClosedStatuses is the set of statuses that win closed-dominance
// precedence during merge (spec.md §4.2 step 4).
var ClosedStatuses = map[TaskStatus]bool{
	TaskClosed: true,
}

// SortPolicy governs the ordering of getReadyTasks results.
type SortPolicy string

const (
	// SortPolicyDefault orders by (priority desc, complexity asc,
	// createdAt asc), per spec.md §4.3.
	SortPolicyDefault SortPolicy = "default"
)

// WorkFilter narrows a ready/backlog query.
type WorkFilter struct {
	Status     TaskStatus
	Priority   *int
	Assignee   *string
	Unassigned bool
	Labels     []string
	LabelsAny  []string
	Limit      int
	SortPolicy SortPolicy
}
