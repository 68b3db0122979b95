// Package graph implements the L3 dependency & task engine: the
// computed `blocked` predicate, ready/backlog queries, and explicit
// cycle detection over the blocking subgraph. Grounded on the teacher's
// internal/storage/sqlite/ready.go (GetReadyWork's WHERE-clause
// composition and sort-policy shape) adapted from Issue to Element and
// from a SQL-cached blocked flag to the spec's "computed, never stored"
// pure predicate.
package graph

import (
	"context"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// blockingTypes is the subset of dependency types that participate in
// the blocked computation and in cycle detection.
var blockingTypes = []types.DependencyType{types.DepBlocks, types.DepAwaits, types.DepParentChild}

// Engine computes derived task-graph state (blocked status, ready and
// backlog queues, cycles) over a Store's elements and dependencies.
type Engine struct {
	store *store.Store
}

func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// closedStatusValues mirrors types.ClosedStatuses plus the tombstone
// sentinel, the same closed-dominance set L2 Sync uses, kept as a
// private copy so L3 has no import dependency on L2.
var closedStatusValues = map[string]bool{
	string(types.TaskClosed): true,
	"tombstone":              true,
}

func isActiveBlocker(el *types.Element) bool {
	if el.IsTombstone() {
		return false
	}
	var status string
	if ok, _ := el.MetadataValue("status", &status); ok && closedStatusValues[status] {
		return false
	}
	return true
}

// IsBlocked reports whether taskID has at least one active blocking
// dependency naming it as the blocked side, per spec.md §3 ("A task is
// blocked iff at least one active (non-closed, non-tombstoned) blocking
// edge names it as blockedId"). A dangling edge pointing at a since-
// deleted blocker element is treated as inactive rather than an error.
func (e *Engine) IsBlocked(ctx context.Context, taskID string) (bool, error) {
	edges, err := e.store.GetDependencies(ctx, taskID, blockingTypes)
	if err != nil {
		return false, err
	}
	for _, edge := range edges {
		blocker, err := e.store.Get(ctx, edge.BlockerID)
		if errs.Is(err, errs.KindNotFound) {
			continue
		}
		if err != nil {
			return false, err
		}
		if isActiveBlocker(blocker) {
			return true, nil
		}
	}
	return false, nil
}
