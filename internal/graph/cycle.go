package graph

import (
	"context"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// DetectCycle performs a DFS over the blocking subgraph starting from
// candidate.BlockerID, looking for a path back to candidate.BlockedID
// that inserting candidate would close into a cycle. It returns the
// cycle path (candidate.BlockerID ... candidate.BlockedID) or nil if
// inserting candidate would not create one. Per spec.md §4.3, cycle
// detection is never run implicitly — callers (the CLI, L4 dispatch,
// or store.AddDependency with CheckCycle set) decide when to call it.
func (e *Engine) DetectCycle(ctx context.Context, candidate types.Dependency) ([]string, error) {
	if !candidate.Type.IsBlocking() {
		return nil, nil
	}

	visited := map[string]bool{}
	var path []string

	var dfs func(node string) ([]string, error)
	dfs = func(node string) ([]string, error) {
		if node == candidate.BlockedID {
			return append(append([]string{}, path...), node), nil
		}
		if visited[node] {
			return nil, nil
		}
		visited[node] = true
		path = append(path, node)
		defer func() { path = path[:len(path)-1] }()

		edges, err := e.store.GetDependencies(ctx, node, blockingTypes)
		if err != nil {
			return nil, err
		}
		for _, edge := range edges {
			cycle, err := dfs(edge.BlockerID)
			if err != nil {
				return nil, err
			}
			if cycle != nil {
				return cycle, nil
			}
		}
		return nil, nil
	}

	return dfs(candidate.BlockerID)
}
