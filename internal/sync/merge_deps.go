package sync

import "github.com/stoneforge-ai/stoneforge/internal/types"

// MergeDependencies reconciles the local and remote dependency sets
// against a shared baseline, per spec.md §4.2's dependency merge
// algorithm. A direct generalization of the teacher's mergeDependencies
// (internal/merge/merge.go): edges present on both sides are kept
// (remote's copy, since edges of a given key carry no mutable payload
// beyond the key itself); an edge dropped by either side with a
// baseline witness is an authoritative removal; an edge present on only
// one side with no baseline witness is a genuine addition.
func MergeDependencies(local, remote, original []types.Dependency) []types.Dependency {
	localSet := keyedSet(local)
	remoteSet := keyedSet(remote)
	originalSet := keyedSet(original)

	seen := make(map[string]bool)
	var out []types.Dependency

	add := func(key string, edges map[string]types.Dependency) {
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, edges[key])
	}

	for key := range localSet {
		_, inRemote := remoteSet[key]
		_, inOriginal := originalSet[key]
		if inRemote {
			add(key, remoteSet)
			continue
		}
		if inOriginal {
			// Remote dropped an edge that existed at baseline: removal
			// is authoritative, never re-added from local's copy.
			continue
		}
		add(key, localSet)
	}

	for key := range remoteSet {
		if seen[key] {
			continue
		}
		_, inOriginal := originalSet[key]
		if inOriginal {
			// Local dropped an edge that existed at baseline.
			continue
		}
		add(key, remoteSet)
	}

	return out
}

func keyedSet(deps []types.Dependency) map[string]types.Dependency {
	out := make(map[string]types.Dependency, len(deps))
	for _, d := range deps {
		out[d.Key()] = d
	}
	return out
}
