package sync

import (
	"context"
	"os"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// DefaultTombstoneTTL is the default hard-removal grace period for
// tombstones, per spec.md §3 ("default 30 days").
const DefaultTombstoneTTL = 30 * 24 * time.Hour

// Importer applies an incoming elements.jsonl/dependencies.jsonl pair
// to a Store, merging each record against local state and recording
// conflicts to the journal.
type Importer struct {
	store *store.Store
	ttl   time.Duration
}

func NewImporter(s *store.Store, ttl time.Duration) *Importer {
	if ttl <= 0 {
		ttl = DefaultTombstoneTTL
	}
	return &Importer{store: s, ttl: ttl}
}

// Result summarizes one Import call.
type Result struct {
	ElementsCreated int
	ElementsMerged  int
	Conflicts       []*ConflictRecord
	DependenciesSet int
}

// Import reads elementsPath and dependenciesPath, merges each record
// into the store (per-element two-way merge; dependencies merged
// three-way against originalDependenciesPath, which may be empty on a
// first sync), appends to the conflict journal at conflictsPath, and
// returns a summary. Grounded on spec.md §4.2 "Import applies merge per
// record, writes the conflict journal, and reindexes derived views" —
// reindexing here is implicit: L3's blocked/ready views are computed
// from the store on every query (nothing is cached), so they see
// imported changes directly; every store.Update/Create call also marks
// the touched element dirty for the next export.
func (im *Importer) Import(ctx context.Context, elementsPath, dependenciesPath, originalDependenciesPath, conflictsPath string) (*Result, error) {
	result := &Result{}

	incoming, err := readIncomingElements(elementsPath)
	if err != nil {
		return nil, err
	}

	for _, remote := range incoming {
		local, err := im.store.Get(ctx, remote.ID)
		if errs.Is(err, errs.KindNotFound) {
			if err := im.store.Create(ctx, remote); err != nil {
				return nil, err
			}
			result.ElementsCreated++
			continue
		}
		if err != nil {
			return nil, err
		}

		merged, resolution, conflict, err := Merge(local, remote, im.ttl)
		if err != nil {
			return nil, err
		}
		if resolution != ResolutionIdentical {
			result.Conflicts = append(result.Conflicts, conflict)
			result.ElementsMerged++
			patch := map[string]interface{}{
				"tags":     merged.Tags,
				"metadata": merged.Metadata,
			}
			if merged.DeletedAt != nil {
				patch["deletedAt"] = *merged.DeletedAt
			} else {
				patch["deletedAt"] = nil
			}
			if err := im.store.Update(ctx, remote.ID, patch, "sync-import"); err != nil {
				return nil, err
			}
		}
	}

	if err := im.importDependencies(ctx, dependenciesPath, originalDependenciesPath, result); err != nil {
		return nil, err
	}

	if len(result.Conflicts) > 0 {
		if err := appendConflicts(conflictsPath, result.Conflicts); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (im *Importer) importDependencies(ctx context.Context, dependenciesPath, originalPath string, result *Result) error {
	remote, err := readIncomingDependencies(dependenciesPath)
	if err != nil {
		return err
	}
	local, err := im.store.ListAllDependencies(ctx)
	if err != nil {
		return err
	}
	var original []types.Dependency
	if originalPath != "" {
		original, err = readIncomingDependencies(originalPath)
		if err != nil {
			return err
		}
	}

	merged := MergeDependencies(local, remote, original)
	mergedSet := keyedSet(merged)
	localSet := keyedSet(local)

	for key, edge := range mergedSet {
		if _, ok := localSet[key]; !ok {
			if err := im.store.AddDependency(ctx, edge, store.AddDependencyOptions{}); err != nil {
				return err
			}
		}
	}
	for key, edge := range localSet {
		if _, ok := mergedSet[key]; !ok {
			if err := im.store.RemoveDependency(ctx, edge); err != nil {
				return err
			}
		}
	}

	result.DependenciesSet = len(merged)
	return nil
}

func readIncomingElements(path string) ([]*types.Element, error) {
	f, err := os.Open(path) // #nosec G304 -- workspace-local sync file path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadElementsJSONL(f)
}

func readIncomingDependencies(path string) ([]types.Dependency, error) {
	f, err := os.Open(path) // #nosec G304 -- workspace-local sync file path
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadDependenciesJSONL(f)
}

func appendConflicts(path string, conflicts []*ConflictRecord) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G304 -- workspace-local sync file path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return WriteConflictsJSONL(f, conflicts)
}
