package sync

import (
	"context"
	"os"

	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// Exporter writes a Store's elements and dependencies to the workspace
// sync/ directory's JSONL pair, per spec.md §6's workspace layout.
type Exporter struct {
	store *store.Store
}

func NewExporter(s *store.Store) *Exporter {
	return &Exporter{store: s}
}

// ExportAll dumps every element (including tombstones) and every
// dependency edge to elementsPath/dependenciesPath, overwriting any
// existing content. Used for a full re-sync, as opposed to the
// incremental ExportDirty.
func (e *Exporter) ExportAll(ctx context.Context, elementsPath, dependenciesPath string) error {
	els, err := e.allElements(ctx)
	if err != nil {
		return err
	}
	deps, err := e.store.ListAllDependencies(ctx)
	if err != nil {
		return err
	}
	return writeBoth(elementsPath, els, dependenciesPath, deps)
}

// ExportDirty writes only the elements marked dirty since the last
// export, merged into the existing elements.jsonl content keyed by id,
// then clears the dirty queue once the write succeeds. Dependencies are
// always written in full, since they carry no dirty-tracking of their
// own. Grounded on the teacher's dirty-tracking-driven incremental
// export convention (internal/storage/sqlite/dirty.go).
func (e *Exporter) ExportDirty(ctx context.Context, elementsPath, dependenciesPath string) (int, error) {
	dirty, err := e.store.GetDirtyElements(ctx)
	if err != nil {
		return 0, err
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	existing, err := readExistingElements(elementsPath)
	if err != nil {
		return 0, err
	}
	byID := make(map[string]*types.Element, len(existing))
	var order []string
	for _, el := range existing {
		if _, ok := byID[el.ID]; !ok {
			order = append(order, el.ID)
		}
		byID[el.ID] = el
	}

	ids := make([]string, 0, len(dirty))
	for _, d := range dirty {
		el, err := e.store.Get(ctx, d.ElementID)
		if err != nil {
			return 0, err
		}
		if _, ok := byID[el.ID]; !ok {
			order = append(order, el.ID)
		}
		byID[el.ID] = el
		ids = append(ids, d.ElementID)
	}

	merged := make([]*types.Element, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}

	deps, err := e.store.ListAllDependencies(ctx)
	if err != nil {
		return 0, err
	}
	if err := writeBoth(elementsPath, merged, dependenciesPath, deps); err != nil {
		return 0, err
	}

	if err := e.store.ClearDirtyElements(ctx, ids); err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (e *Exporter) allElements(ctx context.Context) ([]*types.Element, error) {
	var all []*types.Element
	cursor := ""
	for {
		page, next, err := e.store.ListPaginated(ctx, store.ListFilter{Cursor: cursor, Limit: 500, IncludeTombs: true})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

func readExistingElements(path string) ([]*types.Element, error) {
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

func writeBoth(elementsPath string, els []*types.Element, dependenciesPath string, deps []types.Dependency) error {
	ef, err := os.Create(elementsPath) // #nosec G304 -- workspace-local sync file path
	if err != nil {
		return err
	}
	defer func() { _ = ef.Close() }()
	if err := WriteElementsJSONL(ef, els); err != nil {
		return err
	}

	df, err := os.Create(dependenciesPath) // #nosec G304 -- workspace-local sync file path
	if err != nil {
		return err
	}
	defer func() { _ = df.Close() }()
	return WriteDependenciesJSONL(df, deps)
}
