package sync

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// WriteElementsJSONL writes one JSON object per line for each element in
// els, in order, with no trailing blank line — the teacher's
// readIssues/Merge3Way output convention (internal/merge/merge.go).
func WriteElementsJSONL(w io.Writer, els []*types.Element) error {
	bw := bufio.NewWriter(w)
	for _, el := range els {
		line, err := json.Marshal(el)
		if err != nil {
			return fmt.Errorf("marshal element %s: %w", el.ID, err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadElementsJSONL reads one Element per non-empty line. Line order
// carries no semantic meaning; merge is commutative (spec.md §6).
func ReadElementsJSONL(r io.Reader) ([]*types.Element, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var out []*types.Element
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var el types.Element
		if err := json.Unmarshal([]byte(line), &el); err != nil {
			return nil, fmt.Errorf("decode element line: %w", err)
		}
		out = append(out, &el)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteDependenciesJSONL writes one JSON object per line for each edge.
func WriteDependenciesJSONL(w io.Writer, deps []types.Dependency) error {
	bw := bufio.NewWriter(w)
	for _, d := range deps {
		line, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal dependency %s: %w", d.Key(), err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadDependenciesJSONL reads one Dependency per non-empty line.
func ReadDependenciesJSONL(r io.Reader) ([]types.Dependency, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	var out []types.Dependency
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		var d types.Dependency
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			return nil, fmt.Errorf("decode dependency line: %w", err)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteConflictsJSONL appends the conflict journal, one record per
// line, matching the elements/dependencies JSONL convention.
func WriteConflictsJSONL(w io.Writer, conflicts []*ConflictRecord) error {
	bw := bufio.NewWriter(w)
	for _, c := range conflicts {
		line, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal conflict %s: %w", c.ID, err)
		}
		if _, err := bw.Write(line); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}
