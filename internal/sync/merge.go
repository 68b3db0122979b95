// Package sync implements the L2 sync & merge layer: deterministic
// content hashing, the LWW+tombstone element merge, dependency 3-way
// merge, and JSONL export/import with a conflict journal. Grounded on
// the teacher's internal/merge package (vendored from neongreen/mono,
// MIT-licensed), generalized from Issue to Element and from a 3-way
// issue merge to the spec's 2-way (local/remote) element merge.
package sync

import (
	"sort"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/idgen"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// Resolution records how Merge resolved a non-identical pair, per
// spec.md §4.2 step 5-6.
type Resolution string

const (
	ResolutionIdentical  Resolution = "IDENTICAL"
	ResolutionLocalWins  Resolution = "LOCAL_WINS"
	ResolutionRemoteWins Resolution = "REMOTE_WINS"
	ResolutionTagsMerged Resolution = "TAGS_MERGED"
)

// ConflictRecord is emitted whenever the two sides' content hashes
// differ, regardless of resolution.
type ConflictRecord struct {
	ID              string     `json:"id"`
	LocalHash       string     `json:"localHash"`
	RemoteHash      string     `json:"remoteHash"`
	Resolution      Resolution `json:"resolution"`
	LocalUpdatedAt  time.Time  `json:"localUpdatedAt"`
	RemoteUpdatedAt time.Time  `json:"remoteUpdatedAt"`
	ResolvedAt      time.Time  `json:"resolvedAt"`
}

// tombstoneState classifies one side of a merge from its deletedAt and
// the tombstone TTL, per spec.md §4.2 step 2.
type tombstoneState int

const (
	stateLive tombstoneState = iota
	stateFreshTombstone
	stateExpiredTombstone
)

func classify(el *types.Element, ttl time.Duration) tombstoneState {
	if el.DeletedAt == nil {
		return stateLive
	}
	if time.Since(*el.DeletedAt) <= ttl {
		return stateFreshTombstone
	}
	return stateExpiredTombstone
}

// closedStatusValues is the set of metadata "status" values that win
// closed-dominance precedence, generalized to every element type per
// DESIGN.md open-question decision #2 (the teacher's mergeStatus
// applies the same rule uniformly to every Issue).
var closedStatusValues = map[string]bool{
	string(types.TaskClosed): true,
	"tombstone":              true,
}

func isClosed(el *types.Element) bool {
	var status string
	if ok, _ := el.MetadataValue("status", &status); ok {
		return closedStatusValues[status]
	}
	return false
}

// Merge resolves local against remote per spec.md §4.2's six-step
// algorithm and returns the merged element, its resolution, and (unless
// the two sides were identical) a conflict record. local and remote are
// never mutated; the returned element is a new value.
func Merge(local, remote *types.Element, ttl time.Duration) (*types.Element, Resolution, *ConflictRecord, error) {
	hl, err := idgen.ContentHash(local)
	if err != nil {
		return nil, "", nil, err
	}
	hr, err := idgen.ContentHash(remote)
	if err != nil {
		return nil, "", nil, err
	}

	if hl == hr {
		merged := *local
		return &merged, ResolutionIdentical, nil, nil
	}

	winner, resolution := pickWinner(local, remote, ttl)

	union := unionTags(local.Tags, remote.Tags)
	if !tagsEqual(union, winner.Tags) {
		resolution = ResolutionTagsMerged
	}

	merged := *winner
	merged.Tags = union

	conflict := &ConflictRecord{
		ID:              local.ID,
		LocalHash:       hl,
		RemoteHash:      hr,
		Resolution:      resolution,
		LocalUpdatedAt:  local.UpdatedAt,
		RemoteUpdatedAt: remote.UpdatedAt,
		ResolvedAt:      time.Now().UTC(),
	}
	return &merged, resolution, conflict, nil
}

// pickWinner applies steps 3-5 (tombstone dominance, closed-status
// precedence, then LWW with ties favoring local) to decide which side's
// value wins before tag union is applied.
func pickWinner(local, remote *types.Element, ttl time.Duration) (*types.Element, Resolution) {
	ls, rs := classify(local, ttl), classify(remote, ttl)

	switch {
	case ls == stateFreshTombstone && rs == stateLive:
		return local, ResolutionLocalWins
	case rs == stateFreshTombstone && ls == stateLive:
		return remote, ResolutionRemoteWins
	case ls == stateLive && rs == stateExpiredTombstone:
		return local, ResolutionLocalWins
	case rs == stateLive && ls == stateExpiredTombstone:
		return remote, ResolutionRemoteWins
	}

	localClosed, remoteClosed := isClosed(local), isClosed(remote)
	if localClosed != remoteClosed {
		if localClosed {
			return local, ResolutionLocalWins
		}
		return remote, ResolutionRemoteWins
	}

	if remote.UpdatedAt.After(local.UpdatedAt) {
		return remote, ResolutionRemoteWins
	}
	return local, ResolutionLocalWins
}

func unionTags(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func tagsEqual(a, b []string) bool {
	sa := append([]string{}, a...)
	sb := append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
