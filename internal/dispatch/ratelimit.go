package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/store"
)

// RateLimitConfigKey is the config row the tracker's JSON-encoded state
// is persisted under, grounded on the teacher's single-row config
// convention (internal/storage/sqlite/config.go SetConfig/GetConfig).
const RateLimitConfigKey = "rateLimits"

// rateLimitEntry records when an executable's rate limit resets.
type rateLimitEntry struct {
	ResetsAt time.Time `json:"resetsAt"`
}

// RateLimitTracker tracks which executables (e.g. "claude", "gpt-4")
// are currently rate-limited, falling back across a configured chain.
// State mutation is serialized by a single mutex: the CAS-like
// "never downgrade to an earlier reset" rule is simplest to enforce
// under one in-process lock rather than a lock-free retry loop, since
// the tracker's hot path (getAvailableExecutable) is read-mostly.
type RateLimitTracker struct {
	mu      sync.Mutex
	store   *store.Store
	entries map[string]rateLimitEntry
}

// NewRateLimitTracker loads persisted state from store, dropping
// entries whose resetsAt has already passed and skipping malformed
// entries without failing the whole load, per spec.md §4.4.
func NewRateLimitTracker(ctx context.Context, s *store.Store) (*RateLimitTracker, error) {
	t := &RateLimitTracker{store: s, entries: make(map[string]rateLimitEntry)}

	value, ok, err := s.GetConfig(ctx, RateLimitConfigKey)
	if err != nil {
		return nil, err
	}
	if !ok || value == "" {
		return t, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		// Malformed persisted blob: start clean rather than throw.
		return t, nil
	}

	now := time.Now().UTC()
	for exec, entryRaw := range raw {
		var entry rateLimitEntry
		if err := json.Unmarshal(entryRaw, &entry); err != nil {
			continue
		}
		if !entry.ResetsAt.After(now) {
			continue
		}
		t.entries[exec] = entry
	}
	return t, nil
}

// MarkLimited upserts exec's resetsAt, never downgrading to an earlier
// time than what is already recorded.
func (t *RateLimitTracker) MarkLimited(ctx context.Context, exec string, resetsAt time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.entries[exec]; ok && existing.ResetsAt.After(resetsAt) {
		return nil
	}
	t.entries[exec] = rateLimitEntry{ResetsAt: resetsAt}
	return t.persistLocked(ctx)
}

// IsLimited reports whether exec is currently rate-limited.
func (t *RateLimitTracker) IsLimited(exec string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[exec]
	return ok && entry.ResetsAt.After(time.Now().UTC())
}

// GetAvailableExecutable returns the first member of chain that is not
// currently rate-limited, or ("", false) if every member is limited.
func (t *RateLimitTracker) GetAvailableExecutable(chain []string) (string, bool) {
	for _, exec := range chain {
		if !t.IsLimited(exec) {
			return exec, true
		}
	}
	return "", false
}

func (t *RateLimitTracker) persistLocked(ctx context.Context) error {
	// Drop expired entries on every persist so the stored blob never
	// grows unbounded across restarts.
	now := time.Now().UTC()
	for exec, entry := range t.entries {
		if !entry.ResetsAt.After(now) {
			delete(t.entries, exec)
		}
	}
	b, err := json.Marshal(t.entries)
	if err != nil {
		return err
	}
	return t.store.SetConfig(ctx, RateLimitConfigKey, string(b))
}
