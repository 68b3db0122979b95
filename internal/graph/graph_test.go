package graph

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneforge-ai/stoneforge/internal/store"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func taskElement(id string, status string, priority, complexity int, createdAt time.Time) *types.Element {
	md, _ := json.Marshal(map[string]interface{}{
		"status":     status,
		"priority":   priority,
		"complexity": complexity,
	})
	return &types.Element{
		ID:        id,
		Type:      types.ElementTask,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
		CreatedBy: "alice",
		Metadata:  json.RawMessage(md),
	}
}

func TestIsBlockedNoEdges(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	task := taskElement("el-a", "open", 1, 1, time.Now().UTC())
	require.NoError(t, s.Create(ctx, task))

	blocked, err := e.IsBlocked(ctx, "el-a")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlockedByActiveBlocker(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	a := taskElement("el-a", "open", 1, 1, time.Now().UTC())
	b := taskElement("el-b", "open", 1, 1, time.Now().UTC())
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	blocked, err := e.IsBlocked(ctx, "el-a")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestIsBlockedIgnoresClosedBlocker(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	a := taskElement("el-a", "open", 1, 1, time.Now().UTC())
	b := taskElement("el-b", "closed", 1, 1, time.Now().UTC())
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	blocked, err := e.IsBlocked(ctx, "el-a")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlockedIgnoresNonBlockingDependency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	a := taskElement("el-a", "open", 1, 1, time.Now().UTC())
	b := taskElement("el-b", "open", 1, 1, time.Now().UTC())
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepRelatesTo}, store.AddDependencyOptions{}))

	blocked, err := e.IsBlocked(ctx, "el-a")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestIsBlockedDanglingEdgeIsInactive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	a := taskElement("el-a", "open", 1, 1, time.Now().UTC())
	require.NoError(t, s.Create(ctx, a))
	// el-ghost never created; the edge dangles.
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-ghost", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	blocked, err := e.IsBlocked(ctx, "el-a")
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestGetReadyTasksSortOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	base := time.Now().UTC()
	low := taskElement("el-low", "open", 1, 5, base)
	high := taskElement("el-high", "open", 5, 5, base.Add(time.Second))
	tieEarlier := taskElement("el-tie-a", "open", 3, 2, base.Add(2*time.Second))
	tieLater := taskElement("el-tie-b", "open", 3, 2, base.Add(3*time.Second))

	for _, el := range []*types.Element{low, high, tieEarlier, tieLater} {
		require.NoError(t, s.Create(ctx, el))
	}

	ready, err := e.GetReadyTasks(ctx, 0, types.WorkFilter{})
	require.NoError(t, err)
	require.Len(t, ready, 4)

	ids := make([]string, len(ready))
	for i, el := range ready {
		ids[i] = el.ID
	}
	assert.Equal(t, []string{"el-high", "el-tie-a", "el-tie-b", "el-low"}, ids)
}

func TestGetReadyTasksExcludesBlockedAndDeferred(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	now := time.Now().UTC()
	open := taskElement("el-open", "open", 1, 1, now)
	deferred := taskElement("el-deferred", "deferred", 1, 1, now)
	blocked := taskElement("el-blocked", "open", 1, 1, now)
	blocker := taskElement("el-blocker", "open", 1, 1, now)

	for _, el := range []*types.Element{open, deferred, blocked, blocker} {
		require.NoError(t, s.Create(ctx, el))
	}
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-blocked", BlockerID: "el-blocker", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	ready, err := e.GetReadyTasks(ctx, 0, types.WorkFilter{})
	require.NoError(t, err)
	ids := make([]string, len(ready))
	for i, el := range ready {
		ids[i] = el.ID
	}
	assert.ElementsMatch(t, []string{"el-open", "el-blocker"}, ids)

	backlog, err := e.GetBacklogTasks(ctx, 0, types.WorkFilter{})
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, "el-blocked", backlog[0].ID)
}

func TestGetReadyTasksRespectsLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Create(ctx, taskElement(
			"el-"+string(rune('a'+i)), "open", 1, 1, now.Add(time.Duration(i)*time.Second))))
	}

	ready, err := e.GetReadyTasks(ctx, 2, types.WorkFilter{})
	require.NoError(t, err)
	assert.Len(t, ready, 2)
}

func TestDetectCycleDirect(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	now := time.Now().UTC()
	a := taskElement("el-a", "open", 1, 1, now)
	b := taskElement("el-b", "open", 1, 1, now)
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	path, err := e.DetectCycle(ctx, types.Dependency{BlockedID: "el-b", BlockerID: "el-a", Type: types.DepBlocks})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{"el-a", "el-b"}, path)
}

func TestDetectCycleThroughIntermediary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	now := time.Now().UTC()
	a := taskElement("el-a", "open", 1, 1, now)
	b := taskElement("el-b", "open", 1, 1, now)
	c := taskElement("el-c", "open", 1, 1, now)
	for _, el := range []*types.Element{a, b, c} {
		require.NoError(t, s.Create(ctx, el))
	}

	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, store.AddDependencyOptions{}))
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-b", BlockerID: "el-c", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	path, err := e.DetectCycle(ctx, types.Dependency{BlockedID: "el-c", BlockerID: "el-a", Type: types.DepBlocks})
	require.NoError(t, err)
	require.NotNil(t, path)
	assert.Equal(t, []string{"el-a", "el-b", "el-c"}, path)
}

func TestDetectCycleNoCycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	now := time.Now().UTC()
	a := taskElement("el-a", "open", 1, 1, now)
	b := taskElement("el-b", "open", 1, 1, now)
	c := taskElement("el-c", "open", 1, 1, now)
	for _, el := range []*types.Element{a, b, c} {
		require.NoError(t, s.Create(ctx, el))
	}
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, store.AddDependencyOptions{}))

	path, err := e.DetectCycle(ctx, types.Dependency{BlockedID: "el-c", BlockerID: "el-a", Type: types.DepBlocks})
	require.NoError(t, err)
	assert.Nil(t, path)
}

func TestDetectCycleNonBlockingTypeNeverReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := New(s)

	path, err := e.DetectCycle(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepMentions})
	require.NoError(t, err)
	assert.Nil(t, path)
}
