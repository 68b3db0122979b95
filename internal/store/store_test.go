package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestElement(id string) *types.Element {
	now := time.Now().UTC()
	return &types.Element{
		ID:        id,
		Type:      types.ElementTask,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: "alice",
		Tags:      []string{"x"},
	}
}

func TestCreateAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	el := newTestElement("el-abc123")
	require.NoError(t, s.Create(ctx, el))

	got, err := s.Get(ctx, "el-abc123")
	require.NoError(t, err)
	assert.Equal(t, el.ID, got.ID)
	assert.Equal(t, el.Type, got.Type)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestCreateAlreadyExists(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	el := newTestElement("el-dup")
	require.NoError(t, s.Create(ctx, el))
	err := s.Create(ctx, el)
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeAlreadyExists))
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "el-missing")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestUpdateImmutableFieldRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	el := newTestElement("el-imm")
	require.NoError(t, s.Create(ctx, el))

	err := s.Update(ctx, "el-imm", map[string]interface{}{"id": "el-other"}, "alice")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeImmutable))
}

func TestUpdateBumpsUpdatedAtAndMarksDirty(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	el := newTestElement("el-u1")
	require.NoError(t, s.Create(ctx, el))

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Update(ctx, "el-u1", map[string]interface{}{"tags": []string{"y", "z"}}, "alice"))

	got, err := s.Get(ctx, "el-u1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(el.UpdatedAt))
	assert.Equal(t, []string{"y", "z"}, got.Tags)

	dirty, err := s.GetDirtyElements(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)
	assert.Equal(t, "el-u1", dirty[0].ElementID)
}

func TestDirtyTrackingIdempotentAndClearable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	el := newTestElement("el-d1")
	require.NoError(t, s.Create(ctx, el))
	require.NoError(t, s.MarkDirty(ctx, "el-d1"))
	require.NoError(t, s.MarkDirty(ctx, "el-d1"))

	dirty, err := s.GetDirtyElements(ctx)
	require.NoError(t, err)
	require.Len(t, dirty, 1)

	require.NoError(t, s.ClearDirtyElements(ctx, []string{"el-d1"}))
	dirty, err = s.GetDirtyElements(ctx)
	require.NoError(t, err)
	assert.Empty(t, dirty)
}

func TestNextChildNumberMonotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	parent := newTestElement("el-parent")
	require.NoError(t, s.Create(ctx, parent))

	n1, err := s.GetNextChildNumber(ctx, "el-parent")
	require.NoError(t, err)
	n2, err := s.GetNextChildNumber(ctx, "el-parent")
	require.NoError(t, err)
	n3, err := s.GetNextChildNumber(ctx, "el-parent")
	require.NoError(t, err)

	assert.Less(t, n1, n2)
	assert.Less(t, n2, n3)
}

func TestAddDependencyDefaultPathSkipsCycleCheck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b := newTestElement("el-a"), newTestElement("el-b")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))

	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, AddDependencyOptions{}))
	// Default path does not validate cycles: this would close a 2-cycle
	// but succeeds because CheckCycle was not requested.
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-b", BlockerID: "el-a", Type: types.DepBlocks}, AddDependencyOptions{}))
}

func TestAddDependencyExplicitCycleCheck(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	a, b, c := newTestElement("el-a"), newTestElement("el-b"), newTestElement("el-c")
	require.NoError(t, s.Create(ctx, a))
	require.NoError(t, s.Create(ctx, b))
	require.NoError(t, s.Create(ctx, c))

	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-a", BlockerID: "el-b", Type: types.DepBlocks}, AddDependencyOptions{CheckCycle: true}))
	require.NoError(t, s.AddDependency(ctx, types.Dependency{BlockedID: "el-b", BlockerID: "el-c", Type: types.DepBlocks}, AddDependencyOptions{CheckCycle: true}))

	err := s.AddDependency(ctx, types.Dependency{BlockedID: "el-c", BlockerID: "el-a", Type: types.DepBlocks}, AddDependencyOptions{CheckCycle: true})
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.CodeCycleDetected))
}

func TestListPaginated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"el-1", "el-2", "el-3"} {
		require.NoError(t, s.Create(ctx, newTestElement(id)))
	}

	page1, next, err := s.ListPaginated(ctx, ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page1, 2)
	assert.NotEmpty(t, next)

	page2, next2, err := s.ListPaginated(ctx, ListFilter{Cursor: next, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page2, 1)
	assert.Empty(t, next2)
}
