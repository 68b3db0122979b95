package steward

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

func createStewardAgent(t *testing.T, s *store.Store, id string, focus types.StewardFocus) {
	t.Helper()
	now := time.Now().UTC()
	meta, err := json.Marshal(map[string]interface{}{"role": "steward", "stewardFocus": focus})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: id, Type: types.ElementEntity, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))
}

func TestExecuteStewardMissingAgent(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil)

	result, err := sched.ExecuteSteward(context.Background(), "el-ghost", types.Trigger{Kind: types.TriggerCron})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestExecuteStewardNonStewardAgent(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil)

	now := time.Now().UTC()
	meta, _ := json.Marshal(map[string]interface{}{"role": "worker"})
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: "el-w1", Type: types.ElementEntity, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))

	result, err := sched.ExecuteSteward(context.Background(), "el-w1", types.Trigger{Kind: types.TriggerCron})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not a steward")
}

func TestExecuteStewardUnknownFocus(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil)
	createStewardAgent(t, s, "el-s1", types.FocusCustom)

	result, err := sched.ExecuteSteward(context.Background(), "el-s1", types.Trigger{Kind: types.TriggerCron})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Unknown steward focus", result.Output["output"])
	assert.GreaterOrEqual(t, result.DurationMs, int64(0))
}

func TestExecuteStewardRecordsHistory(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil)
	createStewardAgent(t, s, "el-s1", types.FocusMerge)
	sched.RegisterExecutor(types.FocusMerge, MergeExecutor(NewMergeStewardService(s)))

	_, err := sched.ExecuteSteward(context.Background(), "el-s1", types.Trigger{Kind: types.TriggerCron, Schedule: "@hourly"})
	require.NoError(t, err)

	history, err := sched.History(context.Background(), "el-s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "success", history[0].Status)
}

// TestStewardIsolation verifies a panicking executor for one steward
// does not prevent the next steward's execution from succeeding and
// being recorded, per spec.md §4.6/§8's isolation invariant.
func TestStewardIsolation(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil)
	createStewardAgent(t, s, "el-bad", types.FocusCustom)
	createStewardAgent(t, s, "el-good", types.FocusMerge)

	sched.RegisterExecutor(types.FocusCustom, func(ctx context.Context, agent *types.Element, trigger types.Trigger) (map[string]interface{}, error) {
		panic("boom")
	})
	sched.RegisterExecutor(types.FocusMerge, MergeExecutor(NewMergeStewardService(s)))

	badResult, err := sched.ExecuteSteward(context.Background(), "el-bad", types.Trigger{Kind: types.TriggerCron})
	require.NoError(t, err)
	assert.False(t, badResult.Success)
	assert.Contains(t, badResult.Error, "panic")

	goodResult, err := sched.ExecuteSteward(context.Background(), "el-good", types.Trigger{Kind: types.TriggerCron})
	require.NoError(t, err)
	assert.True(t, goodResult.Success)

	badHistory, err := sched.History(context.Background(), "el-bad")
	require.NoError(t, err)
	require.Len(t, badHistory, 1)
	assert.Equal(t, "failed", badHistory[0].Status)
}
