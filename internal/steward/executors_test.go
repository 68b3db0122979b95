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

func createPendingTask(t *testing.T, s *store.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	meta, err := json.Marshal(map[string]interface{}{
		"status": "open",
		"orchestrator": types.OrchestratorMeta{MergeStatus: types.MergePending},
	})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: id, Type: types.ElementTask, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))
}

func TestProcessAllPendingMergesPassingTask(t *testing.T) {
	s := openTestStore(t)
	createPendingTask(t, s, "el-t1")
	svc := NewMergeStewardService(s)

	summary, err := svc.ProcessAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalProcessed)
	assert.Equal(t, 1, summary.MergedCount)
	assert.Equal(t, 0, summary.ConflictCount)

	task, err := s.Get(context.Background(), "el-t1")
	require.NoError(t, err)
	var orch types.OrchestratorMeta
	_, _ = task.MetadataValue("orchestrator", &orch)
	assert.Equal(t, types.MergeMerged, orch.MergeStatus)
}

func TestProcessAllPendingMarksTestFailed(t *testing.T) {
	s := openTestStore(t)
	createPendingTask(t, s, "el-t1")
	svc := NewMergeStewardService(s)
	svc.TestRunner = func(ctx context.Context, task *types.Element) (bool, string) { return false, "boom" }

	summary, err := svc.ProcessAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TestFailedCount)
}

func TestProcessAllPendingSkipsNonPendingTasks(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()
	meta, _ := json.Marshal(map[string]interface{}{
		"orchestrator": types.OrchestratorMeta{MergeStatus: types.MergeMerged},
	})
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: "el-t1", Type: types.ElementTask, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))

	svc := NewMergeStewardService(s)
	summary, err := svc.ProcessAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalProcessed)
}

func TestProcessAllPendingReportsConflictWhenBlocked(t *testing.T) {
	s := openTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: "el-blocker", Type: types.ElementTask, CreatedAt: now, UpdatedAt: now, CreatedBy: "system",
	}))
	createPendingTask(t, s, "el-t1")
	require.NoError(t, s.AddDependency(context.Background(), types.Dependency{
		BlockedID: "el-t1", BlockerID: "el-blocker", Type: types.DepBlocks,
	}, store.AddDependencyOptions{}))

	svc := NewMergeStewardService(s)
	summary, err := svc.ProcessAllPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ConflictCount)
	assert.Equal(t, 0, summary.MergedCount)
}
