package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
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

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func createChannel(t *testing.T, s *store.Store, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: id, Type: types.ElementChannel, CreatedAt: now, UpdatedAt: now, CreatedBy: "system",
	}))
}

func createWorkerAgent(t *testing.T, s *store.Store, id, channelID string) {
	t.Helper()
	now := time.Now().UTC()
	meta := mustMarshal(t, map[string]interface{}{
		"role": "worker", "workerMode": "ephemeral", "channelId": channelID, "name": id,
	})
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: id, Type: types.ElementEntity, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))
}

func createOpenTask(t *testing.T, s *store.Store, id, title string) {
	t.Helper()
	now := time.Now().UTC()
	meta := mustMarshal(t, map[string]interface{}{"status": "open", "title": title, "priority": 1})
	require.NoError(t, s.Create(context.Background(), &types.Element{
		ID: id, Type: types.ElementTask, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))
}

func TestGenerateBranchAndWorktreeNames(t *testing.T) {
	branch := GenerateBranchName("Worker One!", "el-a1b2c3d4", "Fix The Thing")
	assert.Equal(t, "agent/worker-one/el-a1b2c3d4-fix-the-thing", branch)

	worktree := GenerateWorktreePath("Worker One!", "Fix The Thing")
	assert.Equal(t, ".stoneforge/.worktrees/worker-one-fix-the-thing", worktree)
}

func TestGenerateBranchNameCapsSlugLength(t *testing.T) {
	longTitle := "this-is-a-very-long-task-title-that-exceeds-the-thirty-character-cap"
	branch := GenerateBranchName("w", "el-1", longTitle)
	// agent/w/el-1-<slug30>
	parts := branch[len("agent/w/el-1-"):]
	assert.LessOrEqual(t, len(parts), 30)
}

func TestPoolSpawnCheckAdmitsUnderCapacity(t *testing.T) {
	pools := []types.Pool{{
		Name: "default", MaxSize: 2, Enabled: true,
		AgentTypes: []types.AgentTypeSpec{{Role: types.RoleWorker, Priority: 1}},
	}}
	_, _, can := PoolSpawnCheck(pools, SpawnRequest{Role: types.RoleWorker}, 1, map[string]int{})
	assert.True(t, can)
}

func TestPoolSpawnCheckRejectsAtCapacity(t *testing.T) {
	pools := []types.Pool{{
		Name: "default", MaxSize: 1, Enabled: true,
		AgentTypes: []types.AgentTypeSpec{{Role: types.RoleWorker, Priority: 1}},
	}}
	_, _, can := PoolSpawnCheck(pools, SpawnRequest{Role: types.RoleWorker}, 1, map[string]int{})
	assert.False(t, can)
}

func TestPoolSpawnCheckRejectsAtMaxSlots(t *testing.T) {
	maxSlots := 1
	pools := []types.Pool{{
		Name: "default", MaxSize: 10, Enabled: true,
		AgentTypes: []types.AgentTypeSpec{{Role: types.RoleWorker, WorkerMode: types.WorkerEphemeral, Priority: 1, MaxSlots: &maxSlots}},
	}}
	active := map[string]int{"worker:ephemeral": 1}
	_, _, can := PoolSpawnCheck(pools, SpawnRequest{Role: types.RoleWorker, WorkerMode: types.WorkerEphemeral}, 1, active)
	assert.False(t, can)
}

func TestAssignToAgentGeneratesDeterministicNames(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	createChannel(t, s, "el-chan")
	createWorkerAgent(t, s, "el-worker1", "el-chan")
	createOpenTask(t, s, "el-task1", "Do the thing")

	task, err := d.AssignToAgent(ctx, "el-task1", "el-worker1", AssignOptions{})
	require.NoError(t, err)

	var orch types.OrchestratorMeta
	ok, err := task.MetadataValue("orchestrator", &orch)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "el-worker1", orch.AssignedAgent)
	assert.Contains(t, orch.Branch, "agent/el-worker1/el-task1-")
	assert.Contains(t, orch.Worktree, ".stoneforge/.worktrees/el-worker1-")
}

func TestAssignToAgentMarkAsStarted(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	createChannel(t, s, "el-chan")
	createWorkerAgent(t, s, "el-worker1", "el-chan")
	createOpenTask(t, s, "el-task1", "Do the thing")

	task, err := d.AssignToAgent(ctx, "el-task1", "el-worker1", AssignOptions{MarkAsStarted: true})
	require.NoError(t, err)

	var status string
	_, _ = task.MetadataValue("status", &status)
	assert.Equal(t, "in_progress", status)

	var orch types.OrchestratorMeta
	_, _ = task.MetadataValue("orchestrator", &orch)
	require.NotNil(t, orch.StartedAt)
}

func TestDispatchHappyPath(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	createChannel(t, s, "el-chan")
	createWorkerAgent(t, s, "el-worker1", "el-chan")
	createOpenTask(t, s, "el-task1", "Do the thing")

	result, err := d.Dispatch(ctx, "el-task1", "el-worker1", DispatchOptions{})
	require.NoError(t, err)
	assert.True(t, result.IsNewAssignment)
	assert.Equal(t, "el-chan", result.Channel.ID)
	require.NotNil(t, result.Notification)

	var suppress bool
	_, _ = result.Notification.MetadataValue("suppressInbox", &suppress)
	assert.True(t, suppress)
}

func TestDispatchFailsWithoutChannelAndLeavesNoAssignment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	now := time.Now().UTC()
	meta := mustMarshal(t, map[string]interface{}{"role": "worker"})
	require.NoError(t, s.Create(ctx, &types.Element{
		ID: "el-worker1", Type: types.ElementEntity, CreatedAt: now, UpdatedAt: now, CreatedBy: "system", Metadata: meta,
	}))
	createOpenTask(t, s, "el-task1", "Do the thing")

	_, err := d.Dispatch(ctx, "el-task1", "el-worker1", DispatchOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	task, err := s.Get(ctx, "el-task1")
	require.NoError(t, err)
	var orch types.OrchestratorMeta
	ok, _ := task.MetadataValue("orchestrator", &orch)
	assert.False(t, ok || orch.AssignedAgent != "")
}

func TestRateLimitFallbackChain(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tracker, err := NewRateLimitTracker(ctx, s)
	require.NoError(t, err)

	exec, ok := tracker.GetAvailableExecutable([]string{"claude", "gpt-4"})
	require.True(t, ok)
	assert.Equal(t, "claude", exec)

	require.NoError(t, tracker.MarkLimited(ctx, "claude", time.Now().UTC().Add(time.Hour)))

	exec, ok = tracker.GetAvailableExecutable([]string{"claude", "gpt-4"})
	require.True(t, ok)
	assert.Equal(t, "gpt-4", exec)
}

func TestRateLimitNeverDowngradesResetTime(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tracker, err := NewRateLimitTracker(ctx, s)
	require.NoError(t, err)

	later := time.Now().UTC().Add(2 * time.Hour)
	earlier := time.Now().UTC().Add(time.Hour)

	require.NoError(t, tracker.MarkLimited(ctx, "claude", later))
	require.NoError(t, tracker.MarkLimited(ctx, "claude", earlier))

	assert.True(t, tracker.entries["claude"].ResetsAt.Equal(later))
}

func TestRateLimitTrackerHydrationDropsExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	expired := map[string]interface{}{"claude": map[string]interface{}{"resetsAt": time.Now().UTC().Add(-time.Hour)}}
	b, err := json.Marshal(expired)
	require.NoError(t, err)
	require.NoError(t, s.SetConfig(ctx, RateLimitConfigKey, string(b)))

	tracker, err := NewRateLimitTracker(ctx, s)
	require.NoError(t, err)
	assert.False(t, tracker.IsLimited("claude"))
}

type fakeSessionManager struct {
	session  *types.Session
	messages []types.AgentMessage
	suspended []string
}

func (f *fakeSessionManager) FindResumableSession(ctx context.Context, role types.AgentRole) (*types.Session, error) {
	if f.session == nil {
		return nil, errs.NotFound("fake.FindResumableSession", nil)
	}
	return f.session, nil
}

func (f *fakeSessionManager) Resume(ctx context.Context, sessionID, message string) (<-chan types.AgentMessage, error) {
	ch := make(chan types.AgentMessage, len(f.messages))
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}

func (f *fakeSessionManager) Suspend(ctx context.Context, sessionID, reason string) error {
	f.suspended = append(f.suspended, sessionID)
	return nil
}

func TestConsultPredecessorAccumulatesAssistantText(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	fake := &fakeSessionManager{
		session: &types.Session{SessionID: "sess-1", ProviderSessionID: "prov-1"},
		messages: []types.AgentMessage{
			types.Assistant("Hello "),
			types.Assistant("world"),
			types.Result("success", ""),
		},
	}
	d.SetSessionManager(fake)

	result, err := d.ConsultPredecessor(ctx, "el-requester", types.RoleWorker, "what's the status?", ConsultOptions{Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "Hello world", result.Response)
	assert.Equal(t, []string{"sess-1"}, fake.suspended)
}

func TestConsultPredecessorSkipSuspend(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	d := New(s, Config{}, nil)

	fake := &fakeSessionManager{
		session:  &types.Session{SessionID: "sess-1", ProviderSessionID: "prov-1"},
		messages: []types.AgentMessage{types.Result("success", "")},
	}
	d.SetSessionManager(fake)

	_, err := d.ConsultPredecessor(ctx, "el-requester", types.RoleWorker, "ping", ConsultOptions{Timeout: 10 * time.Second, SkipSuspend: true})
	require.NoError(t, err)
	assert.Empty(t, fake.suspended)
}
