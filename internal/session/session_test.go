package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// fakeHeadless is a HeadlessBackend test double whose Events channel is
// fed directly by the test.
type fakeHeadless struct {
	events      chan types.AgentMessage
	sent        []string
	interrupted bool
	closed      bool
}

func newFakeHeadless() *fakeHeadless {
	return &fakeHeadless{events: make(chan types.AgentMessage, 16)}
}

func (f *fakeHeadless) SendMessage(ctx context.Context, text string) error {
	f.sent = append(f.sent, text)
	return nil
}
func (f *fakeHeadless) Interrupt() error { f.interrupted = true; return nil }
func (f *fakeHeadless) Close() error     { f.closed = true; close(f.events); return nil }
func (f *fakeHeadless) Events() <-chan types.AgentMessage { return f.events }

func TestHandleStateMachineHappyPath(t *testing.T) {
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionStarting}}
	require.NoError(t, h.transition(types.SessionRunning))
	h.setProviderSessionID("prov-1")
	require.NoError(t, h.transition(types.SessionSuspended))
	require.NoError(t, h.transition(types.SessionRunning))
	require.NoError(t, h.transition(types.SessionEnded))
}

func TestHandleSuspendRequiresProviderSessionID(t *testing.T) {
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionRunning}}
	err := h.transition(types.SessionSuspended)
	assert.Error(t, err)
}

func TestHandleSuspendOnlyFromRunning(t *testing.T) {
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionStarting}}
	err := h.transition(types.SessionSuspended)
	assert.Error(t, err)
}

func TestHandleEndedIsIdempotent(t *testing.T) {
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionRunning}}
	require.NoError(t, h.transition(types.SessionEnded))
	require.NoError(t, h.transition(types.SessionEnded))
}

func TestManagerStartHeadlessPumpsDecomposedEvents(t *testing.T) {
	backend := newFakeHeadless()
	factory := func(ctx context.Context, workingDir, resume string) (HeadlessBackend, error) {
		return backend, nil
	}
	m := NewManager(factory, nil)

	h, err := m.StartHeadless(context.Background(), "el-agent1", "/tmp/work")
	require.NoError(t, err)

	backend.events <- types.System("init", "prov-xyz")
	backend.events <- types.Assistant("hello")
	backend.events <- types.Result("success", "")
	close(backend.events)

	var got []types.AgentMessage
	for m := range h.Events() {
		got = append(got, m)
	}
	require.Len(t, got, 3)
	assert.Equal(t, "prov-xyz", h.Snapshot().ProviderSessionID)
	assert.Equal(t, types.SessionEnded, h.Snapshot().Status)
}

func TestManagerFindResumableSessionRequiresSuspended(t *testing.T) {
	m := NewManager(nil, nil)
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionRunning, StartedAt: time.Now()}}
	m.register(h)

	_, err := m.FindResumableSession(context.Background(), types.RoleWorker)
	assert.Error(t, err)

	h.meta.Status = types.SessionSuspended
	h.meta.ProviderSessionID = "prov-1"
	got, err := m.FindResumableSession(context.Background(), types.RoleWorker)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
}

func TestManagerResumeSendsMessageAndReopensStream(t *testing.T) {
	backend := newFakeHeadless()
	factory := func(ctx context.Context, workingDir, resume string) (HeadlessBackend, error) {
		assert.Equal(t, "prov-1", resume)
		return backend, nil
	}
	m := NewManager(factory, nil)

	h := &Handle{meta: types.Session{
		SessionID: "s1", Status: types.SessionSuspended, ProviderSessionID: "prov-1", WorkingDirectory: "/tmp",
	}}
	m.register(h)

	stream, err := m.Resume(context.Background(), "s1", "what's next?")
	require.NoError(t, err)
	assert.Equal(t, []string{"what's next?"}, backend.sent)

	backend.events <- types.Result("success", "")
	close(backend.events)
	<-stream // drains the result event
}

func TestManagerSuspendClosesBackend(t *testing.T) {
	backend := newFakeHeadless()
	m := NewManager(nil, nil)
	h := &Handle{meta: types.Session{SessionID: "s1", Status: types.SessionRunning, ProviderSessionID: "prov-1"}, headless: backend}
	m.register(h)

	require.NoError(t, m.Suspend(context.Background(), "s1", "done"))
	assert.True(t, backend.closed)
	assert.Equal(t, types.SessionSuspended, h.Snapshot().Status)
}

func TestSharedServerRefcountsStartStop(t *testing.T) {
	s := newSharedServer()
	starts, stops := 0, 0
	s.SetHooks(func() error { starts++; return nil }, func() error { stops++; return nil })

	require.NoError(t, s.acquire())
	require.NoError(t, s.acquire())
	assert.Equal(t, 1, starts)
	assert.Equal(t, 2, s.RefCount())

	require.NoError(t, s.release())
	assert.Equal(t, 0, stops)
	require.NoError(t, s.release())
	assert.Equal(t, 1, stops)
}
