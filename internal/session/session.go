// Package session implements the L5a session lifecycle: a
// provider-agnostic headless/interactive session abstraction, the
// AgentMessage stream decomposition, and a Manager that tracks sessions
// in memory and satisfies dispatch.SessionManager for predecessor
// consultation. The reconciliation shape (one goroutine draining a
// provider stream into a bounded queue) is new per the concurrency
// design; the interactive backend is grounded on the teacher's
// internal/coop/backend.go SessionBackend/TmuxBackend.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// queueDepth bounds the per-session message queue. A producer that
// outruns its consumer degrades to a dropped error event rather than
// blocking the provider stream indefinitely.
const queueDepth = 256

// HeadlessBackend is a provider's headless session: fire-and-forget
// sendMessage, idempotent interrupt/close, and a stream of normalized
// AgentMessage events consumed via Events().
type HeadlessBackend interface {
	SendMessage(ctx context.Context, text string) error
	Interrupt() error
	Close() error
	Events() <-chan types.AgentMessage
}

// InteractiveBackend is a provider's PTY-backed interactive session:
// raw byte input, terminal resize, and forcible termination.
type InteractiveBackend interface {
	Write(ctx context.Context, data []byte) error
	Resize(ctx context.Context, cols, rows int) error
	Kill(ctx context.Context) error
	Output() <-chan []byte
	Done() <-chan struct{}
}

// HeadlessFactory starts a new headless backend bound to a working
// directory, optionally resuming a provider session id.
type HeadlessFactory func(ctx context.Context, workingDir, resumeProviderSessionID string) (HeadlessBackend, error)

// InteractiveFactory starts a new interactive backend bound to a
// working directory and session name.
type InteractiveFactory func(ctx context.Context, name, workingDir, command string) (InteractiveBackend, error)

// Handle is the runtime-tracked state for one session: the
// types.Session metadata plus whichever backend is live (at most one of
// headless/interactive is non-nil for the session's Mode).
type Handle struct {
	mu sync.Mutex

	meta types.Session

	headless    HeadlessBackend
	interactive InteractiveBackend

	events chan types.AgentMessage
	done   chan struct{}
}

// Snapshot returns a copy of the handle's current Session metadata.
func (h *Handle) Snapshot() types.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.meta
}

// Events returns the normalized message queue for a headless handle.
// Callers must not retain it past Close.
func (h *Handle) Events() <-chan types.AgentMessage {
	return h.events
}

func (h *Handle) setStatus(status types.SessionStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.meta.Status = status
}

func (h *Handle) setProviderSessionID(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.meta.ProviderSessionID = id
}

// transition enforces the L5a state machine: starting -> running ->
// {suspended, ended, failed}; suspended is reachable only from running
// and only when a provider session id has been captured.
func (h *Handle) transition(to types.SessionStatus) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	from := h.meta.Status

	switch to {
	case types.SessionRunning:
		if from != types.SessionStarting && from != types.SessionSuspended {
			return fmt.Errorf("session %s: cannot move %s -> running", h.meta.SessionID, from)
		}
	case types.SessionSuspended:
		if from != types.SessionRunning {
			return fmt.Errorf("session %s: suspend only valid from running, was %s", h.meta.SessionID, from)
		}
		if h.meta.ProviderSessionID == "" {
			return fmt.Errorf("session %s: cannot suspend without a captured provider session id", h.meta.SessionID)
		}
	case types.SessionEnded, types.SessionFailed:
		// reachable from any non-terminal state
		if from == types.SessionEnded || from == types.SessionFailed {
			return nil // idempotent
		}
	}
	h.meta.Status = to
	return nil
}

// Manager owns the set of live and recently-ended sessions for this
// process. It is the concrete implementation wired into
// dispatch.Dispatcher.SetSessionManager.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Handle
	seq      int

	headless    HeadlessFactory
	interactive InteractiveFactory

	server *sharedServer
}

// NewManager builds a Manager. Either factory may be nil if that
// session mode is unsupported in this process.
func NewManager(headless HeadlessFactory, interactive InteractiveFactory) *Manager {
	return &Manager{
		sessions:    make(map[string]*Handle),
		headless:    headless,
		interactive: interactive,
		server:      newSharedServer(),
	}
}

func (m *Manager) nextSessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return fmt.Sprintf("sess-%d", m.seq)
}

// StartHeadless spawns a new headless session for agentID in
// workingDir, draining its provider stream into a bounded queue on a
// dedicated goroutine.
func (m *Manager) StartHeadless(ctx context.Context, agentID, workingDir string) (*Handle, error) {
	if m.headless == nil {
		return nil, errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.StartHeadless", fmt.Errorf("no headless backend configured"))
	}
	m.server.acquire()

	backend, err := m.headless(ctx, workingDir, "")
	if err != nil {
		m.server.release()
		return nil, errs.Storage("session.StartHeadless", errs.CodeDatabaseError, err)
	}

	h := &Handle{
		meta: types.Session{
			SessionID:        m.nextSessionID(),
			AgentID:          agentID,
			Mode:             types.ModeHeadless,
			Status:           types.SessionStarting,
			WorkingDirectory: workingDir,
			StartedAt:        time.Now().UTC(),
		},
		headless: backend,
		events:   make(chan types.AgentMessage, queueDepth),
		done:     make(chan struct{}),
	}
	m.register(h)
	go m.pumpHeadless(h, backend)
	return h, nil
}

// pumpHeadless is the session's single background drain task: it reads
// the backend's AgentMessage events (already decomposed by the backend)
// and forwards them unchanged into the handle's bounded queue. It owns all
// writes to h.events and closes it on exit.
func (m *Manager) pumpHeadless(h *Handle, backend HeadlessBackend) {
	defer close(h.events)
	defer close(h.done)
	defer m.server.release()

	for msg := range backend.Events() {
		if msg.Kind == types.MsgSystem && msg.Subtype == "init" && msg.SessionID != "" {
			h.setProviderSessionID(msg.SessionID)
			_ = h.transition(types.SessionRunning)
		}
		select {
		case h.events <- msg:
		default:
			// Consumer fell behind: surface a dropped-event error
			// rather than blocking the provider drain goroutine.
			select {
			case h.events <- types.Err("event queue overflow, message dropped", ""):
			default:
			}
		}
		if msg.Kind == types.MsgResult {
			break
		}
	}
	now := time.Now().UTC()
	h.mu.Lock()
	h.meta.EndedAt = &now
	h.mu.Unlock()
	if h.Snapshot().Status != types.SessionFailed {
		_ = h.transition(types.SessionEnded)
	}
}

// StartInteractive spawns a new PTY-backed interactive session for
// agentID in workingDir running command.
func (m *Manager) StartInteractive(ctx context.Context, agentID, workingDir, name, command string) (*Handle, error) {
	if m.interactive == nil {
		return nil, errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.StartInteractive", fmt.Errorf("no interactive backend configured"))
	}
	backend, err := m.interactive(ctx, name, workingDir, command)
	if err != nil {
		return nil, errs.Storage("session.StartInteractive", errs.CodeDatabaseError, err)
	}
	h := &Handle{
		meta: types.Session{
			SessionID:        m.nextSessionID(),
			AgentID:          agentID,
			Mode:             types.ModeInteractive,
			Status:           types.SessionRunning,
			WorkingDirectory: workingDir,
			StartedAt:        time.Now().UTC(),
		},
		interactive: backend,
	}
	m.register(h)
	go func() {
		<-backend.Done()
		now := time.Now().UTC()
		h.mu.Lock()
		h.meta.EndedAt = &now
		h.mu.Unlock()
		_ = h.transition(types.SessionEnded)
	}()
	return h, nil
}

func (m *Manager) register(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[h.meta.SessionID] = h
}

// Get returns the tracked handle for a session id, if any.
func (m *Manager) Get(sessionID string) (*Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.sessions[sessionID]
	return h, ok
}

// SendMessage forwards to the headless backend's fire-and-forget send.
func (m *Manager) SendMessage(ctx context.Context, sessionID, text string) error {
	h, ok := m.Get(sessionID)
	if !ok {
		return errs.NotFound("session.SendMessage", fmt.Errorf("session %s not found", sessionID))
	}
	h.mu.Lock()
	backend := h.headless
	h.mu.Unlock()
	if backend == nil {
		return errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.SendMessage", fmt.Errorf("session %s is not headless", sessionID))
	}
	return backend.SendMessage(ctx, text)
}

// Interrupt signals the provider and is idempotent; races safely with
// stream completion.
func (m *Manager) Interrupt(sessionID string) error {
	h, ok := m.Get(sessionID)
	if !ok {
		return nil
	}
	h.mu.Lock()
	backend := h.headless
	h.mu.Unlock()
	if backend == nil {
		return nil
	}
	return backend.Interrupt()
}

// Close tears down a session's backend and is idempotent.
func (m *Manager) Close(sessionID string) error {
	h, ok := m.Get(sessionID)
	if !ok {
		return nil
	}
	h.mu.Lock()
	headless, interactive := h.headless, h.interactive
	h.mu.Unlock()
	var err error
	if headless != nil {
		err = headless.Close()
	}
	if interactive != nil {
		err = interactive.Kill(context.Background())
	}
	_ = h.transition(types.SessionEnded)
	return err
}
