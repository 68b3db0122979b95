package session

import (
	"context"
	"fmt"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

// FindResumableSession returns the most recently started session that
// is suspended and has a provider session id. role does not narrow the
// search (sessions carry no role); it only appears in the not-found
// error. Satisfies dispatch.SessionManager.
func (m *Manager) FindResumableSession(ctx context.Context, role types.AgentRole) (*types.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *types.Session
	for _, h := range m.sessions {
		snap := h.Snapshot()
		if snap.Status != types.SessionSuspended || !snap.Resumable() {
			continue
		}
		if best == nil || snap.StartedAt.After(best.StartedAt) {
			s := snap
			best = &s
		}
	}
	// Sessions here carry no role tag of their own; role-scoped agent
	// lookup happens at the registry layer upstream of Manager.
	if best == nil {
		return nil, errs.NotFound("session.FindResumableSession", fmt.Errorf("no resumable session for role %s", role))
	}
	return best, nil
}

// Resume re-starts a headless backend against a suspended session's
// captured provider session id and immediately sends message, returning
// the resulting event stream. Satisfies dispatch.SessionManager.
func (m *Manager) Resume(ctx context.Context, sessionID, message string) (<-chan types.AgentMessage, error) {
	h, ok := m.Get(sessionID)
	if !ok {
		return nil, errs.NotFound("session.Resume", fmt.Errorf("session %s not found", sessionID))
	}
	snap := h.Snapshot()
	if snap.Status != types.SessionSuspended {
		return nil, errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.Resume", fmt.Errorf("session %s is %s, not suspended", sessionID, snap.Status))
	}
	if m.headless == nil {
		return nil, errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.Resume", fmt.Errorf("no headless backend configured"))
	}

	backend, err := m.headless(ctx, snap.WorkingDirectory, snap.ProviderSessionID)
	if err != nil {
		return nil, errs.Storage("session.Resume", errs.CodeDatabaseError, err)
	}

	h.mu.Lock()
	h.headless = backend
	h.events = make(chan types.AgentMessage, queueDepth)
	h.mu.Unlock()
	_ = h.transition(types.SessionRunning)

	go m.pumpHeadless(h, backend)

	if err := backend.SendMessage(ctx, message); err != nil {
		return nil, err
	}
	return h.events, nil
}

// Suspend moves a running session to suspended, provided it has
// captured a provider session id. Satisfies dispatch.SessionManager.
func (m *Manager) Suspend(ctx context.Context, sessionID, reason string) error {
	h, ok := m.Get(sessionID)
	if !ok {
		return nil
	}
	if err := h.transition(types.SessionSuspended); err != nil {
		return errs.New(errs.KindConstraint, errs.CodeInvalidInput, "session.Suspend", err)
	}
	h.mu.Lock()
	backend := h.headless
	h.mu.Unlock()
	if backend != nil {
		_ = backend.Close()
	}
	_ = reason // recorded by callers into the task's HandoffHistory, not here
	return nil
}
