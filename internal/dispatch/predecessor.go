package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stoneforge-ai/stoneforge/internal/errs"
	"github.com/stoneforge-ai/stoneforge/internal/types"
)

const (
	minConsultTimeout = 10 * time.Second
	maxConsultTimeout = 5 * time.Minute
	defaultConsultTimeout = 60 * time.Second
	queryReapDelay    = 5 * time.Second
)

// SessionManager is the subset of L5a's session manager consultPredecessor
// needs: locating a resumable session for a role, resuming it with a
// message, and suspending it again afterward. Expressed as an interface
// here (rather than importing internal/session directly) so L4 depends
// on a narrow contract instead of the full session lifecycle surface —
// the concrete implementation is internal/session's Manager.
type SessionManager interface {
	FindResumableSession(ctx context.Context, role types.AgentRole) (*types.Session, error)
	Resume(ctx context.Context, sessionID, message string) (<-chan types.AgentMessage, error)
	Suspend(ctx context.Context, sessionID, reason string) error
}

// SetSessionManager wires the session manager consultPredecessor
// resumes sessions through. Dispatch/pool admission do not require one;
// only ConsultPredecessor does.
func (d *Dispatcher) SetSessionManager(m SessionManager) {
	d.sessions = m
}

// ConsultOptions customizes ConsultPredecessor. SkipSuspend inverts the
// spec's suspendAfterResponse=true default so the zero value matches
// spec behavior: leave it false to suspend the predecessor session
// again after it responds, set true to opt out.
type ConsultOptions struct {
	Timeout     time.Duration
	SkipSuspend bool
	Context     string
}

// ConsultResult is what ConsultPredecessor returns.
type ConsultResult struct {
	Success     bool
	Response    string
	Predecessor *types.Session
	DurationMs  int64
}

type activeQuery struct {
	requester  string
	role       types.AgentRole
	startedAt  time.Time
	finishedAt *time.Time
	status     string // running, answered, timed_out, cancelled
	cancel     context.CancelFunc
}

type predecessorTracker struct {
	mu      sync.Mutex
	queries map[string]*activeQuery
	seq     int
}

func newPredecessorTracker() *predecessorTracker {
	return &predecessorTracker{queries: make(map[string]*activeQuery)}
}

func (t *predecessorTracker) start(requester string, role types.AgentRole, cancel context.CancelFunc) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	id := fmt.Sprintf("pq-%d", t.seq)
	t.queries[id] = &activeQuery{requester: requester, role: role, startedAt: time.Now().UTC(), status: "running", cancel: cancel}
	return id
}

func (t *predecessorTracker) finish(id, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queries[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	q.finishedAt = &now
	q.status = status
}

// reap drops completed queries older than queryReapDelay, per spec.md
// §4.4's "reaped from the active map 5s after completion".
func (t *predecessorTracker) reap() {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now().UTC()
	for id, q := range t.queries {
		if q.finishedAt != nil && now.Sub(*q.finishedAt) >= queryReapDelay {
			delete(t.queries, id)
		}
	}
}

// List returns a snapshot of currently tracked queries (running or
// recently completed but not yet reaped).
func (t *predecessorTracker) List() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.queries))
	for id, q := range t.queries {
		out[id] = q.status
	}
	return out
}

// Cancel cancels a running query by id, if present.
func (t *predecessorTracker) Cancel(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	q, ok := t.queries[id]
	if !ok || q.cancel == nil {
		return false
	}
	q.cancel()
	return true
}

// ListActiveQueries exposes the tracker's snapshot for callers.
func (d *Dispatcher) ListActiveQueries() map[string]string {
	return d.predecessors.List()
}

// CancelQuery cancels a running predecessor consultation by id.
func (d *Dispatcher) CancelQuery(id string) bool {
	return d.predecessors.Cancel(id)
}

// ConsultPredecessor locates the most recent resumable session for
// role, resumes it with message (optionally prefixed with opts.Context),
// accumulates assistant text until a result event or stream exit,
// suspends the session again unless opts.SkipSuspend is set, and returns the accumulated response. On timeout
// the query is marked timed_out but suspension is still attempted.
// Per spec.md §4.4.
func (d *Dispatcher) ConsultPredecessor(ctx context.Context, requester string, role types.AgentRole, message string, opts ConsultOptions) (*ConsultResult, error) {
	if d.sessions == nil {
		return nil, errs.New(errs.KindConstraint, errs.CodeInvalidInput, "dispatch.ConsultPredecessor", fmt.Errorf("no session manager wired"))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultConsultTimeout
	}
	if timeout < minConsultTimeout {
		timeout = minConsultTimeout
	}
	if timeout > maxConsultTimeout {
		timeout = maxConsultTimeout
	}
	suspendAfter := !opts.SkipSuspend

	predecessor, err := d.sessions.FindResumableSession(ctx, role)
	if err != nil {
		return nil, err
	}

	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	qID := d.predecessors.start(requester, role, cancel)
	started := time.Now().UTC()

	fullMessage := message
	if opts.Context != "" {
		fullMessage = strings.TrimSpace(opts.Context) + "\n\n" + message
	}

	stream, err := d.sessions.Resume(queryCtx, predecessor.SessionID, fullMessage)
	if err != nil {
		d.predecessors.finish(qID, "timed_out")
		return nil, err
	}

	var response strings.Builder
	status := "answered"
drain:
	for {
		select {
		case <-queryCtx.Done():
			status = "timed_out"
			if errors.Is(queryCtx.Err(), context.Canceled) {
				status = "cancelled"
			}
			break drain
		case msg, ok := <-stream:
			if !ok {
				break drain
			}
			switch msg.Kind {
			case types.MsgAssistant:
				response.WriteString(msg.Content)
			case types.MsgResult:
				break drain
			case types.MsgError:
				status = "timed_out"
				break drain
			}
		}
	}
	d.predecessors.finish(qID, status)

	if suspendAfter {
		_ = d.sessions.Suspend(ctx, predecessor.SessionID, "consultPredecessor complete")
	}

	return &ConsultResult{
		Success:     status == "answered",
		Response:    response.String(),
		Predecessor: predecessor,
		DurationMs:  time.Since(started).Milliseconds(),
	}, nil
}
