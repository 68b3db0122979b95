package types

import "time"

// SessionMode distinguishes a headless (stream-driven) session from an
// interactive (PTY-driven) one.
type SessionMode string

const (
	ModeHeadless    SessionMode = "headless"
	ModeInteractive SessionMode = "interactive"
)

// SessionStatus is the session lifecycle state, per the L5a state
// machine: starting -> running -> {suspended, ended, failed}.
type SessionStatus string

const (
	SessionStarting  SessionStatus = "starting"
	SessionRunning   SessionStatus = "running"
	SessionSuspended SessionStatus = "suspended"
	SessionEnded     SessionStatus = "ended"
	SessionFailed    SessionStatus = "failed"
)

// Session is runtime-only state for a single agent interaction bound to
// one working directory. It is never persisted as an Element; the
// store's sessions table (store.CreateSession) can hold a snapshot row,
// and the orchestrator metadata's SessionHistory ring buffer records a
// summary of past sessions.
type Session struct {
	SessionID         string        `json:"sessionId"`
	AgentID           string        `json:"agentId"`
	ProviderSessionID string        `json:"providerSessionId,omitempty"`
	Mode              SessionMode   `json:"mode"`
	Status            SessionStatus `json:"status"`
	WorkingDirectory  string        `json:"workingDirectory"`
	StartedAt         time.Time     `json:"startedAt"`
	EndedAt           *time.Time    `json:"endedAt,omitempty"`
}

// Resumable reports whether this session can be handed a new message via
// resumeSession / consultPredecessor (it must have captured a provider
// session id to resume against).
func (s *Session) Resumable() bool {
	return s.ProviderSessionID != ""
}
