package types

import "time"

// MergeStatus tracks where a task's branch sits in the merge pipeline.
type MergeStatus string

const (
	MergePending     MergeStatus = "pending"
	MergeTesting     MergeStatus = "testing"
	MergeMerging     MergeStatus = "merging"
	MergeMerged      MergeStatus = "merged"
	MergeConflict    MergeStatus = "conflict"
	MergeTestFailed  MergeStatus = "test_failed"
	MergeFailed      MergeStatus = "failed"
	MergeNotApplicable MergeStatus = "not_applicable"
)

// maxSessionHistory bounds the orchestrator's session-history ring
// buffer, per spec.md §3.
const maxSessionHistory = 50

// SessionHistoryEntry is one ring-buffer entry summarizing a past
// session bound to a task.
type SessionHistoryEntry struct {
	SessionID string     `json:"sessionId"`
	AgentID   string      `json:"agentId"`
	StartedAt time.Time   `json:"startedAt"`
	EndedAt   *time.Time  `json:"endedAt,omitempty"`
	Status    SessionStatus `json:"status"`
}

// HandoffEntry records a single predecessor/successor handoff for a
// task, e.g. when consultPredecessor resumes a prior session.
type HandoffEntry struct {
	FromAgentID string    `json:"fromAgentId"`
	ToAgentID   string    `json:"toAgentId"`
	At          time.Time `json:"at"`
	Reason      string    `json:"reason,omitempty"`
}

// TestResult is the last observed result of running the task's test
// suite against its branch.
type TestResult struct {
	Passed bool      `json:"passed"`
	Output string    `json:"output,omitempty"`
	At     time.Time `json:"at"`
}

// SyncResult is the last observed outcome of a sync/export-import cycle
// touching this task.
type SyncResult struct {
	Resolution string    `json:"resolution"`
	At         time.Time `json:"at"`
}

// OrchestratorMeta is the nested sub-record carried by task elements,
// recording everything the dispatcher and session/steward layers need
// to track about a task's in-flight work.
type OrchestratorMeta struct {
	Branch          string                 `json:"branch,omitempty"`
	Worktree        string                 `json:"worktree,omitempty"`
	SessionID       string                 `json:"sessionId,omitempty"`
	AssignedAgent   string                 `json:"assignedAgent,omitempty"`
	StartedAt       *time.Time             `json:"startedAt,omitempty"`
	CompletedAt     *time.Time             `json:"completedAt,omitempty"`
	MergedAt        *time.Time             `json:"mergedAt,omitempty"`
	MergeStatus     MergeStatus            `json:"mergeStatus,omitempty"`
	LastTestResult  *TestResult            `json:"lastTestResult,omitempty"`
	ReportedIssues  []string               `json:"reportedIssues,omitempty"`
	SessionHistory  []SessionHistoryEntry  `json:"sessionHistory,omitempty"`
	HandoffHistory  []HandoffEntry         `json:"handoffHistory,omitempty"`
	LastSyncResult  *SyncResult            `json:"lastSyncResult,omitempty"`
}

// AppendSessionHistory pushes a new entry, dropping the oldest once the
// 50-entry cap (a ring buffer) is exceeded.
func (m *OrchestratorMeta) AppendSessionHistory(e SessionHistoryEntry) {
	m.SessionHistory = append(m.SessionHistory, e)
	if len(m.SessionHistory) > maxSessionHistory {
		m.SessionHistory = m.SessionHistory[len(m.SessionHistory)-maxSessionHistory:]
	}
}
