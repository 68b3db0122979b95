package types

import "fmt"

// AgentRole is the closed set of roles an Agent (an Element of type
// entity) may carry.
type AgentRole string

const (
	RoleDirector AgentRole = "director"
	RoleWorker   AgentRole = "worker"
	RoleSteward  AgentRole = "steward"
)

func (r AgentRole) Valid() bool {
	switch r {
	case RoleDirector, RoleWorker, RoleSteward:
		return true
	default:
		return false
	}
}

// WorkerMode distinguishes one-shot workers from long-running ones.
type WorkerMode string

const (
	WorkerEphemeral  WorkerMode = "ephemeral"
	WorkerPersistent WorkerMode = "persistent"
)

func (m WorkerMode) Valid() bool {
	switch m {
	case WorkerEphemeral, WorkerPersistent:
		return true
	default:
		return false
	}
}

// StewardFocus is the kind of derived state a steward reconciles.
type StewardFocus string

const (
	FocusMerge  StewardFocus = "merge"
	FocusDocs   StewardFocus = "docs"
	FocusCustom StewardFocus = "custom"
)

func (f StewardFocus) Valid() bool {
	switch f {
	case FocusMerge, FocusDocs, FocusCustom:
		return true
	default:
		return false
	}
}

// TriggerKind distinguishes cron-scheduled steward triggers from
// event-driven ones.
type TriggerKind string

const (
	TriggerCron  TriggerKind = "cron"
	TriggerEvent TriggerKind = "event"
)

// Trigger declares when a steward fires.
type Trigger struct {
	Kind     TriggerKind `json:"kind"`
	Schedule string      `json:"schedule,omitempty"` // cron expression, UTC
	Event    string      `json:"event,omitempty"`    // event name on the internal bus
}

// Validate checks that the trigger carries the field its kind requires.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerCron:
		if t.Schedule == "" {
			return fmt.Errorf("cron trigger requires a schedule")
		}
	case TriggerEvent:
		if t.Event == "" {
			return fmt.Errorf("event trigger requires an event name")
		}
	default:
		return fmt.Errorf("invalid trigger kind: %q", t.Kind)
	}
	return nil
}

// AgentMeta is the Agent-specific payload stored under Element.Metadata
// for entity elements with a role. It is validated and (de)serialized
// independently of the generic Element envelope so that role-specific
// fields never leak into elements of other types.
type AgentMeta struct {
	Role         AgentRole    `json:"role"`
	WorkerMode   WorkerMode   `json:"workerMode,omitempty"`
	StewardFocus StewardFocus `json:"stewardFocus,omitempty"`
	Triggers     []Trigger    `json:"triggers,omitempty"`
	ChannelID    string       `json:"channelId,omitempty"`
	Executable   string       `json:"executable,omitempty"` // e.g. "claude", "gpt-4"
}

// Validate checks the role, then the role-dependent fields when they
// are set: a worker's mode, a steward's focus, and each of a steward's
// triggers. An empty worker mode, an empty steward focus or an empty
// trigger list is accepted.
func (m AgentMeta) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("invalid agent role: %q", m.Role)
	}
	switch m.Role {
	case RoleWorker:
		if m.WorkerMode != "" && !m.WorkerMode.Valid() {
			return fmt.Errorf("invalid worker mode: %q", m.WorkerMode)
		}
	case RoleSteward:
		if m.StewardFocus != "" && !m.StewardFocus.Valid() {
			return fmt.Errorf("invalid steward focus: %q", m.StewardFocus)
		}
		for i, trig := range m.Triggers {
			if err := trig.Validate(); err != nil {
				return fmt.Errorf("trigger %d: %w", i, err)
			}
		}
	}
	return nil
}

// IsSteward reports whether this agent metadata describes a valid
// steward (non-empty, recognized focus). Mirrors executeSteward's
// "...not a steward" failure condition.
func (m AgentMeta) IsSteward() bool {
	return m.Role == RoleSteward && m.StewardFocus.Valid()
}
