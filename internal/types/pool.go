package types

import "fmt"

// AgentTypeSpec describes one kind of agent a Pool is willing to admit,
// and how many concurrent slots it gets.
type AgentTypeSpec struct {
	Role         AgentRole    `json:"role"`
	WorkerMode   WorkerMode   `json:"workerMode,omitempty"`
	StewardFocus StewardFocus `json:"stewardFocus,omitempty"`
	Priority     int          `json:"priority"`
	MaxSlots     *int         `json:"maxSlots,omitempty"`
}

// Accepts reports whether a spawn request for (role, workerMode,
// stewardFocus) matches this agent-type spec.
func (s AgentTypeSpec) Accepts(role AgentRole, workerMode WorkerMode, stewardFocus StewardFocus) bool {
	if s.Role != role {
		return false
	}
	if s.Role == RoleWorker && s.WorkerMode != "" && s.WorkerMode != workerMode {
		return false
	}
	if s.Role == RoleSteward && s.StewardFocus != "" && s.StewardFocus != stewardFocus {
		return false
	}
	return true
}

// Pool carries a named concurrency cap and the agent types it governs.
type Pool struct {
	Name       string          `json:"name"`
	MaxSize    int             `json:"maxSize"`
	AgentTypes []AgentTypeSpec `json:"agentTypes"`
	Enabled    bool            `json:"enabled"`
}

// Validate enforces maxSize in [1,1000].
func (p Pool) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pool name is required")
	}
	if p.MaxSize < 1 || p.MaxSize > 1000 {
		return fmt.Errorf("pool maxSize must be between 1 and 1000, got %d", p.MaxSize)
	}
	return nil
}

// GoverningAgentType returns the first enabled agent-type spec accepting
// the given spawn request, or (nil, false) if none does.
func (p Pool) GoverningAgentType(role AgentRole, workerMode WorkerMode, stewardFocus StewardFocus) (*AgentTypeSpec, bool) {
	if !p.Enabled {
		return nil, false
	}
	for i := range p.AgentTypes {
		if p.AgentTypes[i].Accepts(role, workerMode, stewardFocus) {
			return &p.AgentTypes[i], true
		}
	}
	return nil, false
}
