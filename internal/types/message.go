package types

// MessageKind is the closed set of normalized, provider-agnostic message
// kinds a session's stream emits.
type MessageKind string

const (
	MsgSystem    MessageKind = "system"
	MsgAssistant MessageKind = "assistant"
	MsgUser      MessageKind = "user"
	MsgToolUse   MessageKind = "tool_use"
	MsgToolResult MessageKind = "tool_result"
	MsgResult    MessageKind = "result"
	MsgError     MessageKind = "error"
)

// ToolCall describes one invoked tool, shared by tool_use/tool_result
// events (tool_result correlates back to tool_use by ID, possibly out of
// order).
type ToolCall struct {
	ID    string      `json:"id"`
	Name  string      `json:"name,omitempty"`
	Input interface{} `json:"input,omitempty"`
}

// AgentMessage is the normalized, provider-agnostic message a session's
// iterator yields. Exactly one of the payload fields is meaningful,
// selected by Kind — a discriminated union rather than an open class
// hierarchy, per design note §9.
type AgentMessage struct {
	Kind MessageKind `json:"kind"`

	// system
	Subtype   string `json:"subtype,omitempty"`
	SessionID string `json:"sessionId,omitempty"`

	// assistant / user
	Content string `json:"content,omitempty"`

	// tool_use / tool_result
	Tool ToolCall `json:"tool,omitempty"`

	// error
	Raw string `json:"raw,omitempty"`
}

// System builds a system AgentMessage.
func System(subtype, sessionID string) AgentMessage {
	return AgentMessage{Kind: MsgSystem, Subtype: subtype, SessionID: sessionID}
}

// Assistant builds an assistant text AgentMessage.
func Assistant(content string) AgentMessage {
	return AgentMessage{Kind: MsgAssistant, Content: content}
}

// User builds a user text AgentMessage.
func User(content string) AgentMessage {
	return AgentMessage{Kind: MsgUser, Content: content}
}

// ToolUse builds a tool_use AgentMessage.
func ToolUse(tool ToolCall) AgentMessage {
	return AgentMessage{Kind: MsgToolUse, Tool: tool}
}

// ToolResult builds a tool_result AgentMessage.
func ToolResult(id, content string) AgentMessage {
	return AgentMessage{Kind: MsgToolResult, Content: content, Tool: ToolCall{ID: id}}
}

// Result builds a terminal result-marker AgentMessage.
func Result(subtype, content string) AgentMessage {
	return AgentMessage{Kind: MsgResult, Subtype: subtype, Content: content}
}

// Err builds an error AgentMessage.
func Err(content, raw string) AgentMessage {
	return AgentMessage{Kind: MsgError, Content: content, Raw: raw}
}
