package session

import "github.com/stoneforge-ai/stoneforge/internal/types"

// Block is one provider content block within a bundled wire message.
// Providers (notably Anthropic's streaming API) emit a single message
// event carrying multiple content blocks of different kinds; Decompose
// turns one such bundle into the ordered AgentMessage events the spec's
// discriminated stream requires.
type Block struct {
	Text     string
	ToolUse  *types.ToolCall
	IsUser   bool // true if this bundle is a user turn rather than assistant
}

// Decompose coalesces a bundle's text blocks into a single
// assistant/user event preceding its tool_use events, dropping empty
// text and suppressing a bundle with neither text nor tool blocks
// entirely. Per spec.md §4.5's message-decomposition invariant:
// {text:"", tool_use:X} -> [tool_use(X)] only;
// {text:"Hi", tool_use:X} -> [assistant("Hi"), tool_use(X)].
func Decompose(blocks []Block) []types.AgentMessage {
	var text string
	var isUser bool
	var tools []types.ToolCall

	for _, b := range blocks {
		if b.Text != "" {
			text += b.Text
			isUser = isUser || b.IsUser
		}
		if b.ToolUse != nil {
			tools = append(tools, *b.ToolUse)
		}
	}

	if text == "" && len(tools) == 0 {
		return nil
	}

	var out []types.AgentMessage
	if text != "" {
		if isUser {
			out = append(out, types.User(text))
		} else {
			out = append(out, types.Assistant(text))
		}
	}
	for _, t := range tools {
		out = append(out, types.ToolUse(t))
	}
	return out
}
