package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stoneforge-ai/stoneforge/internal/types"
)

func TestDecomposeEmptyTextWithToolUseYieldsOnlyToolEvent(t *testing.T) {
	tool := &types.ToolCall{ID: "t1", Name: "search"}
	out := Decompose([]Block{{Text: "", ToolUse: tool}})
	assert.Len(t, out, 1)
	assert.Equal(t, types.MsgToolUse, out[0].Kind)
	assert.Equal(t, "t1", out[0].Tool.ID)
}

func TestDecomposeTextAndToolUseYieldsAssistantThenTool(t *testing.T) {
	tool := &types.ToolCall{ID: "t1", Name: "search"}
	out := Decompose([]Block{{Text: "Hi", ToolUse: tool}})
	assert.Len(t, out, 2)
	assert.Equal(t, types.MsgAssistant, out[0].Kind)
	assert.Equal(t, "Hi", out[0].Content)
	assert.Equal(t, types.MsgToolUse, out[1].Kind)
}

func TestDecomposeEmptyBundleSuppressed(t *testing.T) {
	out := Decompose([]Block{{Text: ""}})
	assert.Nil(t, out)
}

func TestDecomposeCoalescesMultipleTextBlocks(t *testing.T) {
	out := Decompose([]Block{{Text: "Hello "}, {Text: "world"}})
	assert.Len(t, out, 1)
	assert.Equal(t, "Hello world", out[0].Content)
}

func TestDecomposeUserTurn(t *testing.T) {
	out := Decompose([]Block{{Text: "ping", IsUser: true}})
	assert.Len(t, out, 1)
	assert.Equal(t, types.MsgUser, out[0].Kind)
}

func TestDecomposeMultipleToolUsesPreserveOrder(t *testing.T) {
	a := &types.ToolCall{ID: "a"}
	b := &types.ToolCall{ID: "b"}
	out := Decompose([]Block{{ToolUse: a}, {ToolUse: b}})
	assert.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Tool.ID)
	assert.Equal(t, "b", out[1].Tool.ID)
}
