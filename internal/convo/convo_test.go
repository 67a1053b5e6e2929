package convo

import (
	"encoding/json"
	"testing"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendSystem_Idempotent(t *testing.T) {
	s := New()
	s.AppendSystem("you are helpful")
	s.AppendSystem("ignored second call")

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "you are helpful", msgs[0].Content)
}

func TestAppendSystem_StaysAtPositionZero(t *testing.T) {
	s := New()
	s.AppendUser("hi")
	s.AppendSystem("prompt")

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleSystem, msgs[0].Role)
	assert.Equal(t, message.RoleUser, msgs[1].Role)
}

func TestAppendUser_PanicsWithPendingToolCalls(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{}`)}})

	assert.Panics(t, func() { s.AppendUser("next") })
}

func TestAppendAssistant_GeneratesIDForMissingToolCallID(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{{Name: "ls", Arguments: json.RawMessage(`{}`)}})

	pending := s.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.NotEmpty(t, pending[0].ID)
}

func TestAppendAssistant_KeepsProvidedToolCallID(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{{ID: "server-id-1", Name: "ls"}})

	pending := s.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "server-id-1", pending[0].ID)
}

func TestAppendToolResults_PairsCleanly(t *testing.T) {
	s := New()
	s.AppendUser("list files")
	s.AppendAssistant("", []message.ToolCall{
		{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "pwd", Arguments: json.RawMessage(`{}`)},
	})
	require.True(t, s.HasPendingToolCalls())

	err := s.AppendToolResults([]message.ToolResult{
		message.NewTextResult("c1", "ls", "a.go b.go", false),
		message.NewTextResult("c2", "pwd", "/root/module", false),
	})
	require.NoError(t, err)
	assert.False(t, s.HasPendingToolCalls())

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, message.RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, message.RoleTool, msgs[3].Role)
	assert.Equal(t, "c2", msgs[3].ToolCallID)
}

func TestAppendToolResults_MissingIDIsError(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{
		{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{}`)},
		{ID: "c2", Name: "pwd", Arguments: json.RawMessage(`{}`)},
	})

	err := s.AppendToolResults([]message.ToolResult{
		message.NewTextResult("c1", "ls", "a.go", false),
	})
	assert.Error(t, err)
	assert.True(t, s.HasPendingToolCalls())
}

func TestAppendToolResults_UnknownIDIsError(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{}`)}})

	err := s.AppendToolResults([]message.ToolResult{
		message.NewTextResult("not-pending", "ls", "a.go", false),
	})
	assert.Error(t, err)
}

func TestAppendToolResults_NoPendingWithEmptyResultsIsNoop(t *testing.T) {
	s := New()
	s.AppendUser("hi")
	require.NoError(t, s.AppendToolResults(nil))
	assert.Len(t, s.Messages(), 1)
}

func TestSynthesizeInterrupted_ClearsPendingWithErrorResults(t *testing.T) {
	s := New()
	s.AppendUser("run something slow")
	s.AppendAssistant("", []message.ToolCall{
		{ID: "c1", Name: "sleep", Arguments: json.RawMessage(`{}`)},
	})

	s.SynthesizeInterrupted()
	assert.False(t, s.HasPendingToolCalls())

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleTool, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "interrupted")

	// Settled again: a new user turn is now legal.
	assert.NotPanics(t, func() { s.AppendUser("try again") })
}

func TestSynthesizeInterrupted_NoopWhenNothingPending(t *testing.T) {
	s := New()
	s.AppendUser("hi")
	s.SynthesizeInterrupted()
	assert.Len(t, s.Messages(), 1)
}

func TestPendingToolCalls_ReturnsDefensiveCopy(t *testing.T) {
	s := New()
	s.AppendAssistant("", []message.ToolCall{{ID: "c1", Name: "ls", Arguments: json.RawMessage(`{}`)}})

	pending := s.PendingToolCalls()
	pending[0].ID = "mutated"

	assert.Equal(t, "c1", s.PendingToolCalls()[0].ID)
}

func TestMessages_ReturnsDefensiveCopy(t *testing.T) {
	s := New()
	s.AppendUser("hi")

	msgs := s.Messages()
	msgs[0].Content = "mutated"

	assert.Equal(t, "hi", s.Messages()[0].Content)
}
