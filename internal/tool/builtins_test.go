package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/todo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoSpec_EchoesText(t *testing.T) {
	r := NewRegistry()
	r.Register(NewEchoSpec())

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi there"}`),
	})
	assert.False(t, result.IsError)
	assert.JSONEq(t, `"hi there"`, string(result.Output))
}

func TestEchoSpec_BadArgumentsIsError(t *testing.T) {
	r := NewRegistry()
	r.Register(NewEchoSpec())

	result := r.Invoke(context.Background(), message.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`not json`)})
	assert.True(t, result.IsError)
}

func TestTaskListSpec_Add(t *testing.T) {
	list := todo.New()
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"add","content":"write tests","active_form":"Writing tests"}`),
	})
	require.False(t, result.IsError)

	var parsed TaskListResult
	require.NoError(t, json.Unmarshal(result.Output, &parsed))
	assert.True(t, parsed.OK)
	require.Len(t, parsed.Items, 1)
	assert.Equal(t, "write tests", parsed.Items[0].Content)
	assert.Equal(t, todo.StatusPending, parsed.Items[0].Status)
}

func TestTaskListSpec_UpdateByContent(t *testing.T) {
	list := todo.New()
	list.Add("write tests", "Writing tests")
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"update_by_content","content":"write tests","status":"completed"}`),
	})
	require.False(t, result.IsError)
	assert.Equal(t, 1, list.CountByStatus(todo.StatusCompleted))
}

func TestTaskListSpec_UpdateByContentMissReturnsIsError(t *testing.T) {
	list := todo.New()
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"update_by_content","content":"missing","status":"completed"}`),
	})
	assert.True(t, result.IsError)
}

func TestTaskListSpec_CountByStatus(t *testing.T) {
	list := todo.New()
	list.Add("a", "")
	list.Add("b", "")
	list.UpdateByIndex(0, todo.StatusCompleted)
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"count_by_status","status":"completed"}`),
	})
	require.False(t, result.IsError)
	var parsed TaskListResult
	require.NoError(t, json.Unmarshal(result.Output, &parsed))
	assert.Equal(t, 1, parsed.Count)
}

func TestTaskListSpec_Clear(t *testing.T) {
	list := todo.New()
	list.Add("a", "")
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"clear"}`),
	})
	require.False(t, result.IsError)
	assert.Empty(t, list.Items())
}

func TestTaskListSpec_UnknownOperationIsError(t *testing.T) {
	list := todo.New()
	r := NewRegistry()
	r.Register(NewTaskListSpec(list))

	result := r.Invoke(context.Background(), message.ToolCall{
		ID: "c1", Name: "task_list",
		Arguments: json.RawMessage(`{"operation":"bogus"}`),
	})
	assert.True(t, result.IsError)
}
