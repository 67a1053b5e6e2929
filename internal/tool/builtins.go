package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nmnduy/claude-c-sub001/internal/todo"
)

// EchoArgs is the parameter shape for the echo built-in, used mostly to
// exercise the dispatcher/registry path in tests and smoke-check a fresh
// wiring without needing bash/patch-apply (a spec.md Non-goal, §1).
type EchoArgs struct {
	Text string `json:"text" jsonschema:"description=Text to echo back,required"`
}

// NewEchoSpec returns a trivial tool that echoes its input, grounded in the
// teacher's own smoke-test pattern (cmd/llm/main.go's GetWeatherParams/
// get_weather round trip) but with no external side effect.
func NewEchoSpec() Spec {
	return Spec{
		Definition: DefinitionFor[EchoArgs]("echo", "Echo the given text back, unchanged."),
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, bool, error) {
			var args EchoArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, true, fmt.Errorf("echo: decode arguments: %w", err)
			}
			out, err := json.Marshal(args.Text)
			if err != nil {
				return nil, true, fmt.Errorf("echo: encode output: %w", err)
			}
			return out, false, nil
		},
	}
}

// TaskListArgs is the parameter shape for the task_list built-in (C11's
// "special tool" per spec.md §3/§4.9). Operation selects which of the
// package's mutations to apply; the other fields are interpreted per
// operation and left zero-valued when irrelevant to it.
type TaskListArgs struct {
	Operation  string      `json:"operation" jsonschema:"description=One of add/update_by_index/update_by_content/remove/clear/count_by_status,required"`
	Content    string      `json:"content,omitempty" jsonschema:"description=Task text (add/update_by_content/remove match key)"`
	ActiveForm string      `json:"active_form,omitempty" jsonschema:"description=Present-continuous gloss shown while in_progress (add)"`
	Status     todo.Status `json:"status,omitempty" jsonschema:"description=pending/in_progress/completed"`
	Index      int         `json:"index,omitempty" jsonschema:"description=0-based index (update_by_index/remove)"`
}

// TaskListResult is the structured output of every task_list call: the
// operation's own outcome plus the list's full current state, so a caller
// never needs a second round trip to see what changed.
type TaskListResult struct {
	OK    bool            `json:"ok"`
	Items []todo.TodoItem `json:"items"`
	Count int             `json:"count,omitempty"`
}

// NewTaskListSpec binds a task_list tool to the given List — normally the
// same *todo.List the agent Loop renders after dispatch (Loop.Tasks()), so
// a model-issued mutation is immediately visible in the rendered task list.
func NewTaskListSpec(list *todo.List) Spec {
	return Spec{
		Definition: DefinitionFor[TaskListArgs]("task_list", "Add, update, remove, or inspect the session's task list."),
		Handler: func(ctx context.Context, raw json.RawMessage) (json.RawMessage, bool, error) {
			var args TaskListArgs
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &args); err != nil {
					return nil, true, fmt.Errorf("task_list: decode arguments: %w", err)
				}
			}

			result := TaskListResult{OK: true}
			switch args.Operation {
			case "add":
				if args.Content == "" {
					return nil, true, fmt.Errorf("task_list: add requires content")
				}
				list.Add(args.Content, args.ActiveForm)
			case "update_by_index":
				result.OK = list.UpdateByIndex(args.Index, args.Status)
			case "update_by_content":
				result.OK = list.UpdateByContent(args.Content, args.Status)
			case "remove":
				result.OK = list.Remove(args.Index)
			case "clear":
				list.Clear()
			case "count_by_status":
				result.Count = list.CountByStatus(args.Status)
			default:
				return nil, true, fmt.Errorf("task_list: unknown operation %q", args.Operation)
			}
			result.Items = list.Items()

			out, err := json.Marshal(result)
			if err != nil {
				return nil, true, fmt.Errorf("task_list: encode output: %w", err)
			}
			return out, !result.OK, nil
		},
	}
}
