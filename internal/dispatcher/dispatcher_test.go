package dispatcher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRegistry() *tool.Registry {
	r := tool.NewRegistry()
	r.Register(tool.Spec{
		Definition: tool.Definition{Name: "echo"},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
			var in struct {
				Text string `json:"text"`
			}
			_ = json.Unmarshal(args, &in)
			out, _ := json.Marshal(in.Text)
			return out, false, nil
		},
	})
	return r
}

func TestDispatch_RunsAllCallsConcurrently(t *testing.T) {
	r := echoRegistry()
	d := New(r, interrupt.New(), 0)

	calls := []message.ToolCall{
		{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"one"}`)},
		{ID: "c2", Name: "echo", Arguments: json.RawMessage(`{"text":"two"}`)},
	}

	results := d.Dispatch(context.Background(), calls)
	require.Len(t, results, 2)
	assert.Equal(t, "c1", results[0].ToolCallID)
	assert.Equal(t, "one", results[0].OutputString())
	assert.Equal(t, "c2", results[1].ToolCallID)
	assert.Equal(t, "two", results[1].OutputString())
}

func TestDispatch_EmptyCallsReturnsNil(t *testing.T) {
	d := New(echoRegistry(), interrupt.New(), 0)
	assert.Nil(t, d.Dispatch(context.Background(), nil))
}

func TestDispatch_UnknownToolIsError(t *testing.T) {
	d := New(echoRegistry(), interrupt.New(), 0)
	results := d.Dispatch(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "nope", Arguments: json.RawMessage(`{}`)},
	})
	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
}

func TestDispatch_InterruptSynthesizesResultsForOutstandingCalls(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(tool.Spec{
		Definition: tool.Definition{Name: "slow"},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
			// Ignores ctx deliberately: the result here must come from the
			// dispatcher's synthesized "interrupted" result, not a race
			// with the handler noticing cancellation on its own.
			time.Sleep(5 * time.Second)
			return json.RawMessage(`"done"`), false, nil
		},
	})

	bus := interrupt.New()
	d := New(r, bus, 0)

	go func() {
		time.Sleep(60 * time.Millisecond)
		bus.Request()
	}()

	start := time.Now()
	results := d.Dispatch(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "slow", Arguments: json.RawMessage(`{}`)},
	})
	elapsed := time.Since(start)

	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Equal(t, "interrupted", results[0].OutputString())
	assert.Less(t, elapsed, 2*time.Second)
}

func TestDispatch_PerCallTimeoutProducesTimeoutResult(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(tool.Spec{
		Definition: tool.Definition{Name: "slow"},
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
			// Ignores ctx deliberately: the dispatcher's own per-call
			// timeout must fire on its own, not rely on handler cooperation.
			time.Sleep(5 * time.Second)
			return json.RawMessage(`"done"`), false, nil
		},
	})

	d := New(r, interrupt.New(), 0)
	results := d.Dispatch(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "slow", Arguments: json.RawMessage(`{"timeout_seconds":0.05}`)},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].OutputString(), `"kind":"timeout"`)
}

func TestTruncate_LeavesShortOutputUntouched(t *testing.T) {
	result := message.NewTextResult("c1", "cat", "short", false)
	out := truncate(result)
	assert.Equal(t, "short", out.OutputString())
}

func TestTruncate_CutsLongStdoutAtLimit(t *testing.T) {
	long := strings.Repeat("a", maxOutputBytes+500)
	result := message.NewTextResult("c1", "cat", long, false)

	out := truncate(result)
	var decoded struct {
		Output            string `json:"output"`
		TruncationWarning string `json:"truncation_warning"`
	}
	require.NoError(t, json.Unmarshal(out.Output, &decoded))
	assert.Len(t, decoded.Output, maxOutputBytes)
	assert.NotEmpty(t, decoded.TruncationWarning)
}

func TestTruncate_LeavesStructuredOutputUntouched(t *testing.T) {
	result := message.ToolResult{ToolCallID: "c1", Name: "x", Output: json.RawMessage(`{"foo":"bar"}`)}
	out := truncate(result)
	assert.JSONEq(t, `{"foo":"bar"}`, string(out.Output))
}

func TestResolveTimeout_DefaultsWhenMissing(t *testing.T) {
	d := New(tool.NewRegistry(), interrupt.New(), 0)
	assert.Equal(t, DefaultTimeout, d.resolveTimeout(json.RawMessage(`{}`), tool.Spec{}))
}

func TestResolveTimeout_UsesArgOverride(t *testing.T) {
	d := New(tool.NewRegistry(), interrupt.New(), 0)
	assert.Equal(t, 250*time.Millisecond, d.resolveTimeout(json.RawMessage(`{"timeout_seconds":0.25}`), tool.Spec{}))
}

func TestResolveTimeout_FallsBackToConfiguredDispatcherTimeout(t *testing.T) {
	d := New(tool.NewRegistry(), interrupt.New(), 10*time.Second)
	assert.Equal(t, 10*time.Second, d.resolveTimeout(json.RawMessage(`{}`), tool.Spec{}))
}

func TestResolveTimeout_SpecTimeoutBeatsDispatcherFallback(t *testing.T) {
	d := New(tool.NewRegistry(), interrupt.New(), 10*time.Second)
	spec := tool.Spec{Timeout: 3 * time.Second}
	assert.Equal(t, 3*time.Second, d.resolveTimeout(json.RawMessage(`{}`), spec))
}

func TestResolveTimeout_ArgOverrideBeatsSpecTimeout(t *testing.T) {
	d := New(tool.NewRegistry(), interrupt.New(), 10*time.Second)
	spec := tool.Spec{Timeout: 3 * time.Second}
	assert.Equal(t, 250*time.Millisecond, d.resolveTimeout(json.RawMessage(`{"timeout_seconds":0.25}`), spec))
}

func TestDispatch_UsesRegisteredSpecTimeoutWhenArgsCarryNone(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(tool.Spec{
		Definition: tool.Definition{Name: "slow"},
		Timeout:    50 * time.Millisecond,
		Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
			time.Sleep(5 * time.Second)
			return json.RawMessage(`"done"`), false, nil
		},
	})

	d := New(r, interrupt.New(), 10*time.Second)
	results := d.Dispatch(context.Background(), []message.ToolCall{
		{ID: "c1", Name: "slow", Arguments: json.RawMessage(`{}`)},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].OutputString(), `"kind":"timeout"`)
}
