// Package dispatcher runs tool calls in parallel, one goroutine per call
// (C8), polls the interrupt bus (C9) on a short interval, and synthesizes
// is_error=true results for any call still outstanding when the bus fires,
// per spec.md §4.6/§5.
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
)

// maxOutputBytes is the combined stdout+stderr truncation limit for
// shell-like tools, per spec.md §4.6.
const maxOutputBytes = 12228

// pollInterval is the dispatcher's done-flag/interrupt-bus check cadence.
// The hard rule from spec.md §4.6 is that the loop exits on the very next
// check once done=true — not after some fixed heartbeat count.
const pollInterval = 50 * time.Millisecond

// DefaultTimeout applies when a tool call's arguments carry no per-call
// timeout, the tool's own Spec carries none either, and no env/config
// fallback was supplied to New.
const DefaultTimeout = 60 * time.Second

// Dispatcher runs tool calls against a registry.
type Dispatcher struct {
	registry        *tool.Registry
	bus             *interrupt.Bus
	fallbackTimeout time.Duration
}

// New creates a Dispatcher bound to a tool registry and the shared
// interrupt bus. fallbackTimeout is the configured/env fallback (spec.md
// §4.6, CLAUDE_C_BASH_TIMEOUT) consulted when a call carries no
// timeout_seconds argument and its Spec carries no Timeout; <= 0 means
// "use DefaultTimeout".
func New(registry *tool.Registry, bus *interrupt.Bus, fallbackTimeout time.Duration) *Dispatcher {
	if fallbackTimeout <= 0 {
		fallbackTimeout = DefaultTimeout
	}
	return &Dispatcher{registry: registry, bus: bus, fallbackTimeout: fallbackTimeout}
}

// Dispatch runs every call in calls concurrently and returns one
// message.ToolResult per call, in the same order as calls, regardless of
// completion order. On interrupt, calls still outstanding at that moment
// get a synthetic is_error=true "interrupted" result instead of waiting for
// their worker to finish.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []message.ToolCall) []message.ToolResult {
	if len(calls) == 0 {
		return nil
	}

	results := make([]message.ToolResult, len(calls))
	done := make([]bool, len(calls))

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	grp, grpCtx := errgroup.WithContext(workerCtx)
	for i, call := range calls {
		i, call := i, call
		grp.Go(func() error {
			results[i] = d.runOne(grpCtx, call)
			done[i] = true
			return nil
		})
	}

	joined := make(chan struct{})
	go func() {
		_ = grp.Wait()
		close(joined)
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-joined:
			return results
		default:
		}

		if d.bus.IsSet() {
			cancel()
			<-joined
			for i, call := range calls {
				if !done[i] {
					results[i] = message.NewTextResult(call.ID, call.Name, "interrupted", true)
				}
			}
			return results
		}

		select {
		case <-joined:
			return results
		case <-ticker.C:
		}
	}
}

// runOne executes a single tool call, applying its timeout and truncating
// oversized output, and never returns a Go error — failures are encoded as
// message.ToolResult.IsError, matching internal/tool.Registry's contract.
func (d *Dispatcher) runOne(ctx context.Context, call message.ToolCall) message.ToolResult {
	spec, _ := d.registry.Lookup(call.Name)
	timeout := d.resolveTimeout(call.Arguments, spec)
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan message.ToolResult, 1)
	go func() {
		done <- d.registry.Invoke(callCtx, call)
	}()

	select {
	case result := <-done:
		return truncate(result)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return message.NewTextResult(call.ID, call.Name, "interrupted", true)
		}
		return message.ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Output:     json.RawMessage(fmt.Sprintf(`{"kind":"timeout","message":"tool call exceeded %s"}`, timeout)),
			IsError:    true,
		}
	}
}

// truncate applies spec.md §4.6's output-truncation rule. It only fires for
// shell-like tools whose Output is a plain JSON string (stdout+stderr
// combined by the tool handler); structured (object/array) results from
// non-shell tools pass through untouched.
func truncate(result message.ToolResult) message.ToolResult {
	var text string
	if err := json.Unmarshal(result.Output, &text); err != nil {
		return result
	}
	if len(text) <= maxOutputBytes {
		return result
	}

	truncated := truncateValidUTF8(text, maxOutputBytes)
	wrapped, err := json.Marshal(struct {
		Output            string `json:"output"`
		TruncationWarning string `json:"truncation_warning"`
	}{
		Output:            truncated,
		TruncationWarning: fmt.Sprintf("output truncated after %d of %d bytes", len(truncated), len(text)),
	})
	if err != nil {
		return result
	}
	result.Output = wrapped
	return result
}

// truncateValidUTF8 cuts at n bytes, then backs off while the tail is a
// UTF-8 continuation byte, so the result never ends mid-codepoint.
func truncateValidUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// timeoutArgs is the subset of a tool call's arguments this package reads
// for a per-call timeout override, per spec.md §4.6.
type timeoutArgs struct {
	TimeoutSeconds *float64 `json:"timeout_seconds"`
}

// resolveTimeout applies spec.md §4.6's precedence: a call's own
// timeout_seconds argument wins; failing that, the tool's registered
// Spec.Timeout; failing that, the dispatcher's configured/env fallback.
func (d *Dispatcher) resolveTimeout(rawArgs json.RawMessage, spec tool.Spec) time.Duration {
	var args timeoutArgs
	if err := json.Unmarshal(rawArgs, &args); err == nil && args.TimeoutSeconds != nil && *args.TimeoutSeconds > 0 {
		return time.Duration(*args.TimeoutSeconds * float64(time.Second))
	}
	if spec.Timeout > 0 {
		return spec.Timeout
	}
	return d.fallbackTimeout
}
