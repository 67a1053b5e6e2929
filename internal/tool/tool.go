// Package tool defines the tool-registration surface (C13): the
// provider-neutral description of a callable tool, and the registry that
// C8's dispatcher consults to find a handler for a model-requested
// ToolCall. The bodies of concrete tools (bash, patch-apply, base64) are a
// spec.md Non-goal; this package provides the registration, schema
// validation, and timeout/truncation plumbing around them, plus a few
// trivial built-ins (echo, task-list) that exercise the same path.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nmnduy/claude-c-sub001/internal/message"
)

// Definition is the wire-neutral shape offered to a provider's tool list.
// translator.OpenAIToAnthropic and the OpenAI request builder both consume
// this directly, so there is exactly one definition of "what a tool looks
// like on the wire" in the whole module.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Handler executes a tool call and returns its result. It must not panic;
// any panic is recovered by the dispatcher and turned into an is_error
// result, but handlers are still expected to return errors normally.
type Handler func(ctx context.Context, rawArguments json.RawMessage) (output json.RawMessage, isError bool, err error)

// Spec is a registered tool: its wire Definition plus dispatch metadata.
type Spec struct {
	Definition Definition
	Handler    Handler
	// Timeout is the per-call deadline; zero means "use the dispatcher's
	// fallback timeout" (spec.md §4.6).
	Timeout time.Duration
	// Dangerous tools may warrant confirmation in a future UI layer; not
	// enforced here, just carried as metadata.
	Dangerous bool
}

// Registry is a concurrency-safe table of registered tools, keyed by name.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]Spec
	// fallback is consulted when no local Spec matches, e.g. an MCP-backed
	// tool; see internal/mcp for the "find server for tool name" contract.
	fallback func(name string) (Spec, bool)
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]Spec)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs[spec.Definition.Name] = spec
}

// SetFallback installs a lookup used when a name isn't locally registered,
// e.g. to delegate to internal/mcp.Resolver.ServerForTool.
func (r *Registry) SetFallback(f func(name string) (Spec, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

// Lookup finds a Spec by tool name, consulting the fallback if set.
func (r *Registry) Lookup(name string) (Spec, bool) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	fallback := r.fallback
	r.mu.RUnlock()
	if ok {
		return spec, true
	}
	if fallback != nil {
		return fallback(name)
	}
	return Spec{}, false
}

// Definitions returns the wire Definition for every registered tool, in a
// stable order (by name), for handing to a provider's tool list.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.specs[name].Definition)
	}
	return defs
}

// Invoke runs the tool for a single ToolCall, producing a paired
// message.ToolResult. It never returns a Go error for a failed tool
// execution — failures are encoded as IsError results, per spec.md §4.6
// ("tool errors never abort the loop").
func (r *Registry) Invoke(ctx context.Context, call message.ToolCall) message.ToolResult {
	spec, ok := r.Lookup(call.Name)
	if !ok {
		return message.NewTextResult(call.ID, call.Name, fmt.Sprintf("unknown tool %q", call.Name), true)
	}

	if err := ValidateArguments(spec.Definition.Parameters, call.Arguments); err != nil {
		return message.NewTextResult(call.ID, call.Name, err.Error(), true)
	}

	out, isError, err := r.runWithRecover(ctx, spec, call.Arguments)
	if err != nil {
		return message.NewTextResult(call.ID, call.Name, err.Error(), true)
	}
	return message.ToolResult{ToolCallID: call.ID, Name: call.Name, Output: out, IsError: isError}
}

func (r *Registry) runWithRecover(ctx context.Context, spec Spec, args json.RawMessage) (out json.RawMessage, isError bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool %q panicked: %v", spec.Definition.Name, rec)
		}
	}()
	return spec.Handler(ctx, args)
}
