// Package convo holds the ordered conversation history (C7) and enforces
// the tool-call/tool-result pairing invariant (spec.md §4.6, invariants
// M1-M3): a narrow mutation surface so nothing outside this package can
// append a message that breaks pairing.
package convo

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/nmnduy/claude-c-sub001/internal/message"
)

// State is the ordered message history for one conversation.
type State struct {
	messages     []message.Message
	systemSet    bool
	pendingCalls []message.ToolCall // outstanding ids awaiting append_tool_results
}

// New returns an empty conversation.
func New() *State {
	return &State{}
}

// AppendSystem sets the system message, idempotently: a second call is a
// no-op, satisfying invariant M2 (at most one, at position 0).
func (s *State) AppendSystem(text string) {
	if s.systemSet {
		return
	}
	s.messages = append([]message.Message{{Role: message.RoleSystem, Content: text}}, s.messages...)
	s.systemSet = true
}

// AppendUser appends a user turn. Panics (programmer error, not a runtime
// condition) if tool_calls from a prior assistant message are still
// outstanding — callers must AppendToolResults first, per invariant M1.
func (s *State) AppendUser(text string) {
	s.mustBeSettled("AppendUser")
	s.messages = append(s.messages, message.Message{Role: message.RoleUser, Content: text})
}

// AppendAssistant appends the model's turn, recording any tool_calls as
// pending until AppendToolResults pairs them. Per spec.md §4's ToolCall
// contract ("id: string, stable, server-assigned when possible"), a call
// arriving with no id (some providers omit it) is assigned a generated one
// here, before it ever reaches the pairing invariant, so every pending call
// has a stable id to match against from this point on.
func (s *State) AppendAssistant(text string, toolCalls []message.ToolCall) {
	s.mustBeSettled("AppendAssistant")
	assigned := assignMissingIDs(toolCalls)
	s.messages = append(s.messages, message.Message{
		Role:      message.RoleAssistant,
		Content:   text, // never null on the wire, per M3
		ToolCalls: assigned,
	})
	if len(assigned) > 0 {
		s.pendingCalls = append([]message.ToolCall(nil), assigned...)
	}
}

// assignMissingIDs copies toolCalls, generating a nanoid for any call whose
// id is empty. Returns nil for an empty input, matching the zero value
// AppendAssistant already expects for "no tool_calls".
func assignMissingIDs(toolCalls []message.ToolCall) []message.ToolCall {
	if len(toolCalls) == 0 {
		return nil
	}
	out := append([]message.ToolCall(nil), toolCalls...)
	for i, tc := range out {
		if tc.ID == "" {
			out[i].ID = gonanoid.Must()
		}
	}
	return out
}

// AppendToolResults appends tool-role messages pairing the given results to
// the outstanding tool_calls. It returns an error if the set of ids doesn't
// exactly match what's pending, since that would violate M1 the moment the
// next provider call is made.
func (s *State) AppendToolResults(results []message.ToolResult) error {
	if len(s.pendingCalls) == 0 {
		if len(results) == 0 {
			return nil
		}
		return fmt.Errorf("convo: append_tool_results called with no pending tool_calls")
	}
	pendingIDs := make(map[string]bool, len(s.pendingCalls))
	for _, tc := range s.pendingCalls {
		pendingIDs[tc.ID] = true
	}
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if !pendingIDs[r.ToolCallID] {
			return fmt.Errorf("convo: tool_result %q does not match any pending tool_call", r.ToolCallID)
		}
		seen[r.ToolCallID] = true
	}
	for id := range pendingIDs {
		if !seen[id] {
			return fmt.Errorf("convo: missing tool_result for pending tool_call %q", id)
		}
	}

	for _, r := range results {
		s.messages = append(s.messages, message.Message{
			Role:       message.RoleTool,
			Content:    r.OutputString(),
			ToolCallID: r.ToolCallID,
		})
	}
	s.pendingCalls = nil
	return nil
}

// SynthesizeInterrupted appends is_error=true "interrupted" tool_results for
// every still-outstanding tool_call, per spec.md §4.6's interrupt rule, and
// clears the pending set. Safe to call when nothing is pending.
func (s *State) SynthesizeInterrupted() {
	if len(s.pendingCalls) == 0 {
		return
	}
	var synthesized []message.ToolResult
	for _, tc := range s.pendingCalls {
		synthesized = append(synthesized, message.NewTextResult(tc.ID, tc.Name, "interrupted", true))
	}
	// Bypass the matching check in AppendToolResults: this path exists
	// precisely because a clean id-for-id handoff didn't happen.
	for _, r := range synthesized {
		s.messages = append(s.messages, message.Message{
			Role:       message.RoleTool,
			Content:    r.OutputString(),
			ToolCallID: r.ToolCallID,
		})
	}
	s.pendingCalls = nil
}

// PendingToolCalls returns the tool_calls still awaiting a result.
func (s *State) PendingToolCalls() []message.ToolCall {
	return append([]message.ToolCall(nil), s.pendingCalls...)
}

// HasPendingToolCalls reports whether AppendToolResults or
// SynthesizeInterrupted must run before another AppendUser/AppendAssistant.
func (s *State) HasPendingToolCalls() bool {
	return len(s.pendingCalls) > 0
}

// Messages returns the full ordered history (a defensive copy).
func (s *State) Messages() []message.Message {
	return append([]message.Message(nil), s.messages...)
}

func (s *State) mustBeSettled(op string) {
	if len(s.pendingCalls) > 0 {
		panic(fmt.Sprintf("convo: %s called with %d unpaired tool_calls outstanding", op, len(s.pendingCalls)))
	}
}

// TurnCount returns the number of complete user-initiated turns eligible
// for eviction: the system message (if any) is never counted, and the
// current in-flight turn (if tool_calls are still pending) is never
// eligible either, per internal/tokencount's context-budget guard.
func (s *State) TurnCount() int {
	return len(s.turnBounds())
}

// EvictOldestTurns removes the oldest n complete turns (each spanning one
// user message through the assistant/tool messages that follow it, up to
// but not including the next user message or the end of history),
// preserving the system message and never touching a turn with pending
// tool_calls. It returns the number of turns actually removed, which may be
// less than n if fewer are eligible.
func (s *State) EvictOldestTurns(n int) int {
	if n <= 0 {
		return 0
	}
	bounds := s.turnBounds()
	if n > len(bounds) {
		n = len(bounds)
	}
	if n == 0 {
		return 0
	}
	cut := bounds[n-1].end
	var kept []message.Message
	if s.systemSet && len(s.messages) > 0 && s.messages[0].Role == message.RoleSystem {
		kept = append(kept, s.messages[0])
	}
	s.messages = append(kept, s.messages[cut:]...)
	return n
}

type turnBound struct{ start, end int }

// turnBounds finds every complete (non-pending) user-initiated turn's
// [start,end) index range within s.messages, skipping the system message.
func (s *State) turnBounds() []turnBound {
	var bounds []turnBound
	start := -1
	limit := len(s.messages)
	if len(s.pendingCalls) > 0 {
		// The tail turn is still open; don't offer it for eviction.
		limit = s.lastUserIndex()
	}
	for i := 0; i < limit; i++ {
		if s.messages[i].Role != message.RoleUser {
			continue
		}
		if start >= 0 {
			bounds = append(bounds, turnBound{start: start, end: i})
		}
		start = i
	}
	if start >= 0 {
		bounds = append(bounds, turnBound{start: start, end: limit})
	}
	return bounds
}

func (s *State) lastUserIndex() int {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == message.RoleUser {
			return i
		}
	}
	return len(s.messages)
}
