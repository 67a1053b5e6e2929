// Package message defines the wire-agnostic conversation data model: roles,
// messages, tool calls and tool results. It mirrors the OpenAI chat-completions
// shape closely enough that no translation is needed for OpenAI-compatible
// providers, while staying provider-neutral for Bedrock/Anthropic translation.
package message

import "encoding/json"

// Role identifies who produced a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
//
// Arguments is kept as raw textual JSON (json.RawMessage) to satisfy the
// OpenAI wire shape, which string-encodes function arguments.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one turn in the conversation history.
//
// Invariant M3: Content is never emitted as a null on the wire. A nil-content
// assistant message carrying ToolCalls is serialized with Content == "".
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolResult is the outcome of executing one ToolCall.
//
// Output may encode structured data (JSON) or plain text; callers decide.
// When a provider's wire shape demands a string (Anthropic's tool_result
// content block), the translator serializes Output accordingly.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Output     json.RawMessage `json:"output"`
	IsError    bool            `json:"is_error"`
}

// NewTextResult builds a ToolResult whose Output is a JSON string literal.
func NewTextResult(toolCallID, name, text string, isError bool) ToolResult {
	encoded, _ := json.Marshal(text)
	return ToolResult{
		ToolCallID: toolCallID,
		Name:       name,
		Output:     encoded,
		IsError:    isError,
	}
}

// OutputString returns Output decoded as a plain string when it was encoded
// via NewTextResult or is already a bare JSON string; otherwise it falls back
// to the raw JSON bytes.
func (r ToolResult) OutputString() string {
	var s string
	if err := json.Unmarshal(r.Output, &s); err == nil {
		return s
	}
	return string(r.Output)
}

// IsAssistantWithToolCalls reports whether m is an assistant message that
// requested one or more tool calls (the left side of invariant M1).
func (m Message) IsAssistantWithToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}
