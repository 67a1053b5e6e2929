// Package translator converts between the internal OpenAI-shaped message
// schema and Anthropic's native "messages" wire shape, for the Bedrock
// provider. It implements spec.md §4.3 exactly, including the documented
// open question: null/empty-content messages are skipped on the way to
// Anthropic, matching the source's behavior rather than erroring, per
// spec.md §9 ("do not change behavior without evidence").
package translator

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
)

const anthropicVersion = "bedrock-2023-05-31"

// AnthropicRequest is the wire body POSTed to Bedrock's invoke endpoint.
type AnthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []AnthropicMessage `json:"messages"`
	Tools            []AnthropicTool    `json:"tools,omitempty"`
}

// AnthropicMessage is one turn in Anthropic's content-block shape.
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"` // string or []ContentBlock
}

// ContentBlock is one block of an Anthropic multi-part message.
type ContentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Input        any           `json:"input,omitempty"`
	ToolUseID    string        `json:"tool_use_id,omitempty"`
	Content      any           `json:"content,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// CacheControl marks a content block as a prompt-cache breakpoint, per
// Anthropic's "ephemeral" cache-control convention.
type CacheControl struct {
	Type string `json:"type"`
}

// AnthropicTool is Anthropic's tool-definition shape.
type AnthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// defaultMaxTokens is used when the caller doesn't specify one, per
// spec.md §4.3 ("default 8192 if absent").
const defaultMaxTokens = 8192

// OpenAIToAnthropic converts an ordered message history plus tool
// definitions into an Anthropic request body. maxCompletionTokens <= 0
// means "absent"; the default is applied. When enableCaching is true (the
// DISABLE_PROMPT_CACHING config flag is NOT set), the last content block of
// the final message is marked as an "ephemeral" cache-control breakpoint,
// so the provider caches everything up to the most recent turn.
func OpenAIToAnthropic(messages []message.Message, tools []tool.Definition, maxCompletionTokens int, enableCaching bool) (AnthropicRequest, error) {
	maxTokens := maxCompletionTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	req := AnthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
	}

	for _, t := range tools {
		req.Tools = append(req.Tools, AnthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}

	for i := 0; i < len(messages); i++ {
		m := messages[i]

		switch m.Role {
		case message.RoleSystem:
			// Invariant M2: at most one, at position 0.
			if req.System == "" {
				req.System = m.Content
			}

		case message.RoleUser:
			if m.Content == "" {
				// Open question (spec.md §9): skip empty-content user
				// messages, matching the source's data-loss-prone rule.
				continue
			}
			req.Messages = append(req.Messages, AnthropicMessage{Role: "user", Content: m.Content})

		case message.RoleAssistant:
			blocks, err := assistantBlocks(m)
			if err != nil {
				return AnthropicRequest{}, err
			}
			if len(blocks) == 0 {
				// Null content AND no tool calls: skip, per the same open
				// question as above.
				continue
			}
			if len(blocks) == 1 && blocks[0].Type == "text" {
				req.Messages = append(req.Messages, AnthropicMessage{Role: "assistant", Content: blocks[0].Text})
			} else {
				req.Messages = append(req.Messages, AnthropicMessage{Role: "assistant", Content: blocks})
			}

		case message.RoleTool:
			// Collect consecutive tool-role messages into one user message
			// with one tool_result block per result, preserving order.
			var results []ContentBlock
			for ; i < len(messages) && messages[i].Role == message.RoleTool; i++ {
				tm := messages[i]
				results = append(results, ContentBlock{
					Type:      "tool_result",
					ToolUseID: tm.ToolCallID,
					Content:   toolResultContent(tm),
				})
			}
			i-- // back up one since the for loop will advance
			req.Messages = append(req.Messages, AnthropicMessage{Role: "user", Content: results})
		}
	}

	if enableCaching && len(req.Messages) > 0 {
		applyCacheControl(&req.Messages[len(req.Messages)-1])
	}

	return req, nil
}

// applyCacheControl marks msg's last content block as an ephemeral cache
// breakpoint, wrapping a plain string Content into a single text block
// first if needed.
func applyCacheControl(msg *AnthropicMessage) {
	switch content := msg.Content.(type) {
	case string:
		if content == "" {
			return
		}
		msg.Content = []ContentBlock{{Type: "text", Text: content, CacheControl: &CacheControl{Type: "ephemeral"}}}
	case []ContentBlock:
		if len(content) == 0 {
			return
		}
		content[len(content)-1].CacheControl = &CacheControl{Type: "ephemeral"}
	}
}

// toolResultContent serializes ToolResult content as a string unless it is
// already array-shaped content blocks (pass-through per spec.md §4.3).
func toolResultContent(m message.Message) any {
	var maybeBlocks []ContentBlock
	if err := json.Unmarshal([]byte(m.Content), &maybeBlocks); err == nil && len(maybeBlocks) > 0 {
		allTyped := true
		for _, b := range maybeBlocks {
			if b.Type == "" {
				allTyped = false
				break
			}
		}
		if allTyped {
			return maybeBlocks
		}
	}
	return m.Content
}

func assistantBlocks(m message.Message) ([]ContentBlock, error) {
	var blocks []ContentBlock
	if m.Content != "" {
		blocks = append(blocks, ContentBlock{Type: "text", Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		var input any
		if len(tc.Arguments) > 0 {
			if err := json.Unmarshal(tc.Arguments, &input); err != nil {
				return nil, fmt.Errorf("translator: tool_call %s arguments: %w", tc.ID, err)
			}
		}
		blocks = append(blocks, ContentBlock{
			Type:  "tool_use",
			ID:    tc.ID,
			Name:  tc.Name,
			Input: input,
		})
	}
	return blocks, nil
}

// --- Anthropic -> OpenAI response ---

// ChatCompletion is the OpenAI chat-completions-shaped response the caller
// ultimately sees, regardless of which provider answered.
type ChatCompletion struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

// Choice is a single completion choice.
type Choice struct {
	Index        int           `json:"index"`
	Message      CompletionMsg `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

// CompletionMsg is the assistant message inside a Choice.
type CompletionMsg struct {
	Role      string             `json:"role"`
	Content   *string            `json:"content"`
	ToolCalls []message.ToolCall `json:"tool_calls,omitempty"`
}

// Usage is the OpenAI-shaped token usage block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnthropicResponse is the raw shape returned by Bedrock's invoke endpoint
// for an Anthropic model.
type AnthropicResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
	Usage      AnthropicUsage `json:"usage"`
}

// AnthropicUsage is Anthropic's usage block.
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// nowFunc is overridable in tests to keep Created deterministic.
var nowFunc = func() int64 { return time.Now().Unix() }

// AnthropicToOpenAI converts a Bedrock/Anthropic response into the
// OpenAI-shaped ChatCompletion, per spec.md §4.3.
func AnthropicToOpenAI(resp AnthropicResponse) (ChatCompletion, error) {
	id := resp.ID
	if id == "" {
		id = "bedrock-request"
	}
	model := resp.Model
	if model == "" {
		model = "claude-bedrock"
	}

	var text string
	var toolCalls []message.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.Text
		case "tool_use":
			argsJSON, err := json.Marshal(block.Input)
			if err != nil {
				return ChatCompletion{}, fmt.Errorf("translator: marshal tool_use input: %w", err)
			}
			toolCalls = append(toolCalls, message.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: argsJSON,
			})
		}
	}

	var content *string
	if text != "" {
		content = &text
	}

	finishReason := finishReasonFromStopReason(resp.StopReason)

	completion := ChatCompletion{
		ID:      id,
		Object:  "chat.completion",
		Created: nowFunc(),
		Model:   model,
		Choices: []Choice{{
			Index: 0,
			Message: CompletionMsg{
				Role:      "assistant",
				Content:   content,
				ToolCalls: toolCalls,
			},
			FinishReason: finishReason,
		}},
		Usage: Usage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	return completion, nil
}

func finishReasonFromStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn":
		return "stop"
	case "tool_use":
		return "tool_calls"
	case "max_tokens":
		return "length"
	case "":
		return "stop"
	default:
		return stopReason
	}
}
