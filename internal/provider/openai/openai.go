// Package openai implements the OpenAI-compatible provider (C4/C5): it
// builds a chat-completions request directly in the OpenAI wire shape (no
// translator needed, since internal/message already speaks that dialect)
// and posts it through internal/transport's single-attempt client.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/nmnduy/claude-c-sub001/internal/interrupt"
	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/provider"
	"github.com/nmnduy/claude-c-sub001/internal/transport"
	"github.com/nmnduy/claude-c-sub001/internal/translator"
)

const providerName = "openai"

// DefaultBaseURL is the standard OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.openai.com"

// Provider implements provider.Provider against any OpenAI-compatible
// chat-completions endpoint.
type Provider struct {
	apiKey  string
	baseURL string
	client  *transport.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the default OpenAI endpoint, e.g. to point at Azure
// OpenAI, vLLM, or any compatible gateway. The resolved request URL is
// computed from this value by resolveURL: pass either a bare host or a full
// chat-completions path.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// New creates an OpenAI-compatible provider. bus is the shared interrupt
// bus (C9); pass interrupt.New() if this call path never needs interrupts.
func New(apiKey string, bus *interrupt.Bus, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		client:  transport.NewClient(bus),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// resolveURL applies the base_url rule: used as-is if it contains "/v1/",
// otherwise "/v1/chat/completions" is appended. A bare host like
// "https://api.openai.com" and a full override like
// "https://my-gateway/v1/chat/completions" both resolve correctly.
func resolveURL(baseURL string) string {
	if strings.Contains(baseURL, "/v1/") {
		return baseURL
	}
	return strings.TrimRight(baseURL, "/") + "/v1/chat/completions"
}

func (p *Provider) Name() string { return providerName }

// request is the OpenAI chat-completions request body.
type request struct {
	Model     string           `json:"model"`
	Messages  []messagePayload `json:"messages"`
	Tools     []toolPayload    `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

type messagePayload struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []toolCallItem `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type toolCallItem struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolPayload struct {
	Type     string          `json:"type"`
	Function functionPayload `json:"function"`
}

type functionPayload struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func buildRequest(opts provider.CallOptions) ([]byte, error) {
	r := request{Model: opts.Model, MaxTokens: opts.MaxTokens}

	for _, t := range opts.Tools {
		r.Tools = append(r.Tools, toolPayload{
			Type: "function",
			Function: functionPayload{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	for _, m := range opts.Messages {
		mp := messagePayload{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			mp.ToolCalls = append(mp.ToolCalls, toolCallItem{
				ID:   tc.ID,
				Type: "function",
				Function: functionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		r.Messages = append(r.Messages, mp)
	}

	return json.Marshal(r)
}

// responsePayload mirrors the actual OpenAI chat-completions response wire
// shape: tool calls nest under "function", and its "arguments" field is
// itself a JSON-encoded string, not a bare object.
type responsePayload struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role      string  `json:"role"`
			Content   *string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Type     string `json:"type"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func parseResponse(raw []byte) (translator.ChatCompletion, error) {
	var payload responsePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return translator.ChatCompletion{}, fmt.Errorf("openai: decode response: %w", err)
	}

	resp := translator.ChatCompletion{
		ID:      payload.ID,
		Object:  payload.Object,
		Created: payload.Created,
		Model:   payload.Model,
		Usage: translator.Usage{
			PromptTokens:     payload.Usage.PromptTokens,
			CompletionTokens: payload.Usage.CompletionTokens,
			TotalTokens:      payload.Usage.TotalTokens,
		},
	}
	for _, c := range payload.Choices {
		choice := translator.Choice{
			Index: c.Index,
			Message: translator.CompletionMsg{
				Role:    c.Message.Role,
				Content: c.Message.Content,
			},
			FinishReason: c.FinishReason,
		}
		for _, tc := range c.Message.ToolCalls {
			choice.Message.ToolCalls = append(choice.Message.ToolCalls, message.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: json.RawMessage(tc.Function.Arguments),
			})
		}
		resp.Choices = append(resp.Choices, choice)
	}
	return resp, nil
}

// CallAPI performs exactly one HTTP attempt, per spec.md §4.4.
func (p *Provider) CallAPI(ctx context.Context, opts provider.CallOptions) provider.ApiCallResult {
	body, err := buildRequest(opts)
	if err != nil {
		return provider.ApiCallResult{ErrorMessage: fmt.Sprintf("build request: %v", err)}
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("Authorization", "Bearer "+p.apiKey)

	result := p.client.Post(ctx, resolveURL(p.baseURL), headers, body)

	out := provider.ApiCallResult{
		RawResponseText: result.RawResponseText,
		RequestJSON:     result.RequestJSON,
		HTTPStatus:      result.StatusCode,
		DurationMS:      result.DurationMS,
		ErrorMessage:    result.ErrorMessage,
		IsRetryable:     result.IsRetryable,
		Interrupted:     result.Interrupted,
	}
	if result.ErrorMessage != "" || result.Interrupted {
		return out
	}
	if out.HTTPStatus < 200 || out.HTTPStatus >= 300 {
		out.ErrorMessage = fmt.Sprintf("openai: HTTP %d: %s", out.HTTPStatus, out.RawResponseText)
		return out
	}

	completion, err := parseResponse([]byte(result.RawResponseText))
	if err != nil {
		out.ErrorMessage = err.Error()
		return out
	}
	out.Response = &completion
	return out
}
