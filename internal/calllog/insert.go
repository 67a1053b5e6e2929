package calllog

import (
	"time"

	"github.com/buger/jsonparser"
)

// Insert writes one ApiCall row and, per invariant D1, a paired TokenUsage
// row only when rec.Status == "success" and rec.ResponseJSON parses with a
// usage object. It returns the inserted ApiCall's id.
func (s *Store) Insert(rec Record) (uint, error) {
	now := time.Now()
	call := ApiCall{
		Timestamp:    now.UTC().Format(time.RFC3339),
		SessionID:    rec.SessionID,
		ApiBaseURL:   rec.ApiBaseURL,
		RequestJSON:  rec.RequestJSON,
		HeadersJSON:  rec.HeadersJSON,
		ResponseJSON: rec.ResponseJSON,
		Model:        rec.Model,
		Status:       rec.Status,
		HTTPStatus:   rec.HTTPStatus,
		ErrorMessage: rec.ErrorMessage,
		DurationMS:   rec.DurationMS,
		ToolCount:    rec.ToolCount,
		CreatedAt:    now.Unix(),
	}

	if err := s.db.Create(&call).Error; err != nil {
		return 0, err
	}

	if rec.Status == "success" {
		if usage, ok := extractTokenUsage([]byte(rec.ResponseJSON)); ok {
			usage.ApiCallID = call.ID
			usage.SessionID = rec.SessionID
			usage.CreatedAt = now.Unix()
			if err := s.db.Create(&usage).Error; err != nil {
				return call.ID, err
			}
		}
	}

	return call.ID, nil
}

// extractTokenUsage scans response JSON's "usage" object with the
// provider-tolerant precedence of spec.md §4.5. ok is false when no usage
// object is present at all — callers then skip the TokenUsage insert
// entirely, per invariant D1.
func extractTokenUsage(responseJSON []byte) (TokenUsage, bool) {
	usageRaw, _, _, err := jsonparser.Get(responseJSON, "usage")
	if err != nil {
		return TokenUsage{}, false
	}

	var u TokenUsage

	// Totals: input_tokens/output_tokens (Anthropic-shape) first, else
	// prompt_tokens/completion_tokens (OpenAI-shape); total_tokens direct
	// if present, else derived.
	if v, err := jsonparser.GetInt(usageRaw, "input_tokens"); err == nil {
		u.PromptTokens = int(v)
	} else if v, err := jsonparser.GetInt(usageRaw, "prompt_tokens"); err == nil {
		u.PromptTokens = int(v)
	}
	if v, err := jsonparser.GetInt(usageRaw, "output_tokens"); err == nil {
		u.CompletionTokens = int(v)
	} else if v, err := jsonparser.GetInt(usageRaw, "completion_tokens"); err == nil {
		u.CompletionTokens = int(v)
	}
	if v, err := jsonparser.GetInt(usageRaw, "total_tokens"); err == nil {
		u.TotalTokens = int(v)
	} else {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}

	// cached_tokens: Moonshot direct field, else DeepSeek's nested
	// prompt_tokens_details.cached_tokens, else Anthropic's
	// cache_read_input_tokens.
	if v, err := jsonparser.GetInt(usageRaw, "cached_tokens"); err == nil {
		u.CachedTokens = int(v)
	} else if v, err := jsonparser.GetInt(usageRaw, "prompt_tokens_details", "cached_tokens"); err == nil {
		u.CachedTokens = int(v)
	} else if v, err := jsonparser.GetInt(usageRaw, "cache_read_input_tokens"); err == nil {
		u.CachedTokens = int(v)
	}

	// hit/miss: DeepSeek direct fields only.
	if v, err := jsonparser.GetInt(usageRaw, "prompt_cache_hit_tokens"); err == nil {
		u.PromptCacheHitTokens = int(v)
	}
	if v, err := jsonparser.GetInt(usageRaw, "prompt_cache_miss_tokens"); err == nil {
		u.PromptCacheMissTokens = int(v)
	}

	return u, true
}
