// Package tokencount implements the context-budget guard referenced in
// spec.md §7 ("implementation-defined; not part of this spec's contract")
// and grounded in the teacher's own tiktoken-go dependency, otherwise
// unused by the distilled spec, plus the ContextMaxTokens/ContextWarnRatio/
// ContextHardRatio fields of the retrieval pack's agent loop example.
//
// Before every C5 call, internal/agent estimates the conversation's token
// count with Estimate; at the warn ratio it logs a WARN, and at the hard
// ratio it evicts the oldest non-pinned messages (never the system message,
// never one half of an unpaired tool_call/tool_result) until the estimate
// is back under budget. This is purely additive: it never violates
// invariants M1-M3, since eviction only ever removes complete,
// already-paired turns.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/nmnduy/claude-c-sub001/internal/convo"
	"github.com/nmnduy/claude-c-sub001/internal/message"
)

var loaderOnce sync.Once

// useOfflineLoader installs tiktoken-go-loader's embedded BPE ranks so
// Estimate works without a network fetch on first use, matching the
// teacher's offline-friendly posture (go.mod already carries this
// dependency; the distilled spec just never exercised it).
func useOfflineLoader() {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})
}

// tokensPerMessage/tokensPerName follow the cl100k-family accounting
// convention (<|start|>{role}\n{content}<|end|>\n) used by OpenAI's own
// cookbook and mirrored in the pack's token-counting code; exact down to
// models tiktoken-go doesn't specifically recognize, which all fall back to
// the cl100k_base encoding below.
const (
	tokensPerMessage = 3
	tokensPerReply   = 3
)

// fallbackEncoding is used whenever EncodingForModel doesn't recognize the
// model string (e.g. a Bedrock Anthropic model ID) — cl100k_base is a
// reasonable universal estimate for a context-budget guard, which only
// needs to be in the right ballpark, not exact.
const fallbackEncoding = "cl100k_base"

func encoderFor(model string) (*tiktoken.Tiktoken, error) {
	useOfflineLoader()
	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	return tiktoken.GetEncoding(fallbackEncoding)
}

// Estimate returns the approximate token count a provider would bill for
// sending messages, including the per-message/per-reply overhead tokens.
// model selects the encoding; an unrecognized model name falls back to
// cl100k_base rather than erroring, since this is a budget guard, not a
// billing calculation.
func Estimate(model string, messages []message.Message) (int, error) {
	enc, err := encoderFor(model)
	if err != nil {
		return 0, err
	}

	total := tokensPerReply
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Content, nil, nil))
		total += len(enc.Encode(string(m.Role), nil, nil))
		for _, tc := range m.ToolCalls {
			total += len(enc.Encode(tc.Name, nil, nil))
			total += len(enc.Encode(string(tc.Arguments), nil, nil))
		}
	}
	return total, nil
}

// Budget holds the three context-budget thresholds, grounded on the pack's
// AgentLoopConfig.ContextMaxTokens/ContextWarnRatio/ContextHardRatio.
type Budget struct {
	MaxTokens int
	WarnRatio float64
	HardRatio float64
}

// DefaultBudget matches the pack example's defaults.
func DefaultBudget() Budget {
	return Budget{MaxTokens: 128000, WarnRatio: 0.7, HardRatio: 0.85}
}

// WarnThreshold and HardThreshold return the absolute token counts the
// ratios correspond to.
func (b Budget) WarnThreshold() int { return int(float64(b.MaxTokens) * b.WarnRatio) }
func (b Budget) HardThreshold() int { return int(float64(b.MaxTokens) * b.HardRatio) }

// GuardResult reports what Enforce did, for internal/agent's turn-boundary
// logging.
type GuardResult struct {
	EstimatedTokens int
	WarnCrossed     bool
	EvictedTurns    int
}

// Enforce estimates state's token count and, at the hard ratio, evicts the
// oldest complete turns (via convo.State.EvictOldestTurns, which already
// refuses to touch the system message or a pending tool_call/tool_result
// pair) until the estimate drops back under the hard threshold or no more
// turns are eligible. At the warn ratio alone it takes no action; the
// caller is expected to log GuardResult.WarnCrossed.
func Enforce(model string, state *convo.State, budget Budget) (GuardResult, error) {
	est, err := Estimate(model, state.Messages())
	if err != nil {
		return GuardResult{}, err
	}
	result := GuardResult{EstimatedTokens: est, WarnCrossed: est >= budget.WarnThreshold()}

	for est >= budget.HardThreshold() {
		if state.EvictOldestTurns(1) == 0 {
			break
		}
		result.EvictedTurns++
		est, err = Estimate(model, state.Messages())
		if err != nil {
			return result, err
		}
	}
	result.EstimatedTokens = est
	return result, nil
}
