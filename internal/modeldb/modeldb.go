// Package modeldb is a static model catalog for CLI/UI consumers (the
// `models` subcommand), mirroring the teacher's modeldb package's purpose
// verbatim: a lookup table for display metadata, never for provider
// pricing logic. Unlike the teacher, this package holds its catalog as a
// Go literal rather than an embedded models.dev api.json snapshot — no such
// snapshot was retrieved alongside this spec, so a hand-curated subset of
// the providers this repo actually wires (openai, bedrock) is carried
// in-tree instead.
package modeldb

// ProviderMapping maps this repo's internal provider names (as used in a
// "provider/model" reference, see internal/provider.ResolveModel) to the
// catalog keys below. Kept even though it's currently the identity mapping,
// matching the teacher's shape so a future models.dev-style provider id
// diverges cleanly from the internal name without touching callers.
var ProviderMapping = map[string]string{
	"bedrock": "bedrock",
	"openai":  "openai",
}

// Database is the root structure mapping provider IDs to Provider entries.
type Database map[string]Provider

// Provider describes one LLM provider and its known models.
type Provider struct {
	ID     string
	Name   string
	Env    []string
	Models map[string]Model
}

// Model describes one model's capabilities and limits, trimmed to the
// fields this repo's CLI actually displays.
type Model struct {
	ID        string
	Name      string
	ToolCall  bool
	Reasoning bool
	Limit     Limit
}

// Limit describes context and output token limits.
type Limit struct {
	Context int
	Output  int
}

var db = Database{
	"openai": {
		ID:   "openai",
		Name: "OpenAI-compatible",
		Env:  []string{"OPENAI_API_KEY"},
		Models: map[string]Model{
			"gpt-4o": {
				ID: "gpt-4o", Name: "GPT-4o",
				ToolCall: true, Reasoning: false,
				Limit: Limit{Context: 128000, Output: 16384},
			},
			"gpt-4o-mini": {
				ID: "gpt-4o-mini", Name: "GPT-4o mini",
				ToolCall: true, Reasoning: false,
				Limit: Limit{Context: 128000, Output: 16384},
			},
			"o1": {
				ID: "o1", Name: "o1",
				ToolCall: true, Reasoning: true,
				Limit: Limit{Context: 200000, Output: 100000},
			},
		},
	},
	"bedrock": {
		ID:   "bedrock",
		Name: "AWS Bedrock",
		Env:  []string{"AWS_REGION", "AWS_PROFILE"},
		Models: map[string]Model{
			"anthropic.claude-3-5-sonnet-20241022-v2:0": {
				ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", Name: "Claude 3.5 Sonnet",
				ToolCall: true, Reasoning: false,
				Limit: Limit{Context: 200000, Output: 8192},
			},
			"anthropic.claude-3-5-haiku-20241022-v1:0": {
				ID: "anthropic.claude-3-5-haiku-20241022-v1:0", Name: "Claude 3.5 Haiku",
				ToolCall: true, Reasoning: false,
				Limit: Limit{Context: 200000, Output: 8192},
			},
			"anthropic.claude-3-7-sonnet-20250219-v1:0": {
				ID: "anthropic.claude-3-7-sonnet-20250219-v1:0", Name: "Claude 3.7 Sonnet",
				ToolCall: true, Reasoning: true,
				Limit: Limit{Context: 200000, Output: 8192},
			},
		},
	},
}

// Load returns the static catalog. Kept as a function (rather than
// exporting db directly) so callers read the same way they would against
// the teacher's lazily-loaded embed, and so a future on-disk/embedded
// catalog can replace the body without an API break.
func Load() (Database, error) {
	return db, nil
}

// MustLoad returns the database; kept for parity with the teacher's
// lazily-loaded embed, even though the static literal here can't fail.
func MustLoad() Database {
	d, err := Load()
	if err != nil {
		panic("modeldb: " + err.Error())
	}
	return d
}

// GetProvider returns the provider for the given internal name.
func GetProvider(name string) (Provider, bool) {
	if mapped, ok := ProviderMapping[name]; ok {
		name = mapped
	}
	p, ok := db[name]
	return p, ok
}

// GetModel returns a model by provider name and model ID.
func GetModel(providerName, modelID string) (Model, bool) {
	p, ok := GetProvider(providerName)
	if !ok {
		return Model{}, false
	}
	m, ok := p.Models[modelID]
	return m, ok
}

// Providers returns every known provider ID (currently openai and
// bedrock). The order follows map iteration and is not stable.
func Providers() []string {
	ids := make([]string, 0, len(db))
	for id := range db {
		ids = append(ids, id)
	}
	return ids
}
