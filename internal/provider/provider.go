// Package provider defines the uniform call_api contract (C5) that every
// backend implements, and the Registry that resolves a "provider/model"
// reference to one, generalized from the teacher's flat Provider/Registry
// pair. Unlike the teacher, a Provider here is single-attempt and
// non-streaming: it composes C1-C4 behind one call_api(state) -> ApiCallResult
// per spec.md §4.4, and retries live one layer up, in internal/agent.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
	"github.com/nmnduy/claude-c-sub001/internal/translator"
)

// ErrNotFound is returned when a provider or model reference cannot be
// resolved.
var ErrNotFound = errors.New("not found")

// CallOptions carries everything a provider needs for one API call.
type CallOptions struct {
	Model     string
	Messages  []message.Message
	Tools     []tool.Definition
	MaxTokens int
}

// ApiCallResult is the single return shape of call_api, per spec.md §4.4.
// RawResponseText and RequestJSON are always populated, even on error, so
// the call log (C6) has full fidelity regardless of outcome.
type ApiCallResult struct {
	Response        *translator.ChatCompletion
	RawResponseText string
	RequestJSON     []byte
	HTTPStatus      int
	DurationMS      int64
	ErrorMessage    string
	IsRetryable     bool
	Interrupted     bool
}

// Provider is the interface each backend must implement. Exactly one
// network attempt per CallAPI invocation.
type Provider interface {
	Name() string
	CallAPI(ctx context.Context, opts CallOptions) ApiCallResult
}

// Registry holds registered providers and resolves "provider/model" refs.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its Name().
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Provider returns the provider with the given name.
func (r *Registry) Provider(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// ResolveModel splits a "provider/model" reference.
func ResolveModel(ref string) (providerName, modelID string, err error) {
	parts := strings.SplitN(ref, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model reference %q, expected provider/model: %w", ref, ErrNotFound)
	}
	return parts[0], parts[1], nil
}

// CallAPI resolves opts.Model as "provider/model" and delegates.
func (r *Registry) CallAPI(ctx context.Context, opts CallOptions) (ApiCallResult, error) {
	providerName, modelID, err := ResolveModel(opts.Model)
	if err != nil {
		return ApiCallResult{}, err
	}
	p, err := r.Provider(providerName)
	if err != nil {
		return ApiCallResult{}, err
	}
	opts.Model = modelID
	return p.CallAPI(ctx, opts), nil
}
