package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) CallAPI(ctx context.Context, opts CallOptions) ApiCallResult {
	return ApiCallResult{HTTPStatus: 200, RawResponseText: "ok for " + opts.Model}
}

func TestResolveModel(t *testing.T) {
	name, model, err := ResolveModel("bedrock/anthropic.claude-3-5-haiku")
	require.NoError(t, err)
	assert.Equal(t, "bedrock", name)
	assert.Equal(t, "anthropic.claude-3-5-haiku", model)

	_, _, err = ResolveModel("no-slash-here")
	assert.Error(t, err)

	_, _, err = ResolveModel("/missing-provider")
	assert.Error(t, err)
}

func TestRegistry_CallAPIResolvesAndDelegates(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "openai"})

	result, err := r.CallAPI(context.Background(), CallOptions{Model: "openai/gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "ok for gpt-4o-mini", result.RawResponseText)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	_, err := r.CallAPI(context.Background(), CallOptions{Model: "missing/gpt-4o-mini"})
	assert.ErrorIs(t, err, ErrNotFound)
}
