package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
	return args, false, nil
}

func TestRegistry_InvokeKnownTool(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Definition: Definition{Name: "echo"}, Handler: echoHandler})

	result := r.Invoke(context.Background(), message.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"a":1}`)})
	assert.Equal(t, "c1", result.ToolCallID)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"a":1}`, string(result.Output))
}

func TestRegistry_InvokeUnknownToolIsError(t *testing.T) {
	r := NewRegistry()
	result := r.Invoke(context.Background(), message.ToolCall{ID: "c1", Name: "missing"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.OutputString(), "unknown tool")
}

func TestRegistry_PanicRecoveredAsError(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Definition: Definition{Name: "boom"}, Handler: func(ctx context.Context, args json.RawMessage) (json.RawMessage, bool, error) {
		panic("kaboom")
	}})
	result := r.Invoke(context.Background(), message.ToolCall{ID: "c1", Name: "boom"})
	assert.True(t, result.IsError)
	assert.Contains(t, result.OutputString(), "kaboom")
}

func TestRegistry_Fallback(t *testing.T) {
	r := NewRegistry()
	called := false
	r.SetFallback(func(name string) (Spec, bool) {
		called = true
		if name == "mcp_tool" {
			return Spec{Definition: Definition{Name: name}, Handler: echoHandler}, true
		}
		return Spec{}, false
	})
	result := r.Invoke(context.Background(), message.ToolCall{ID: "c1", Name: "mcp_tool", Arguments: json.RawMessage(`"ok"`)})
	require.True(t, called)
	assert.False(t, result.IsError)
}

func TestRegistry_DefinitionsStableOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Definition: Definition{Name: "zeta"}, Handler: echoHandler})
	r.Register(Spec{Definition: Definition{Name: "alpha"}, Handler: echoHandler})
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "alpha", defs[0].Name)
	assert.Equal(t, "zeta", defs[1].Name)
}

type weatherParams struct {
	Location string `json:"location" jsonschema:"description=City name,required"`
}

func TestDefinitionFor_GeneratesSchema(t *testing.T) {
	def := DefinitionFor[weatherParams]("get_weather", "Get weather for a city")
	assert.Equal(t, "get_weather", def.Name)
	require.NotNil(t, def.Parameters)
	assert.Equal(t, "object", def.Parameters["type"])
}

func TestValidateArguments(t *testing.T) {
	schemaDoc := map[string]any{
		"type":       "object",
		"properties": map[string]any{"location": map[string]any{"type": "string"}},
		"required":   []any{"location"},
	}
	require.NoError(t, ValidateArguments(schemaDoc, json.RawMessage(`{"location":"Paris"}`)))
	assert.Error(t, ValidateArguments(schemaDoc, json.RawMessage(`{}`)))
}

func TestValidateArguments_EmptySchemaAlwaysPasses(t *testing.T) {
	require.NoError(t, ValidateArguments(nil, json.RawMessage(`{}`)))
}
