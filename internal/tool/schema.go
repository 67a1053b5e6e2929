package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemav6 "github.com/santhosh-tekuri/jsonschema/v6"
)

// DefinitionFor builds a Definition whose Parameters is the JSON Schema
// generated from the Go struct type T, mirroring the teacher's
// `llm.ToolDefinitionFor[T]` generic helper (cmd/llm/main.go).
func DefinitionFor[T any](name, description string) Definition {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(new(T))
	schema.Version = ""

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("tool: reflect schema for %s: %v", name, err))
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		panic(fmt.Sprintf("tool: decode schema for %s: %v", name, err))
	}
	delete(params, "$schema")

	return Definition{Name: name, Description: description, Parameters: params}
}

// ValidateArguments checks a tool call's raw argument JSON against a
// compiled JSON Schema, used for MCP-supplied tool schemas (which are not
// known at compile time, unlike DefinitionFor's Go-struct-derived schemas).
func ValidateArguments(schemaDoc map[string]any, arguments json.RawMessage) error {
	if len(schemaDoc) == 0 {
		return nil
	}
	compiler := schemav6.NewCompiler()
	raw, err := json.Marshal(schemaDoc)
	if err != nil {
		return fmt.Errorf("tool: marshal schema: %w", err)
	}
	doc, err := schemav6.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("tool: unmarshal schema: %w", err)
	}
	const resourceName = "tool-args.json"
	if err := compiler.AddResource(resourceName, doc); err != nil {
		return fmt.Errorf("tool: add schema resource: %w", err)
	}
	compiled, err := compiler.Compile(resourceName)
	if err != nil {
		return fmt.Errorf("tool: compile schema: %w", err)
	}

	var instance any
	if len(arguments) == 0 {
		instance = map[string]any{}
	} else if err := json.Unmarshal(arguments, &instance); err != nil {
		return fmt.Errorf("tool: arguments not valid JSON: %w", err)
	}

	if err := compiled.Validate(instance); err != nil {
		return fmt.Errorf("tool: arguments failed schema validation: %w", err)
	}
	return nil
}
