// Package mcp defines the thin "find server for tool name, invoke tool"
// interface that internal/tool.Registry falls back to for MCP-backed
// tools. MCP's own stdio wire framing is explicitly out of scope (spec.md
// §1): this package never speaks to a subprocess directly.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nmnduy/claude-c-sub001/internal/message"
	"github.com/nmnduy/claude-c-sub001/internal/tool"
)

// Server identifies one configured MCP server.
type Server struct {
	Name string
}

// Resolver finds which configured server, if any, serves a given tool name,
// and invokes it. A real implementation speaks MCP's stdio JSON-RPC
// framing; that implementation lives outside this module's scope.
type Resolver interface {
	ServerForTool(name string) (Server, bool)
	Invoke(ctx context.Context, server Server, name string, args json.RawMessage) (message.ToolResult, error)
}

// AsToolFallback adapts a Resolver into the func internal/tool.Registry's
// SetFallback expects, so MCP-backed tools are dispatched through the same
// Registry.Invoke/dispatcher path as local tools.
func AsToolFallback(r Resolver) func(name string) (tool.Spec, bool) {
	return func(name string) (tool.Spec, bool) {
		server, ok := r.ServerForTool(name)
		if !ok {
			return tool.Spec{}, false
		}
		return tool.Spec{
			Definition: tool.Definition{Name: name},
			Handler: func(ctx context.Context, rawArguments json.RawMessage) (json.RawMessage, bool, error) {
				result, err := r.Invoke(ctx, server, name, rawArguments)
				if err != nil {
					return nil, true, fmt.Errorf("mcp: invoke %q on server %q: %w", name, server.Name, err)
				}
				return result.Output, result.IsError, nil
			},
		}, true
	}
}

// NoServers is a Resolver with no configured servers, the default when no
// MCP configuration is present.
type NoServers struct{}

func (NoServers) ServerForTool(name string) (Server, bool) { return Server{}, false }

func (NoServers) Invoke(ctx context.Context, server Server, name string, args json.RawMessage) (message.ToolResult, error) {
	return message.ToolResult{}, fmt.Errorf("mcp: no servers configured")
}
