package tools

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool is the generic interface every executable capability implements,
// whether it's backed by an MCP server, a shell script, or native Go
// code. The registry namespaces instances by server, per spec.md §4.4.
type Tool interface {
	GetName() string
	GetType() string   // "native", "shell", or "mcp"
	GetSource() string // server spec / command path / "builtin"
	GetSchema() *jsonschema.Schema
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// ToolCall represents a request to execute a tool, as surfaced to the
// controller on a message's content.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// ContextualTool is a tool that needs external state injected before
// it can execute, e.g. a logger or a per-session handle.
type ContextualTool interface {
	Tool
	SetContext(ctx any)
}

// ToolLoaderInfo describes one registered tool for display/persistence
// purposes (e.g. re-issuing --load-tool flags).
type ToolLoaderInfo struct {
	Name   string
	Type   string
	Source string
}
