package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Built-in native tools registered by default so a bot always has
// something to call without configuring a shell or MCP server.

// TextCaseTool upper/lowercases text, useful for exercising the
// tool-call loop end to end without any external process.
type TextCaseTool struct{}

func (t *TextCaseTool) GetName() string   { return "text_case" }
func (t *TextCaseTool) GetType() string   { return "native" }
func (t *TextCaseTool) GetSource() string { return "builtin" }

func (t *TextCaseTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "text_case",
		Description: "Change the case of a string",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"text": {
				Type:        "string",
				Description: "The text to transform",
			},
			"case": {
				Type:        "string",
				Description: "Target case",
				Enum:        []any{"upper", "lower"},
			},
		},
		Required: []string{"text", "case"},
	}
}

func (t *TextCaseTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text, ok := args["text"].(string)
	if !ok {
		return "", fmt.Errorf("text must be a string")
	}
	switch args["case"] {
	case "lower":
		return strings.ToLower(text), nil
	default:
		return strings.ToUpper(text), nil
	}
}

// WordCountTool counts words in text, the other half of the
// zero-dependency builtin pair seeded by DefaultNativeTools.
type WordCountTool struct{}

func (t *WordCountTool) GetName() string   { return "word_count" }
func (t *WordCountTool) GetType() string   { return "native" }
func (t *WordCountTool) GetSource() string { return "builtin" }

func (t *WordCountTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "word_count",
		Description: "Count words in text",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"text": {
				Type:        "string",
				Description: "The text to count words in",
			},
		},
		Required: []string{"text"},
	}
}

func (t *WordCountTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text, ok := args["text"].(string)
	if !ok {
		return "", fmt.Errorf("text must be a string")
	}
	return fmt.Sprintf("%d", len(strings.Fields(text))), nil
}

// Clock is injected into ClockTool via SetContext, kept as an
// interface rather than calling time.Now() directly so tests can
// supply a fixed instant.
type Clock interface {
	Now() string
}

// ClockTool is an example of a contextual tool: it needs a dependency
// injected at load time rather than taking everything through its
// argument schema, the pattern MCP-less deployments use for tools that
// need access to host state (the current time, the active session,
// environment info).
type ClockTool struct {
	clock Clock
}

func (t *ClockTool) GetName() string   { return "current_time" }
func (t *ClockTool) GetType() string   { return "native" }
func (t *ClockTool) GetSource() string { return "builtin" }

func (t *ClockTool) SetContext(ctx any) {
	if clock, ok := ctx.(Clock); ok {
		t.clock = clock
	}
}

func (t *ClockTool) GetSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Title:       "current_time",
		Description: "Get the current time as seen by the host process",
		Type:        "object",
		Properties:  map[string]*jsonschema.Schema{},
	}
}

func (t *ClockTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	if t.clock == nil {
		return "", fmt.Errorf("no clock context available")
	}
	return t.clock.Now(), nil
}
