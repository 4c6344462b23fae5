package tools

import (
	"context"
	"testing"
)

func TestTextCaseTool(t *testing.T) {
	tool := &TextCaseTool{}

	schema := tool.GetSchema()
	if schema.Title != "text_case" {
		t.Errorf("Expected title 'text_case', got %s", schema.Title)
	}
	if len(schema.Required) != 2 {
		t.Error("Expected 'text' and 'case' to be required")
	}

	result, err := tool.Execute(context.Background(), map[string]any{"text": "hello world", "case": "upper"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "HELLO WORLD" {
		t.Errorf("Expected 'HELLO WORLD', got '%s'", result)
	}

	result, err = tool.Execute(context.Background(), map[string]any{"text": "HELLO WORLD", "case": "lower"})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "hello world" {
		t.Errorf("Expected 'hello world', got '%s'", result)
	}
}

func TestTextCaseToolInvalidArgs(t *testing.T) {
	tool := &TextCaseTool{}

	if _, err := tool.Execute(context.Background(), map[string]any{"case": "upper"}); err == nil {
		t.Error("Expected error for missing text argument")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{"text": 123, "case": "upper"}); err == nil {
		t.Error("Expected error for non-string text argument")
	}
}

func TestWordCountTool(t *testing.T) {
	tool := &WordCountTool{}

	schema := tool.GetSchema()
	if schema.Title != "word_count" {
		t.Errorf("Expected title 'word_count', got %s", schema.Title)
	}

	testCases := []struct {
		input    string
		expected string
	}{
		{"hello world", "2"},
		{"one two three four five", "5"},
		{"   spaces   between   words   ", "3"},
		{"", "0"},
		{"single", "1"},
	}

	for _, tc := range testCases {
		result, err := tool.Execute(context.Background(), map[string]any{"text": tc.input})
		if err != nil {
			t.Fatalf("Unexpected error for input '%s': %v", tc.input, err)
		}
		if result != tc.expected {
			t.Errorf("For input '%s': expected '%s', got '%s'", tc.input, tc.expected, result)
		}
	}
}

func TestWordCountToolInvalidArgs(t *testing.T) {
	tool := &WordCountTool{}

	if _, err := tool.Execute(context.Background(), map[string]any{"text": []int{1, 2, 3}}); err == nil {
		t.Error("Expected error for non-string text argument")
	}
}

type fixedClock struct {
	at string
}

func (f *fixedClock) Now() string { return f.at }

func TestClockTool(t *testing.T) {
	tool := &ClockTool{}

	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("Expected error when clock context is not set")
	}

	tool.SetContext(&fixedClock{at: "2026-08-01T00:00:00Z"})

	schema := tool.GetSchema()
	if schema.Title != "current_time" {
		t.Errorf("Expected title 'current_time', got %s", schema.Title)
	}

	result, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != "2026-08-01T00:00:00Z" {
		t.Errorf("Expected the injected clock's value, got '%s'", result)
	}
}

func TestClockToolSetContextIgnoresWrongType(t *testing.T) {
	tool := &ClockTool{}
	clock := &fixedClock{at: "now"}
	tool.SetContext(clock)
	tool.SetContext("not a clock")
	if tool.clock != clock {
		t.Error("Expected clock to remain unchanged with invalid context")
	}
}

func TestDefaultNativeTools(t *testing.T) {
	defaults := DefaultNativeTools()
	if len(defaults) != 2 {
		t.Fatalf("Expected 2 default native tools, got %d", len(defaults))
	}
	if _, ok := defaults[0].(*TextCaseTool); !ok {
		t.Error("Expected first default tool to be TextCaseTool")
	}
	if _, ok := defaults[1].(*WordCountTool); !ok {
		t.Error("Expected second default tool to be WordCountTool")
	}
}

func TestNewToolRegistrySeedsDefaultsWhenNil(t *testing.T) {
	registry := NewToolRegistry(nil)
	if _, ok := registry.Get("text_case"); !ok {
		t.Error("Expected nil-seeded registry to register text_case by default")
	}
	if _, ok := registry.Get("word_count"); !ok {
		t.Error("Expected nil-seeded registry to register word_count by default")
	}
}
