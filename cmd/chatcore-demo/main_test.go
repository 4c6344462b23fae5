package main

import "testing"

func TestParseBotID(t *testing.T) {
	id, err := parseBotID("openai/gpt-4o-mini")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Provider != "openai" || id.Model != "gpt-4o-mini" {
		t.Errorf("got %+v, want provider=openai model=gpt-4o-mini", id)
	}
}

func TestParseBotIDMissingProvider(t *testing.T) {
	if _, err := parseBotID("gpt-4o-mini"); err == nil {
		t.Error("expected error for model without provider prefix")
	}
}

func TestReadPromptFlagTakesPrecedence(t *testing.T) {
	cfg := &Config{Prompt: "hello"}
	got, err := readPrompt(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}
