package sessions

import (
	"testing"
	"time"

	"github.com/driftwave/chatcore/messages"
)

func textMsg(from messages.EntityID, text string) messages.Message {
	return messages.Message{From: from, Content: messages.MessageContent{Text: text}}
}

func toolResultMsg(id string) messages.Message {
	return messages.Message{
		From:    messages.Tool,
		Content: messages.MessageContent{ToolResults: []messages.ToolResult{{ToolCallID: id, Content: "result"}}},
	}
}

func TestTrimHistory(t *testing.T) {
	sys := textMsg(messages.System, "system prompt")
	u1 := textMsg(messages.User, "one")
	a1 := textMsg(messages.App, "two")
	u2 := textMsg(messages.User, "three")
	a2 := textMsg(messages.App, "four")

	tests := []struct {
		name       string
		history    []messages.Message
		maxHistory int
		wantLen    int
	}{
		{"no limit", []messages.Message{sys, u1, a1, u2, a2}, 0, 5},
		{"under budget", []messages.Message{sys, u1, a1}, 10, 3},
		{"trims to head plus window", []messages.Message{sys, u1, a1, u2, a2}, 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrimHistory(tt.history, tt.maxHistory)
			if len(got) != tt.wantLen {
				t.Errorf("TrimHistory() length = %d, want %d", len(got), tt.wantLen)
			}
			if len(got) > 0 && got[0].From.Kind != messages.EntitySystem {
				t.Errorf("TrimHistory() dropped the leading system message")
			}
		})
	}
}

func TestTrimHistoryDropsOrphanedToolResult(t *testing.T) {
	sys := textMsg(messages.System, "system prompt")
	history := []messages.Message{
		sys,
		textMsg(messages.User, "a"),
		toolResultMsg("1"),
		textMsg(messages.User, "b"),
	}

	got := TrimHistory(history, 2)
	if len(got) != 2 {
		t.Fatalf("TrimHistory() length = %d, want 2", len(got))
	}
	if got[1].From.Kind == messages.EntityTool {
		t.Errorf("TrimHistory() left an orphaned tool result at the new head")
	}
}

func TestCopyHistoryIsDefensive(t *testing.T) {
	history := []messages.Message{textMsg(messages.User, "hi")}
	cp := CopyHistory(history)
	cp[0].Content.Text = "mutated"
	if history[0].Content.Text != "hi" {
		t.Errorf("CopyHistory() did not return a defensive copy")
	}
}

func TestInitializeWithSystemPrompt(t *testing.T) {
	cfg := &SessionConfig{SystemPrompt: "be helpful"}

	got := InitializeWithSystemPrompt(nil, cfg)
	if len(got) != 1 || got[0].From.Kind != messages.EntitySystem {
		t.Fatalf("InitializeWithSystemPrompt() on empty history = %+v", got)
	}

	existing := []messages.Message{textMsg(messages.System, "already set"), textMsg(messages.User, "hi")}
	got = InitializeWithSystemPrompt(existing, cfg)
	if len(got) != 2 {
		t.Errorf("InitializeWithSystemPrompt() should not duplicate an existing system message, got %d messages", len(got))
	}

	got = InitializeWithSystemPrompt([]messages.Message{textMsg(messages.User, "hi")}, nil)
	if len(got) != 1 {
		t.Errorf("InitializeWithSystemPrompt() with nil config should be a no-op")
	}
}

func TestApplyContextUpdate(t *testing.T) {
	existing := &ContextInfo{Name: "ctx", Model: "gpt-4", MaxHistory: 20}
	update := &ContextUpdate{Model: "gpt-5"}

	got := ApplyContextUpdate(existing, update)
	if got.Model != "gpt-5" {
		t.Errorf("ApplyContextUpdate() Model = %q, want gpt-5", got.Model)
	}
	if got.Name != "ctx" {
		t.Errorf("ApplyContextUpdate() should preserve untouched fields, Name = %q", got.Name)
	}
	if got.MaxHistory != 20 {
		t.Errorf("ApplyContextUpdate() should preserve untouched MaxHistory, got %d", got.MaxHistory)
	}
	if got.LastUsed.IsZero() {
		t.Errorf("ApplyContextUpdate() should stamp LastUsed when unset")
	}

	stamped := time.Now().Add(-time.Hour)
	existing2 := &ContextInfo{LastUsed: stamped}
	got2 := ApplyContextUpdate(existing2, nil)
	if !got2.LastUsed.Equal(stamped) {
		t.Errorf("ApplyContextUpdate(nil) should leave LastUsed untouched")
	}
}
