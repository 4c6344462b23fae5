package sessions

import (
	"time"

	"dario.cat/mergo"

	"github.com/driftwave/chatcore/messages"
)

// TrimHistory keeps the first message (the system prompt, if any) and
// the most recent maxHistory messages, dropping an orphaned tool
// result left dangling at the new head (a provider rejects a tool
// message with no preceding tool_calls).
func TrimHistory(history []messages.Message, maxHistory int) []messages.Message {
	if maxHistory == 0 || len(history) <= maxHistory+1 {
		return history
	}

	history = append(append([]messages.Message{}, history[:1]...), history[len(history)-maxHistory:]...)

	if len(history) > 1 && history[1].From.Kind == messages.EntityTool {
		history = append(history[:1], history[2:]...)
	}
	return history
}

// CopyHistory returns a defensive copy of history.
func CopyHistory(history []messages.Message) []messages.Message {
	out := make([]messages.Message, len(history))
	copy(out, history)
	return out
}

// InitializeWithSystemPrompt prepends config's system prompt to an
// empty or prompt-less history, per spec.md §4.1's Load semantics for
// a brand new context.
func InitializeWithSystemPrompt(history []messages.Message, config *SessionConfig) []messages.Message {
	if config == nil || config.SystemPrompt == "" {
		return history
	}
	if len(history) > 0 && history[0].From.Kind == messages.EntitySystem {
		return history
	}
	prompt := messages.Message{From: messages.System, Content: messages.MessageContent{Text: config.SystemPrompt}}
	return append([]messages.Message{prompt}, history...)
}

// ApplyContextUpdate merges the non-zero fields of update onto a copy
// of existing, leaving fields update leaves zero untouched. Mirrors
// the CLI's "update only what was flagged" semantics for editing a
// saved context in place.
func ApplyContextUpdate(existing *ContextInfo, update *ContextUpdate) *ContextInfo {
	if existing == nil {
		existing = &ContextInfo{}
	}
	if update == nil {
		out := *existing
		return &out
	}

	out := *existing
	if err := mergo.Merge(&out, ContextInfo(*update), mergo.WithOverride); err != nil {
		return existing
	}
	if out.LastUsed.IsZero() {
		out.LastUsed = time.Now()
	}
	return &out
}
