package realtime

import "github.com/driftwave/chatcore/messages"

// TranscriptToMessages converts harvested voice turns into chat
// messages bracketed by synthetic system notices, per spec.md §4.3's
// "Conversation persistence": appended to the main chat history on
// session close.
func TranscriptToMessages(turns []TranscriptTurn, botID messages.EntityID) []messages.Message {
	out := make([]messages.Message, 0, len(turns)+2)
	out = append(out, messages.Message{From: messages.System, Content: messages.MessageContent{Text: "Voice call started."}})
	for _, t := range turns {
		from := messages.User
		if t.Role == "assistant" {
			from = botID
		}
		out = append(out, messages.Message{From: from, Content: messages.MessageContent{Text: t.Text}})
	}
	out = append(out, messages.Message{From: messages.System, Content: messages.MessageContent{Text: "Voice call ended."}})
	return out
}
