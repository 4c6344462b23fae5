package chat

import (
	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/messages"
)

// TaskKind tags which high-level operation a Task performs, per
// spec.md §4.1.
type TaskKind uint8

const (
	TaskLoad TaskKind = iota
	TaskSend
	TaskStop
	TaskExecute
)

// Task is a high-level operation dispatched to the controller.
type Task struct {
	Kind TaskKind

	// Load
	LoadMessages []messages.Message
	LoadBotID    *bot.ID

	// Execute
	ExecuteToolCalls []messages.ToolCall
	ExecuteBotID     bot.ID
}

// Load builds a TaskLoad task: replace messages with persisted
// history and select botID.
func Load(history []messages.Message, botID *bot.ID) Task {
	return Task{Kind: TaskLoad, LoadMessages: history, LoadBotID: botID}
}

// Send builds a TaskSend task.
func Send() Task {
	return Task{Kind: TaskSend}
}

// Stop builds a TaskStop task.
func Stop() Task {
	return Task{Kind: TaskStop}
}

// Execute builds a TaskExecute task: run approved tool calls against
// botID and re-send.
func Execute(toolCalls []messages.ToolCall, botID bot.ID) Task {
	return Task{Kind: TaskExecute, ExecuteToolCalls: toolCalls, ExecuteBotID: botID}
}
