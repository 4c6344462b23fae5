package chat

import (
	"context"
	"encoding/json"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/messages"
)

// ToolSchema is the minimal shape the controller needs to pass tool
// definitions down to a BotClient, without depending on the tools
// package's registry machinery.
type ToolSchema struct {
	Server      string
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Delta is one item yielded by a BotClient's Send stream: either a
// new cumulative MessageContent, or a terminal error.
type Delta struct {
	Content messages.MessageContent
	Err     error
}

// BotClient is the polymorphic provider capability from spec.md §4.2:
// bots(), send(), clone(). Concrete adapters (chat-completions,
// image, realtime, staged) all implement this narrow interface rather
// than a class hierarchy, per the rationale in spec.md §9.
type BotClient interface {
	// Bots lists the models this client can serve.
	Bots(ctx context.Context) ([]bot.Bot, error)

	// Send streams a cumulative MessageContent for the given
	// conversation. The returned channel is closed when the stream
	// ends, whether successfully or with a final error Delta.
	Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []ToolSchema) (<-chan Delta, error)

	// Clone returns an independent copy sharing no mutable state with
	// the receiver (cheap: most fields are read-mostly config).
	Clone() BotClient
}

// ToolManager is the opaque tool-execution capability the controller
// holds, per spec.md §4.4. The controller has no tool registry of its
// own — it only knows how to call Execute.
type ToolManager interface {
	Execute(ctx context.Context, server, tool string, args map[string]any) (content string, isError bool, err error)
}
