package providers

import (
	"context"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
	"github.com/driftwave/chatcore/realtime"
)

// RealtimeClient implements chat.BotClient for realtime-capable bots,
// per spec.md §4.2.5. Send does not send chat messages; it opens a
// WebSocket and returns a single MessageContent carrying an Upgrade,
// handing the interactive audio session off to the plugin chain.
type RealtimeClient struct {
	Provider string
	Model    string
	BaseURL  string // wss://...
	APIKey   string

	InterruptionEnabled bool
	DefaultConfig        realtime.SessionConfig
}

func NewRealtimeClient(provider, model, baseURL, apiKey string, cfg realtime.SessionConfig) *RealtimeClient {
	return &RealtimeClient{Provider: provider, Model: model, BaseURL: baseURL, APIKey: apiKey, DefaultConfig: cfg, InterruptionEnabled: true}
}

func (c *RealtimeClient) Clone() chat.BotClient {
	cp := *c
	return &cp
}

// Bots returns a static hardcoded bot: realtime endpoints expose no
// models listing, per spec.md §4.2.5.
func (c *RealtimeClient) Bots(ctx context.Context) ([]bot.Bot, error) {
	return []bot.Bot{{
		ID:           bot.ID{Provider: c.Provider, Model: c.Model},
		Name:         c.Model,
		Avatar:       bot.Avatar{Grapheme: "R"},
		Capabilities: bot.CapabilitySet(0).WithCapability(bot.CapRealtime),
	}}, nil
}

func (c *RealtimeClient) Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []chat.ToolSchema) (<-chan chat.Delta, error) {
	out := make(chan chat.Delta, 1)
	go func() {
		defer close(out)
		session, err := realtime.Dial(ctx, realtime.Options{
			URL:                 c.BaseURL,
			Model:               c.Model,
			APIKey:              c.APIKey,
			Config:              c.DefaultConfig,
			InterruptionEnabled: c.InterruptionEnabled,
		})
		if err != nil {
			out <- chat.Delta{Err: messages.NewClientError(messages.ErrorNetwork, "realtime dial failed", err)}
			return
		}
		out <- chat.Delta{Content: messages.MessageContent{
			Upgrade: &messages.Upgrade{Realtime: session.Channel()},
		}}
	}()
	return out, nil
}
