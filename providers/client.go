package providers

import (
	"context"
	"fmt"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
	"golang.org/x/sync/errgroup"
)

// MultiClient fans Bots() out across every registered chat.BotClient
// and routes Send() to the client registered under the target
// bot.ID.Provider key, per spec.md §4.2's "provider client
// abstraction: a single polymorphic handle the controller holds,
// backed by however many concrete clients the embedding application
// wires up."
type MultiClient struct {
	clients map[string]chat.BotClient // keyed by bot.ID.Provider
}

// NewMultiClient builds a MultiClient from a provider-name-keyed set
// of backing clients.
func NewMultiClient(clients map[string]chat.BotClient) *MultiClient {
	return &MultiClient{clients: clients}
}

func (m *MultiClient) Clone() chat.BotClient {
	cp := make(map[string]chat.BotClient, len(m.clients))
	for k, v := range m.clients {
		cp[k] = v.Clone()
	}
	return &MultiClient{clients: cp}
}

// Bots fans out to every backing client concurrently and concatenates
// the results. A single client's failure doesn't fail the whole call;
// its bots are simply omitted.
func (m *MultiClient) Bots(ctx context.Context) ([]bot.Bot, error) {
	type result struct {
		bots []bot.Bot
		err  error
	}
	results := make([]result, len(m.clients))
	names := make([]string, 0, len(m.clients))
	for name := range m.clients {
		names = append(names, name)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		i, client := i, m.clients[name]
		g.Go(func() error {
			bots, err := client.Bots(gctx)
			results[i] = result{bots: bots, err: err}
			return nil
		})
	}
	_ = g.Wait()

	var all []bot.Bot
	var firstErr error
	for _, r := range results {
		if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
		all = append(all, r.bots...)
	}
	if len(all) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return all, nil
}

func (m *MultiClient) Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []chat.ToolSchema) (<-chan chat.Delta, error) {
	client, ok := m.clients[botID.Provider]
	if !ok {
		return nil, messages.NewClientError(messages.ErrorFormat, fmt.Sprintf("unknown provider %q", botID.Provider), nil)
	}
	return client.Send(ctx, botID, history, tools)
}
