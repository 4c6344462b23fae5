// Command chatcore-demo is a minimal terminal client over the chat
// controller core: one provider-agnostic conversation driven by
// whatever model, shell tools, and MCP servers are configured on the
// command line.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	chatlog "github.com/driftwave/chatcore/internal/log"
	"github.com/driftwave/chatcore/messages"
	"github.com/driftwave/chatcore/providers"
	"github.com/driftwave/chatcore/sessions"
	"github.com/driftwave/chatcore/tools"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

func userTextMessage(text string) messages.Message {
	return messages.Message{From: messages.User, Content: messages.MessageContent{Text: text}}
}

func main() {
	app := &cli.Command{
		Name:  "chatcore-demo",
		Usage: "Chat with a provider-agnostic bot over the chat controller core",
		Flags: defineFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := parseConfig(cmd)
			if err != nil {
				return err
			}
			return run(ctx, cfg)
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config) error {
	chatlog.InitLogger(cfg.Debug)

	botID, err := parseBotID(cfg.Model)
	if err != nil {
		return err
	}

	client, err := buildClient(cfg)
	if err != nil {
		return err
	}

	registry, err := loadTools(cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	session, err := loadSession(cfg)
	if err != nil {
		return err
	}

	prompt, err := readPrompt(cfg)
	if err != nil {
		return err
	}
	if prompt == "" {
		return fmt.Errorf("no prompt given: pass --prompt or pipe text on stdin")
	}

	controller := chat.NewController(client, registry)
	defer controller.Close()

	done := make(chan struct{})
	printer := newStreamPrinter(controller, botID, done, cfg.Quiet)
	controller.AppendPlugin(printer)

	session.AddMessage(userTextMessage(prompt))
	controller.DispatchTask(chat.Load(session.GetHistory(), &botID))
	controller.DispatchTask(chat.Send())

	<-done

	final := controller.State()
	if len(final.Messages) > 0 {
		session.Clear()
		for _, msg := range final.Messages {
			session.AddMessage(msg)
		}
	}
	return nil
}

func parseBotID(model string) (bot.ID, error) {
	provider, name, ok := strings.Cut(model, "/")
	if !ok {
		return bot.ID{}, fmt.Errorf("model must include provider prefix (e.g. openai/gpt-4o-mini), got %q", model)
	}
	return bot.ID{Provider: provider, Model: name}, nil
}

func buildClient(cfg *Config) (chat.BotClient, error) {
	clients := make(map[string]chat.BotClient, len(cfg.Endpoints))
	for name, ep := range cfg.Endpoints {
		if ep.baseURL == "" {
			continue
		}
		clients[name] = providers.NewChatCompletionsClient(name, ep.baseURL, ep.apiKey, nil)
	}
	if len(clients) == 0 {
		return nil, fmt.Errorf("no provider endpoints configured; pass --endpoint name=baseURL or set OPENAI_API_KEY")
	}
	return providers.NewMultiClient(clients), nil
}

func loadTools(cfg *Config) (*tools.ToolRegistry, error) {
	registry := tools.NewToolRegistry(nil)
	for _, path := range cfg.ToolPaths {
		if err := registry.LoadShellTool(path); err != nil {
			log.Printf("warning: failed to load shell tool %s: %v", path, err)
		}
	}
	if err := registry.LoadMCPServers(cfg.MCPServers); err != nil {
		return nil, fmt.Errorf("loading MCP servers: %w", err)
	}
	return registry, nil
}

func loadSession(cfg *Config) (sessions.Session, error) {
	config := &sessions.SessionConfig{
		MaxHistory:   cfg.MaxHistory,
		SystemPrompt: cfg.SystemPrompt,
	}

	if cfg.ContextID == "" {
		// No --context name given: this run isn't meant to be resumed,
		// so give it a throwaway unique name instead of a shared
		// "default" that concurrent anonymous runs would collide on.
		store := sessions.NewSyncMapSessionStore(config)
		return store.Get(uuid.NewString())
	}

	baseDir := cfg.ContextDir
	store, err := sessions.NewFileSessionStore(baseDir, config)
	if err != nil {
		return nil, fmt.Errorf("opening context store: %w", err)
	}
	return store.Get(cfg.ContextID)
}

func readPrompt(cfg *Config) (string, error) {
	if cfg.Prompt != "" {
		return cfg.Prompt, nil
	}
	stat, err := os.Stdin.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}
	data, err := io.ReadAll(bufio.NewReader(os.Stdin))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
