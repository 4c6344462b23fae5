// Package providers implements the concrete chat.BotClient adapters
// from spec.md §4.2: an OpenAI-compatible chat-completions streaming
// client, an image-generation client, a staged "deep inquire" client,
// a realtime upgrade client, and a MultiClient that fans Bots/Send out
// across all of them by bot.ID.Provider.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
	"github.com/driftwave/chatcore/providers/sse"
	ai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ChatCompletionsClient implements chat.BotClient against an
// OpenAI-compatible /v1/chat/completions streaming endpoint, per
// spec.md §4.2.1-4.2.2. Streaming is hand-rolled on net/http and the
// sse package rather than go-openai's stream reader, because the
// timeout-retry tolerance and suppressed-emission tool-call buffering
// this spec requires aren't exposed by that client.
type ChatCompletionsClient struct {
	Provider string
	BaseURL  string
	APIKey   string
	Models   []string // bot.ID.Model values this client answers for
	HTTP     *http.Client

	// listClient is used only for Bots(): go-openai's model listing is
	// reused here to maximize use of the shared dependency rather than
	// hand-rolling a second /v1/models decoder.
	listClient *ai.Client
}

// NewChatCompletionsClient builds a client for provider against
// baseURL, advertising the given model names as bots.
func NewChatCompletionsClient(provider, baseURL, apiKey string, models []string) *ChatCompletionsClient {
	cfg := ai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ChatCompletionsClient{
		Provider:   provider,
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Models:     models,
		HTTP:       &http.Client{Timeout: 0},
		listClient: ai.NewClientWithConfig(cfg),
	}
}

func (c *ChatCompletionsClient) Clone() chat.BotClient {
	cp := *c
	return &cp
}

// Bots lists the statically configured models, or falls back to the
// live /v1/models listing when none were configured. Ids prefixed
// "dall-e" or "gpt-image" are excluded (those route through
// ImageClient instead), and results are sorted by name, per spec.md
// §4.2.1.
func (c *ChatCompletionsClient) Bots(ctx context.Context) ([]bot.Bot, error) {
	var ids []string
	if len(c.Models) > 0 {
		ids = c.Models
	} else {
		list, err := c.listClient.ListModels(ctx)
		if err != nil {
			return nil, messages.NewClientError(messages.ErrorNetwork, "list models failed", err)
		}
		for _, m := range list.Models {
			ids = append(ids, m.ID)
		}
	}

	bots := make([]bot.Bot, 0, len(ids))
	for _, id := range ids {
		if strings.HasPrefix(id, "dall-e") || strings.HasPrefix(id, "gpt-image") {
			continue
		}
		bots = append(bots, bot.Bot{
			ID:     bot.ID{Provider: c.Provider, Model: id},
			Name:   id,
			Avatar: bot.Avatar{Grapheme: strings.ToUpper(id[:1])},
		})
	}
	sort.Slice(bots, func(i, j int) bool { return bots[i].Name < bots[j].Name })
	return bots, nil
}

// chunk mirrors the subset of the OpenAI chat-completions streaming
// wire format this client consumes.
type chunk struct {
	Choices []struct {
		Delta struct {
			Content          string   `json:"content"`
			ReasoningContent string   `json:"reasoning_content"`
			Citations        []string `json:"citations"`
			ToolCalls        []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// pendingToolCall accumulates one index-keyed tool call across chunks.
// Buffered calls are promoted into content.ToolCalls once every one of
// them has arguments that parse as a JSON object, or when the stream
// finalizes (see emit).
type pendingToolCall struct {
	id        string
	name      string
	arguments strings.Builder
}

func (c *ChatCompletionsClient) Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []chat.ToolSchema) (<-chan chat.Delta, error) {
	reqBody, err := buildRequestBody(botID.Model, history, tools)
	if err != nil {
		return nil, messages.NewClientError(messages.ErrorFormat, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return nil, messages.NewClientError(messages.ErrorNetwork, "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, messages.NewClientError(messages.ErrorNetwork, "request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, messages.NewClientError(messages.ErrorResponse, fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	out := make(chan chat.Delta)
	go c.stream(ctx, resp.Body, out)
	return out, nil
}

func (c *ChatCompletionsClient) stream(ctx context.Context, body io.ReadCloser, out chan<- chat.Delta) {
	defer close(out)
	defer body.Close()

	reader := sse.NewReader(body)

	var text strings.Builder
	var reasoning strings.Builder
	var citations []string
	pending := map[int]*pendingToolCall{}
	var order []int
	thinkFilter := &thinkBlockFilter{}

	addCitation := func(url string) {
		for _, existing := range citations {
			if existing == url {
				return
			}
		}
		citations = append(citations, url)
	}

	// emit sends the current cumulative content, promoting buffered
	// tool calls into content.ToolCalls only once finalize (true at
	// stream end) or every buffered call's argument fragment already
	// parses as a complete JSON object — otherwise the emission is
	// suppressed entirely, per spec.md §4.2.1.
	emit := func(finalize bool) {
		if len(pending) > 0 && !finalize && !allToolCallsComplete(pending) {
			return
		}
		content := messages.MessageContent{Text: text.String(), Reasoning: reasoning.String(), Citations: citations}
		if len(pending) > 0 {
			content.ToolCalls = finalizeToolCalls(pending, order)
		}
		select {
		case out <- chat.Delta{Content: content}:
		case <-ctx.Done():
		}
	}

	for {
		event, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				emit(true)
				return
			}
			select {
			case out <- chat.Delta{Err: messages.NewClientError(messages.ErrorNetwork, "stream read failed", err)}:
			case <-ctx.Done():
			}
			return
		}
		if event.Data == sse.Done {
			emit(true)
			return
		}
		if event.Event != "" && event.Event != "message" {
			// Unknown event type: ignored, per spec.md §8.
			continue
		}

		var ch chunk
		if err := json.Unmarshal([]byte(event.Data), &ch); err != nil {
			zap.S().Debugw("chat_completions_decode_failed", "error", err)
			continue
		}
		if len(ch.Choices) == 0 {
			continue
		}
		choice := ch.Choices[0]
		delta := choice.Delta
		if delta.Content != "" {
			visible, think := thinkFilter.split(delta.Content)
			text.WriteString(visible)
			reasoning.WriteString(think)
		}
		if delta.ReasoningContent != "" {
			reasoning.WriteString(delta.ReasoningContent)
		}
		for _, url := range delta.Citations {
			addCitation(url)
		}
		for _, tc := range delta.ToolCalls {
			p, ok := pending[tc.Index]
			if !ok {
				p = &pendingToolCall{}
				pending[tc.Index] = p
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				p.id = tc.ID
			}
			if tc.Function.Name != "" {
				p.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				p.arguments.WriteString(tc.Function.Arguments)
			}
		}
		emit(choice.FinishReason == "tool_calls")
	}
}

// allToolCallsComplete reports whether every buffered tool call's
// argument fragment already parses as a JSON object, per spec.md
// §4.2.1's promotion rule.
func allToolCallsComplete(pending map[int]*pendingToolCall) bool {
	for _, p := range pending {
		args := p.arguments.String()
		if args == "" {
			return false // no argument fragment yet; finalize treats it as "{}"
		}
		var v any
		if err := json.Unmarshal([]byte(args), &v); err != nil {
			return false
		}
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// finalizeToolCalls promotes every buffered tool call into a
// messages.ToolCall, best-effort: an argument buffer that is empty,
// "null", or doesn't parse as a complete JSON object is replaced by
// "{}", so every emitted call carries a JSON object.
func finalizeToolCalls(pending map[int]*pendingToolCall, order []int) []messages.ToolCall {
	calls := make([]messages.ToolCall, 0, len(order))
	for _, idx := range order {
		p := pending[idx]
		args := p.arguments.String()
		var obj map[string]any
		if err := json.Unmarshal([]byte(args), &obj); err != nil || obj == nil {
			args = "{}"
		}
		calls = append(calls, messages.ToolCall{
			ID:         p.id,
			Name:       p.name,
			Arguments:  json.RawMessage(args),
			Permission: messages.PermissionPending,
		})
	}
	return calls
}

// wireContentPart is one element of OpenAI's multi-part message
// content, emitted only when a message carries at least one available
// attachment (spec.md §4.2.1); plain-text messages use the bare
// string Content field instead.
type wireContentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
	File *struct {
		Filename string `json:"filename"`
		FileData string `json:"file_data"`
	} `json:"file,omitempty"`
}

type wireMessage struct {
	Role       string             `json:"role"`
	Content    string             `json:"content,omitempty"`
	Parts      []wireContentPart  `json:"-"`
	ToolCallID string             `json:"tool_call_id,omitempty"`
	ToolCalls  []wireToolCall     `json:"tool_calls,omitempty"`
}

// MarshalJSON emits Content as a bare string normally, or as a
// multi-part array when Parts is populated.
func (m wireMessage) MarshalJSON() ([]byte, error) {
	type alias struct {
		Role       string         `json:"role"`
		Content    any            `json:"content,omitempty"`
		ToolCallID string         `json:"tool_call_id,omitempty"`
		ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	}
	a := alias{Role: m.Role, ToolCallID: m.ToolCallID, ToolCalls: m.ToolCalls}
	if len(m.Parts) > 0 {
		a.Content = m.Parts
	} else if m.Content != "" {
		a.Content = m.Content
	}
	return json.Marshal(a)
}

func buildRequestBody(model string, history []messages.Message, tools []chat.ToolSchema) ([]byte, error) {
	type wireRequest struct {
		Model    string        `json:"model"`
		Messages []wireMessage `json:"messages"`
		Stream   bool          `json:"stream"`
		Tools    []wireTool    `json:"tools,omitempty"`
	}

	var wireMessages []wireMessage
	for _, m := range history {
		role := entityRole(m.From)
		if len(m.Content.ToolResults) > 0 {
			for _, tr := range m.Content.ToolResults {
				content := tr.Content
				if runes := []rune(content); len(runes) > toolResultWireMaxChars {
					content = string(runes[:toolResultWireMaxChars])
				}
				wireMessages = append(wireMessages, wireMessage{Role: "tool", Content: content, ToolCallID: tr.ToolCallID})
			}
			continue
		}

		wm := wireMessage{Role: role}
		if parts, ok := buildContentParts(m.Content); ok {
			wm.Parts = parts
		} else {
			wm.Content = m.Content.Text
		}
		if len(m.Content.ToolCalls) > 0 {
			for _, tc := range m.Content.ToolCalls {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: wireFunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
		}
		wireMessages = append(wireMessages, wm)
	}

	req := wireRequest{Model: model, Messages: wireMessages, Stream: true}
	for _, t := range tools {
		req.Tools = append(req.Tools, wireTool{
			Type: "function",
			Function: wireFunctionDef{
				Name:        t.Server + "::" + t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return json.Marshal(req)
}

type wireFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function wireFunctionCall `json:"function"`
}

type wireFunctionDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireTool struct {
	Type     string          `json:"type"`
	Function wireFunctionDef `json:"function"`
}

func entityRole(id messages.EntityID) string {
	switch id.Kind {
	case messages.EntityUser:
		return "user"
	case messages.EntitySystem:
		return "system"
	case messages.EntityBot:
		return "assistant"
	case messages.EntityTool:
		return "tool"
	default:
		return "user"
	}
}

// toolResultWireMaxChars truncates tool-result text a second time at
// the wire boundary, per spec.md §4.4's guardrail (the first
// truncation happens earlier, in messages.NewToolResult).
const toolResultWireMaxChars = 16384

// buildContentParts builds the multi-part content array for a message
// carrying at least one available attachment, per spec.md §4.2.1.
// Unavailable attachments are dropped with a logged warning. Returns
// ok=false when there are no available attachments, so the caller
// falls back to plain-string content.
func buildContentParts(c messages.MessageContent) (parts []wireContentPart, ok bool) {
	var available []messages.Attachment
	for _, a := range c.Attachments {
		if a.IsAvailable != nil && !a.IsAvailable() {
			zap.S().Warnw("attachment_unavailable", "name", a.Name)
			continue
		}
		available = append(available, a)
	}
	if len(available) == 0 {
		return nil, false
	}

	if c.Text != "" {
		parts = append(parts, wireContentPart{Type: "text", Text: c.Text})
	}
	for _, a := range available {
		uri, err := a.DataURI()
		if err != nil {
			zap.S().Warnw("attachment_read_failed", "name", a.Name, "error", err)
			continue
		}
		if a.IsImage() {
			part := wireContentPart{Type: "image_url"}
			part.ImageURL = &struct {
				URL string `json:"url"`
			}{URL: uri}
			parts = append(parts, part)
			continue
		}
		part := wireContentPart{Type: "file"}
		part.File = &struct {
			Filename string `json:"filename"`
			FileData string `json:"file_data"`
		}{Filename: a.Name, FileData: uri}
		parts = append(parts, part)
	}
	return parts, true
}
