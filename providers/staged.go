package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
	"github.com/driftwave/chatcore/providers/sse"
)

// Article is a citation surfaced by a StagedClient response, per
// spec.md §4.2.3.
type Article struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	Source    string `json:"source"`
	Relevance int    `json:"relevance"`
}

// SubStage is a named, incrementally-appended section of a stage.
type SubStage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// Stage groups substages and their citations by stage_type
// (thinking/content/completion).
type Stage struct {
	ID         string     `json:"id"`
	StageType  string     `json:"stage_type"`
	Substages  []SubStage `json:"substages"`
	Citations  []Article  `json:"citations"`
}

// stagedData is the structured payload synthesized onto
// MessageContent.Data, per spec.md §4.2.3.
type stagedData struct {
	Stages []Stage `json:"stages"`
}

// StagedClient implements chat.BotClient against a "deep inquire"
// staged-response endpoint: same POST /chat/completions + SSE wire
// shape as ChatCompletionsClient, but a different per-delta JSON
// schema that the adapter restructures into stages/substages rather
// than flat text, per spec.md §4.2.3. Grounded on
// original_source/moly-kit/src/clients/deep_inquire.rs.
type StagedClient struct {
	Provider string
	BaseURL  string
	APIKey   string
	HTTP     *http.Client
}

// NewStagedClient builds a StagedClient for provider against baseURL.
func NewStagedClient(provider, baseURL, apiKey string) *StagedClient {
	return &StagedClient{Provider: provider, BaseURL: baseURL, APIKey: apiKey, HTTP: &http.Client{Timeout: 0}}
}

func (c *StagedClient) Clone() chat.BotClient {
	cp := *c
	return &cp
}

// Bots returns a single hardcoded bot: deep-inquire endpoints don't
// expose a /models listing, per spec.md §4.2.3 (mirroring the
// realtime client's §4.2.5 treatment).
func (c *StagedClient) Bots(ctx context.Context) ([]bot.Bot, error) {
	return []bot.Bot{{
		ID:     bot.ID{Provider: c.Provider, Model: "deep-inquire"},
		Name:   "DeepInquire",
		Avatar: bot.Avatar{Grapheme: "D"},
	}}, nil
}

type stagedChunk struct {
	Choices []struct {
		Delta struct {
			Content  string    `json:"content"`
			Articles []Article `json:"articles"`
			Metadata struct {
				Stage string `json:"stage"`
			} `json:"metadata"`
			Type string `json:"type"`
			ID   string `json:"id"`
		} `json:"delta"`
	} `json:"choices"`
}

func (c *StagedClient) Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []chat.ToolSchema) (<-chan chat.Delta, error) {
	type outgoingMessage struct {
		Content string `json:"content"`
		Role    string `json:"role"`
	}
	var outgoing []outgoingMessage
	for _, m := range history {
		role := entityRole(m.From)
		if role == "tool" {
			continue // deep inquire has no tool-result role, per the original client
		}
		outgoing = append(outgoing, outgoingMessage{Content: m.Content.Text, Role: role})
	}

	body, err := json.Marshal(map[string]any{
		"model":    botID.Model,
		"messages": outgoing,
		"stream":   true,
	})
	if err != nil {
		return nil, messages.NewClientError(messages.ErrorFormat, "encode request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/chat/completions", bytes.NewReader(body))
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
		return nil, messages.NewClientError(messages.ErrorResponse, "non-200 status", nil)
	}

	out := make(chan chat.Delta)
	go c.stream(ctx, resp.Body, out)
	return out, nil
}

// yieldFrequency controls UI back-pressure: after the first 20
// messages, only every 10th delta is forwarded, per spec.md §4.2.3.
const yieldFrequency = 10
const immediateYieldCount = 20

func (c *StagedClient) stream(ctx context.Context, body io.ReadCloser, out chan<- chat.Delta) {
	defer close(out)
	defer body.Close()

	reader := sse.NewReader(body)
	data := stagedData{}
	messageCount := 0

	sendCurrent := func() {
		payload, _ := json.Marshal(data)
		select {
		case out <- chat.Delta{Content: messages.MessageContent{Data: payload}}:
		case <-ctx.Done():
		}
	}

	for {
		event, err := reader.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				sendCurrent()
				return
			}
			select {
			case out <- chat.Delta{Err: messages.NewClientError(messages.ErrorNetwork, "stream read failed", err)}:
			case <-ctx.Done():
			}
			return
		}
		if event.Data == sse.Done {
			sendCurrent()
			return
		}

		var chunk stagedChunk
		if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
			select {
			case out <- chat.Delta{Err: messages.NewClientError(messages.ErrorFormat, "malformed staged chunk", err)}:
			case <-ctx.Done():
			}
			return
		}

		for _, choice := range chunk.Choices {
			applyStagedDelta(&data, choice.Delta.ID, choice.Delta.Type, choice.Delta.Metadata.Stage, choice.Delta.Content, choice.Delta.Articles)
		}
		messageCount++

		if messageCount < immediateYieldCount || messageCount%yieldFrequency == 0 {
			sendCurrent()
		}
	}
}

// applyStagedDelta implements the merge rules from spec.md §4.2.3: the
// stage id is the portion of delta.id before the first '.'; the
// substage is keyed by metadata.stage and its text is appended;
// citations extend the stage's set, deduplicated by URL.
func applyStagedDelta(data *stagedData, deltaID, stageType, substageName, content string, articles []Article) {
	stageID := deltaID
	if idx := strings.Index(deltaID, "."); idx >= 0 {
		stageID = deltaID[:idx]
	}

	var stage *Stage
	for i := range data.Stages {
		if data.Stages[i].StageType == stageType {
			stage = &data.Stages[i]
			break
		}
	}
	if stage == nil {
		data.Stages = append(data.Stages, Stage{ID: stageID, StageType: stageType})
		stage = &data.Stages[len(data.Stages)-1]
	}

	var sub *SubStage
	for i := range stage.Substages {
		if stage.Substages[i].Name == substageName {
			sub = &stage.Substages[i]
			break
		}
	}
	if sub == nil {
		stage.Substages = append(stage.Substages, SubStage{ID: substageName, Name: substageName})
		sub = &stage.Substages[len(stage.Substages)-1]
	}
	sub.Text += content

	for _, a := range articles {
		dup := false
		for _, existing := range stage.Citations {
			if existing.URL == a.URL {
				dup = true
				break
			}
		}
		if !dup {
			stage.Citations = append(stage.Citations, a)
		}
	}
}
