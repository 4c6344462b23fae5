package providers

import (
	"context"
	"encoding/json"

	"github.com/driftwave/chatcore/bot"
	"github.com/driftwave/chatcore/chat"
	"github.com/driftwave/chatcore/messages"
	ai "github.com/sashabaranov/go-openai"
)

// ImageClient implements chat.BotClient against an OpenAI-compatible
// image-generation endpoint, per spec.md §4.2.4. It is non-streaming:
// Send's returned channel always yields exactly one Delta.
type ImageClient struct {
	Provider string
	Models   []string
	Client   *ai.Client
}

// NewImageClient builds an ImageClient for provider, reusing
// go-openai's CreateImage rather than a hand-rolled request, since
// that surface already matches spec.md §4.2.4's wire shape.
func NewImageClient(provider, baseURL, apiKey string, models []string) *ImageClient {
	cfg := ai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &ImageClient{Provider: provider, Models: models, Client: ai.NewClientWithConfig(cfg)}
}

func (c *ImageClient) Clone() chat.BotClient {
	cp := *c
	return &cp
}

func (c *ImageClient) Bots(ctx context.Context) ([]bot.Bot, error) {
	bots := make([]bot.Bot, len(c.Models))
	for i, m := range c.Models {
		bots[i] = bot.Bot{ID: bot.ID{Provider: c.Provider, Model: m}, Name: m}
	}
	return bots, nil
}

func (c *ImageClient) Send(ctx context.Context, botID bot.ID, history []messages.Message, tools []chat.ToolSchema) (<-chan chat.Delta, error) {
	prompt := ""
	if len(history) > 0 {
		prompt = history[len(history)-1].Content.Text
	}

	out := make(chan chat.Delta, 1)
	go func() {
		defer close(out)
		resp, err := c.Client.CreateImage(ctx, ai.ImageRequest{
			Model:  botID.Model,
			Prompt: prompt,
			N:      1,
			Size:   ai.CreateImageSize1024x1024,
		})
		if err != nil {
			out <- chat.Delta{Err: messages.NewClientError(messages.ErrorResponse, "image generation failed", err)}
			return
		}
		if len(resp.Data) == 0 {
			out <- chat.Delta{Err: messages.NewClientError(messages.ErrorFormat, "empty image response", nil)}
			return
		}

		img := resp.Data[0]
		uri := img.URL
		if uri == "" && img.B64JSON != "" {
			uri = "data:image/png;base64," + img.B64JSON
		}
		attachment := messages.Attachment{
			Name:        "generated-image.png",
			ContentType: "image/png",
			IsAvailable: func() bool { return true },
			Reader:      nil,
		}
		content := messages.MessageContent{Attachments: []messages.Attachment{attachment}}
		if uri != "" {
			content.Data = imageURLPayload(uri)
		}
		out <- chat.Delta{Content: content}
	}()
	return out, nil
}

// imageURLPayload wraps uri as the opaque provider-specific Data
// payload a custom renderer reads, per spec.md §4.2's
// "content_widget" hook for provider-specific data.
func imageURLPayload(uri string) []byte {
	out, _ := json.Marshal(struct {
		ImageURL string `json:"image_url"`
	}{ImageURL: uri})
	return out
}
