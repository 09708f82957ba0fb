package vlm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAICaller talks to any OpenAI-compatible chat completions API.
// Groq is reached through its OpenAI-compatible endpoint.
type OpenAICaller struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAICaller creates a caller. An empty baseURL keeps the library default.
func NewOpenAICaller(name, model, apiKey, baseURL string) *OpenAICaller {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAICaller{name: name, model: model, client: openai.NewClientWithConfig(cfg)}
}

func (o *OpenAICaller) Name() string {
	return o.name
}

func (o *OpenAICaller) Describe(ctx context.Context, img Image, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL(img)}},
				},
			},
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func dataURL(img Image) string {
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
