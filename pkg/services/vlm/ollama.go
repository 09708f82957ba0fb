package vlm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	olla "github.com/ollama/ollama/api"
)

// OllamaCaller runs a local vision model (moondream, llava) through Ollama
type OllamaCaller struct {
	client *olla.Client
	model  string
}

// NewOllamaCaller creates a caller for the Ollama server at baseURL
func NewOllamaCaller(model, baseURL string, timeout time.Duration) (*OllamaCaller, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	hc := &http.Client{Timeout: timeout}
	return &OllamaCaller{client: olla.NewClient(parsed, hc), model: model}, nil
}

func (o *OllamaCaller) Name() string {
	return "ollama"
}

func (o *OllamaCaller) Describe(ctx context.Context, img Image, prompt string) (string, error) {
	stream := false
	var sb strings.Builder
	err := o.client.Generate(ctx, &olla.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Images: []olla.ImageData{img.Data},
		Stream: &stream,
	}, func(resp olla.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content with ollama: %w", err)
	}
	return sb.String(), nil
}
