package vlm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiCaller sends receipts to a Gemini vision model
type GeminiCaller struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiCaller creates a Gemini client for the given model
func NewGeminiCaller(ctx context.Context, model, apiKey string) (*GeminiCaller, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiCaller{client: client, model: client.GenerativeModel(model)}, nil
}

func (g *GeminiCaller) Name() string {
	return "gemini"
}

func (g *GeminiCaller) Describe(ctx context.Context, img Image, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.Blob{MIMEType: img.MIMEType, Data: img.Data},
	)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	return geminiText(resp)
}

// Close releases the underlying client
func (g *GeminiCaller) Close() error {
	return g.client.Close()
}

// geminiText joins the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
