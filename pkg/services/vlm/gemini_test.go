package vlm

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{
				genai.Text("```json\n"),
				genai.Blob{MIMEType: "image/png"},
				genai.Text("{}\n```"),
			}},
		}},
	}
	out, err := geminiText(resp)
	require.NoError(t, err)
	assert.Equal(t, "```json\n{}\n```", out)

	_, err = geminiText(&genai.GenerateContentResponse{})
	assert.Error(t, err)
	_, err = geminiText(nil)
	assert.Error(t, err)
}
