package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "PROVIDER", "MODEL", "GEMINI_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY",
		"VLM_BASE_URL", "OLLAMA_HOST", "PROMPT", "SANITIZE_STRATEGY", "REPAIR_JSON",
		"REQUEST_TIMEOUT", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_WINDOW", "MAX_RETRIES",
		"MAX_IMAGE_DIMENSION", "ENHANCE_IMAGE", "AZURE_OCR_ENDPOINT", "AZURE_OCR_KEY",
		"DATABASE_URL", "PORT", "CORS_ORIGINS", "MAX_UPLOAD_BYTES", "MINIO_ENDPOINT",
		"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_BUCKET", "MINIO_SECURE",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "key")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.Model)
	assert.Equal(t, "key", cfg.APIKey())
	assert.Equal(t, "standard", cfg.Prompt)
	assert.Equal(t, "auto", cfg.SanitizeStrategy)
	assert.Equal(t, 0, cfg.RateLimitRequests)
	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestLoadGroqDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "Groq")
	t.Setenv("GROQ_API_KEY", "gsk")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderGroq, cfg.Provider)
	assert.Equal(t, "llama-3.2-90b-vision-preview", cfg.Model)
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.BaseURL)
	assert.Equal(t, 14, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestLoadExplicitZeroLimitOverridesProviderQuota(t *testing.T) {
	clearEnv(t)
	t.Setenv("PROVIDER", "groq")
	t.Setenv("RATE_LIMIT_REQUESTS", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.RateLimitRequests)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: ollama
model: llava
request_timeout: 2m
rate_limit_requests: 5
enhance_image: true
cors_origins: [http://localhost:3000]
minio:
  endpoint: localhost:9000
  bucket: receipts
`), 0o644))
	t.Setenv("MODEL", "moondream")
	t.Setenv("REQUEST_TIMEOUT", "30")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, "moondream", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.True(t, cfg.EnhanceImage)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.True(t, cfg.MinIO.Enabled())
	assert.Equal(t, "receipts", cfg.MinIO.Bucket)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidEnv(t *testing.T) {
	tests := map[string]string{
		"MAX_RETRIES":     "many",
		"REPAIR_JSON":     "maybe",
		"REQUEST_TIMEOUT": "soon",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)

			_, err := Load("")
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, key, cfgErr.Key)
		})
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Provider:          ProviderOpenAI,
			Model:             "gpt-4o-mini",
			OpenAIAPIKey:      "sk",
			Prompt:            "json_only",
			SanitizeStrategy:  "fence",
			RequestTimeout:    time.Second,
			RateLimitWindow:   time.Minute,
			MaxUploadBytes:    1,
			LogFormat:         "json",
			MaxImageDimension: 100,
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"unknown provider", func(c *Config) { c.Provider = "claude" }, "PROVIDER"},
		{"missing key", func(c *Config) { c.OpenAIAPIKey = "" }, "OPENAI_API_KEY"},
		{"missing model", func(c *Config) { c.Model = "" }, "MODEL"},
		{"bad prompt", func(c *Config) { c.Prompt = "short" }, "PROMPT"},
		{"bad strategy", func(c *Config) { c.SanitizeStrategy = "regex" }, "SANITIZE_STRATEGY"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "REQUEST_TIMEOUT"},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }, "MAX_RETRIES"},
		{"half azure", func(c *Config) { c.AzureOCREndpoint = "https://x" }, "AZURE_OCR_KEY"},
		{"minio without bucket", func(c *Config) { c.MinIO.Endpoint = "localhost:9000" }, "MINIO_BUCKET"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)

			var cfgErr *Error
			require.True(t, errors.As(cfg.Validate(), &cfgErr))
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}

	ollama := base()
	ollama.Provider = ProviderOllama
	ollama.OpenAIAPIKey = ""
	assert.NoError(t, ollama.Validate())
}
