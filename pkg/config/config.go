// Package config loads settings for the receipt service and batch tools from
// defaults, an optional YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported vision model providers.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	defaultProvider          = ProviderGemini
	defaultPrompt            = "standard"
	defaultStrategy          = "auto"
	defaultRequestTimeout    = 60 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultMaxRetries        = 2
	defaultMaxImageDimension = 1600
	defaultPort              = "5000"
	defaultMaxUploadBytes    = 16 << 20
	defaultLogLevel          = "info"
	defaultLogFormat         = "text"
)

// providerDefaults are applied when the model, endpoint or quota is not set explicitly.
var providerDefaults = map[string]struct {
	model     string
	baseURL   string
	rateLimit int
}{
	ProviderGemini: {model: "gemini-1.5-flash"},
	ProviderGroq:   {model: "llama-3.2-90b-vision-preview", baseURL: "https://api.groq.com/openai/v1", rateLimit: 14},
	ProviderOpenAI: {model: "gpt-4o-mini"},
	ProviderOllama: {model: "moondream", baseURL: "http://localhost:11434"},
}

// MinIOConfig holds object storage settings for batch uploads
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Secure    bool   `yaml:"secure"`
}

// Enabled reports whether uploads are configured
func (m MinIOConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
}

// Config holds every runtime setting
type Config struct {
	Provider     string
	Model        string
	GeminiAPIKey string
	GroqAPIKey   string
	OpenAIAPIKey string
	BaseURL      string

	Prompt           string
	SanitizeStrategy string
	RepairJSON       bool

	RequestTimeout    time.Duration
	RateLimitRequests int
	RateLimitWindow   time.Duration
	MaxRetries        int

	MaxImageDimension int
	EnhanceImage      bool
	AzureOCREndpoint  string
	AzureOCRKey       string

	DatabaseURL    string
	Port           string
	CORSOrigins    []string
	MaxUploadBytes int64

	MinIO MinIOConfig

	LogLevel  string
	LogFormat string
}

type fileConfig struct {
	Provider          string      `yaml:"provider"`
	Model             string      `yaml:"model"`
	BaseURL           string      `yaml:"base_url"`
	Prompt            string      `yaml:"prompt"`
	SanitizeStrategy  string      `yaml:"sanitize_strategy"`
	RepairJSON        *bool       `yaml:"repair_json"`
	RequestTimeout    string      `yaml:"request_timeout"`
	RateLimitRequests *int        `yaml:"rate_limit_requests"`
	RateLimitWindow   string      `yaml:"rate_limit_window"`
	MaxRetries        *int        `yaml:"max_retries"`
	MaxImageDimension *int        `yaml:"max_image_dimension"`
	EnhanceImage      *bool       `yaml:"enhance_image"`
	AzureOCREndpoint  string      `yaml:"azure_ocr_endpoint"`
	DatabaseURL       string      `yaml:"database_url"`
	Port              string      `yaml:"port"`
	CORSOrigins       []string    `yaml:"cors_origins"`
	MaxUploadBytes    *int64      `yaml:"max_upload_bytes"`
	MinIO             MinIOConfig `yaml:"minio"`
	LogLevel          string      `yaml:"log_level"`
	LogFormat         string      `yaml:"log_format"`
}

// Error reports a missing or invalid setting
type Error struct {
	Key     string
	Problem string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s %s", e.Key, e.Problem)
}

// Load builds the configuration. path names an optional YAML file; when empty,
// CONFIG_FILE is consulted. A .env file in the working directory is loaded
// into the environment first if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Config{
		Provider:          defaultProvider,
		Prompt:            defaultPrompt,
		SanitizeStrategy:  defaultStrategy,
		RequestTimeout:    defaultRequestTimeout,
		RateLimitWindow:   defaultRateLimitWindow,
		MaxRetries:        defaultMaxRetries,
		MaxImageDimension: defaultMaxImageDimension,
		Port:              defaultPort,
		MaxUploadBytes:    defaultMaxUploadBytes,
		LogLevel:          defaultLogLevel,
		LogFormat:         defaultLogFormat,
	}
	limitSet := false

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		fc, err := loadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := cfg.applyFile(fc); err != nil {
			return cfg, err
		}
		limitSet = fc.RateLimitRequests != nil
	}

	set, err := cfg.applyEnv()
	if err != nil {
		return cfg, err
	}
	limitSet = limitSet || set

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if d, ok := providerDefaults[cfg.Provider]; ok {
		cfg.Model = firstNonEmpty(cfg.Model, d.model)
		cfg.BaseURL = firstNonEmpty(cfg.BaseURL, d.baseURL)
		if !limitSet {
			cfg.RateLimitRequests = d.rateLimit
		}
	}
	return cfg, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

func (c *Config) applyFile(fc fileConfig) error {
	c.Provider = firstNonEmpty(fc.Provider, c.Provider)
	c.Model = firstNonEmpty(fc.Model, c.Model)
	c.BaseURL = firstNonEmpty(fc.BaseURL, c.BaseURL)
	c.Prompt = firstNonEmpty(fc.Prompt, c.Prompt)
	c.SanitizeStrategy = firstNonEmpty(fc.SanitizeStrategy, c.SanitizeStrategy)
	c.AzureOCREndpoint = firstNonEmpty(fc.AzureOCREndpoint, c.AzureOCREndpoint)
	c.DatabaseURL = firstNonEmpty(fc.DatabaseURL, c.DatabaseURL)
	c.Port = firstNonEmpty(fc.Port, c.Port)
	c.LogLevel = firstNonEmpty(fc.LogLevel, c.LogLevel)
	c.LogFormat = firstNonEmpty(fc.LogFormat, c.LogFormat)
	c.MinIO = fc.MinIO
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	if fc.RepairJSON != nil {
		c.RepairJSON = *fc.RepairJSON
	}
	if fc.EnhanceImage != nil {
		c.EnhanceImage = *fc.EnhanceImage
	}
	if fc.RateLimitRequests != nil {
		c.RateLimitRequests = *fc.RateLimitRequests
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if fc.MaxImageDimension != nil {
		c.MaxImageDimension = *fc.MaxImageDimension
	}
	if fc.MaxUploadBytes != nil {
		c.MaxUploadBytes = *fc.MaxUploadBytes
	}
	var err error
	if fc.RequestTimeout != "" {
		if c.RequestTimeout, err = parseDuration("request_timeout", fc.RequestTimeout); err != nil {
			return err
		}
	}
	if fc.RateLimitWindow != "" {
		if c.RateLimitWindow, err = parseDuration("rate_limit_window", fc.RateLimitWindow); err != nil {
			return err
		}
	}
	return nil
}

// applyEnv overrides settings from the environment. It reports whether
// RATE_LIMIT_REQUESTS was given.
func (c *Config) applyEnv() (bool, error) {
	c.Provider = getEnv("PROVIDER", c.Provider)
	c.Model = getEnv("MODEL", c.Model)
	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GroqAPIKey = getEnv("GROQ_API_KEY", c.GroqAPIKey)
	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.BaseURL = firstNonEmpty(os.Getenv("VLM_BASE_URL"), os.Getenv("OLLAMA_HOST"), c.BaseURL)
	c.Prompt = getEnv("PROMPT", c.Prompt)
	c.SanitizeStrategy = getEnv("SANITIZE_STRATEGY", c.SanitizeStrategy)
	c.AzureOCREndpoint = getEnv("AZURE_OCR_ENDPOINT", c.AzureOCREndpoint)
	c.AzureOCRKey = getEnv("AZURE_OCR_KEY", c.AzureOCRKey)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.Port = getEnv("PORT", c.Port)
	c.MinIO.Endpoint = getEnv("MINIO_ENDPOINT", c.MinIO.Endpoint)
	c.MinIO.AccessKey = getEnv("MINIO_ACCESS_KEY", c.MinIO.AccessKey)
	c.MinIO.SecretKey = getEnv("MINIO_SECRET_KEY", c.MinIO.SecretKey)
	c.MinIO.Bucket = getEnv("MINIO_BUCKET", c.MinIO.Bucket)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}

	var err error
	if c.RepairJSON, err = boolEnv("REPAIR_JSON", c.RepairJSON); err != nil {
		return false, err
	}
	if c.EnhanceImage, err = boolEnv("ENHANCE_IMAGE", c.EnhanceImage); err != nil {
		return false, err
	}
	if c.MinIO.Secure, err = boolEnv("MINIO_SECURE", c.MinIO.Secure); err != nil {
		return false, err
	}
	if c.MaxRetries, err = intEnv("MAX_RETRIES", c.MaxRetries); err != nil {
		return false, err
	}
	if c.MaxImageDimension, err = intEnv("MAX_IMAGE_DIMENSION", c.MaxImageDimension); err != nil {
		return false, err
	}
	if v := strings.TrimSpace(os.Getenv("MAX_UPLOAD_BYTES")); v != "" {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return false, &Error{Key: "MAX_UPLOAD_BYTES", Problem: "must be an integer"}
		}
		c.MaxUploadBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("REQUEST_TIMEOUT")); v != "" {
		if c.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", v); err != nil {
			return false, err
		}
	}
	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW")); v != "" {
		if c.RateLimitWindow, err = parseDuration("RATE_LIMIT_WINDOW", v); err != nil {
			return false, err
		}
	}
	limitSet := strings.TrimSpace(os.Getenv("RATE_LIMIT_REQUESTS")) != ""
	if c.RateLimitRequests, err = intEnv("RATE_LIMIT_REQUESTS", c.RateLimitRequests); err != nil {
		return false, err
	}
	return limitSet, nil
}

// APIKey returns the credential for the selected provider
func (c Config) APIKey() string {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderGroq:
		return c.GroqAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	}
	return ""
}

// Validate checks the configuration before any image is touched.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderGroq, ProviderOpenAI:
		if strings.TrimSpace(c.APIKey()) == "" {
			return &Error{Key: strings.ToUpper(c.Provider) + "_API_KEY", Problem: "is required for provider " + c.Provider}
		}
	case ProviderOllama:
	default:
		return &Error{Key: "PROVIDER", Problem: fmt.Sprintf("%q is not supported", c.Provider)}
	}
	if strings.TrimSpace(c.Model) == "" {
		return &Error{Key: "MODEL", Problem: "is required"}
	}
	switch c.Prompt {
	case "standard", "json_only":
	default:
		return &Error{Key: "PROMPT", Problem: fmt.Sprintf("%q is not one of standard, json_only", c.Prompt)}
	}
	switch strings.ToLower(c.SanitizeStrategy) {
	case "auto", "fence", "boundary":
	default:
		return &Error{Key: "SANITIZE_STRATEGY", Problem: fmt.Sprintf("%q is not one of auto, fence, boundary", c.SanitizeStrategy)}
	}
	if c.RequestTimeout <= 0 {
		return &Error{Key: "REQUEST_TIMEOUT", Problem: "must be positive"}
	}
	if c.RateLimitRequests < 0 {
		return &Error{Key: "RATE_LIMIT_REQUESTS", Problem: "must not be negative"}
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow <= 0 {
		return &Error{Key: "RATE_LIMIT_WINDOW", Problem: "must be positive when a rate limit is set"}
	}
	if c.MaxRetries < 0 {
		return &Error{Key: "MAX_RETRIES", Problem: "must not be negative"}
	}
	if c.MaxImageDimension < 0 {
		return &Error{Key: "MAX_IMAGE_DIMENSION", Problem: "must not be negative"}
	}
	if c.MaxUploadBytes <= 0 {
		return &Error{Key: "MAX_UPLOAD_BYTES", Problem: "must be positive"}
	}
	if (c.AzureOCREndpoint == "") != (c.AzureOCRKey == "") {
		return &Error{Key: "AZURE_OCR_KEY", Problem: "and AZURE_OCR_ENDPOINT must be set together"}
	}
	if c.MinIO.Enabled() && strings.TrimSpace(c.MinIO.Bucket) == "" {
		return &Error{Key: "MINIO_BUCKET", Problem: "is required when MINIO_ENDPOINT is set"}
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return &Error{Key: "LOG_FORMAT", Problem: fmt.Sprintf("%q is not one of text, json", c.LogFormat)}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return fallback, &Error{Key: key, Problem: fmt.Sprintf("%q is not a boolean", v)}
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, &Error{Key: key, Problem: fmt.Sprintf("%q is not an integer", v)}
	}
	return n, nil
}

// parseDuration accepts Go durations ("90s") or a plain number of seconds.
func parseDuration(key, v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, &Error{Key: key, Problem: fmt.Sprintf("%q is not a duration", v)}
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
