// Package generation calls a hosted or local LLM to produce answer text.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/papercomputeco/medibot/pkg/utils"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 30 * time.Second

var (
	// ErrEmptyCompletion is returned when the provider answers with no text.
	ErrEmptyCompletion = errors.New("provider returned an empty completion")

	// ErrUnsupportedProvider is returned by New for unknown providers.
	ErrUnsupportedProvider = errors.New("unsupported generation provider")
)

// Request is a single completion request.
type Request struct {
	// System carries the persona and answer guidelines.
	System string

	// Prompt is the user-facing prompt: history, evidence and question.
	Prompt string
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)

	// Model names the model used, for response footers.
	Model() string
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	Temperature float64
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type callFunc func(ctx context.Context, req Request) (string, error)

// Client is a Generator backed by one provider's HTTP API.
type Client struct {
	provider string
	model    string
	timeout  time.Duration
	call     callFunc
}

// New creates a Client. API keys resolve from Config first, then the
// provider's environment variable. Without a key, hosted providers fall back
// to a local Ollama.
func New(cfg Config) (*Client, error) {
	provider := strings.ToLower(cfg.Provider)
	if provider == "" {
		provider = ProviderGemini
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = resolveAPIKeyFromEnv(provider)
	}

	if apiKey == "" && provider != ProviderOllama {
		cfg.Logger.Warn("no API key found, falling back to ollama", "provider", provider)
		provider = ProviderOllama
		cfg.Model = ""
		cfg.BaseURL = ""
	}

	h := &httpCaller{client: cfg.HTTPClient, temperature: cfg.Temperature}
	c := &Client{provider: provider, model: cfg.Model, timeout: cfg.Timeout}

	switch provider {
	case ProviderGemini:
		c.model = orDefault(c.model, "gemini-1.5-flash")
		c.call = h.gemini(apiKey, c.model, orDefault(cfg.BaseURL, "https://generativelanguage.googleapis.com"))
	case ProviderOpenAI:
		c.model = orDefault(c.model, "gpt-4o-mini")
		c.call = h.openAI(apiKey, c.model, orDefault(cfg.BaseURL, "https://api.openai.com"))
	case ProviderAnthropic:
		c.model = orDefault(c.model, "claude-haiku-4-5-20251001")
		c.call = h.anthropic(apiKey, c.model, orDefault(cfg.BaseURL, "https://api.anthropic.com"))
	case ProviderOllama:
		c.model = orDefault(c.model, "llama3.2")
		c.call = h.ollama(c.model, orDefault(cfg.BaseURL, "http://localhost:11434"))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	return c, nil
}

// Generate performs a single call bounded by the configured timeout. There is
// no retry.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	text, err := c.call(ctx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// Model implements Generator.
func (c *Client) Model() string { return c.model }

// Provider reports the provider actually in use after key resolution.
func (c *Client) Provider() string { return c.provider }

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func resolveAPIKeyFromEnv(provider string) string {
	switch provider {
	case ProviderGemini:
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

type httpCaller struct {
	client      *http.Client
	temperature float64
}

// post sends body as JSON and decodes a 200 response into out.
func (h *httpCaller) post(ctx context.Context, provider, url string, headers map[string]string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", utils.UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API error (status %d): %s", provider, resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

type apiError struct {
	Message string `json:"message"`
}
