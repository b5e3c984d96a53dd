package generation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// --- Gemini ---

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *apiError `json:"error,omitempty"`
}

func (h *httpCaller) gemini(apiKey, model, baseURL string) callFunc {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		baseURL, url.PathEscape(model), url.QueryEscape(apiKey))

	return func(ctx context.Context, req Request) (string, error) {
		body := geminiRequest{
			Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		}
		if req.System != "" {
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
		}
		body.GenerationConfig.Temperature = h.temperature

		var result geminiResponse
		if err := h.post(ctx, ProviderGemini, endpoint, nil, body, &result); err != nil {
			return "", err
		}
		if result.Error != nil {
			return "", fmt.Errorf("gemini error: %s", result.Error.Message)
		}
		if len(result.Candidates) == 0 {
			return "", errors.New("gemini returned no candidates")
		}

		var sb strings.Builder
		for _, p := range result.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	}
}

// --- OpenAI ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

func chatMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.Prompt})
}

func (h *httpCaller) openAI(apiKey, model, baseURL string) callFunc {
	return func(ctx context.Context, req Request) (string, error) {
		body := openAIRequest{
			Model:       model,
			Messages:    chatMessages(req),
			Temperature: h.temperature,
		}

		var result openAIResponse
		if err := h.post(ctx, ProviderOpenAI, baseURL+"/v1/chat/completions",
			map[string]string{"Authorization": "Bearer " + apiKey}, body, &result); err != nil {
			return "", err
		}
		if result.Error != nil {
			return "", fmt.Errorf("openai error: %s", result.Error.Message)
		}
		if len(result.Choices) == 0 {
			return "", errors.New("openai returned no choices")
		}
		return result.Choices[0].Message.Content, nil
	}
}

// --- Anthropic ---

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *apiError `json:"error,omitempty"`
}

func (h *httpCaller) anthropic(apiKey, model, baseURL string) callFunc {
	return func(ctx context.Context, req Request) (string, error) {
		body := anthropicRequest{
			Model:       model,
			MaxTokens:   1024,
			System:      req.System,
			Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
			Temperature: h.temperature,
		}

		var result anthropicResponse
		if err := h.post(ctx, ProviderAnthropic, baseURL+"/v1/messages", map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": "2023-06-01",
		}, body, &result); err != nil {
			return "", err
		}
		if result.Error != nil {
			return "", fmt.Errorf("anthropic error: %s", result.Error.Message)
		}

		var sb strings.Builder
		for _, c := range result.Content {
			if c.Type == "text" {
				sb.WriteString(c.Text)
			}
		}
		return sb.String(), nil
	}
}

// --- Ollama ---

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature"`
	} `json:"options"`
}

type ollamaChatResponse struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
}

func (h *httpCaller) ollama(model, baseURL string) callFunc {
	return func(ctx context.Context, req Request) (string, error) {
		body := ollamaChatRequest{
			Model:    model,
			Messages: chatMessages(req),
		}
		body.Options.Temperature = h.temperature

		var result ollamaChatResponse
		if err := h.post(ctx, ProviderOllama, baseURL+"/api/chat", nil, body, &result); err != nil {
			return "", err
		}
		return result.Message.Content, nil
	}
}
