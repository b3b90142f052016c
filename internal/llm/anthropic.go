package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"clientcomms/internal/prompt"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// Anthropic calls the Messages API. The API has no JSON-only response mode,
// so replies frequently arrive wrapped in prose or fences.
type Anthropic struct {
	APIKey  string
	BaseURL string
	Client  httpDoer
}

func NewAnthropic(apiKey string, baseURL string, timeout time.Duration) *Anthropic {
	return &Anthropic{
		APIKey:  strings.TrimSpace(apiKey),
		BaseURL: trimBaseURL(baseURL, defaultAnthropicBaseURL),
		Client:  newHTTPClient(timeout),
	}
}

func (a *Anthropic) Name() string { return string(AnthropicProvider) }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Invoke(ctx context.Context, pair prompt.Pair, settings Settings) (string, error) {
	if a.APIKey == "" {
		return "", invocationError(a.Name(), errors.New("anthropic api key not configured"))
	}
	payload := anthropicRequest{
		Model:       settings.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
		System:      pair.System,
		Messages:    []anthropicMessage{{Role: "user", Content: pair.User}},
	}
	headers := map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": anthropicVersion,
	}
	var decoded anthropicResponse
	if err := postJSON(ctx, a.Client, a.BaseURL+"/v1/messages", headers, payload, &decoded); err != nil {
		return "", invocationError(a.Name(), err)
	}
	for _, block := range decoded.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", invocationError(a.Name(), errors.New("response contained no text content"))
}
