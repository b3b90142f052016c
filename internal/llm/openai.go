package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"clientcomms/internal/prompt"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAI calls the chat completions API in JSON-object response mode.
type OpenAI struct {
	APIKey  string
	BaseURL string
	Client  httpDoer
}

func NewOpenAI(apiKey string, baseURL string, timeout time.Duration) *OpenAI {
	return &OpenAI{
		APIKey:  strings.TrimSpace(apiKey),
		BaseURL: trimBaseURL(baseURL, defaultOpenAIBaseURL),
		Client:  newHTTPClient(timeout),
	}
}

func (o *OpenAI) Name() string { return string(OpenAIProvider) }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	ResponseFormat map[string]string `json:"response_format"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *OpenAI) Invoke(ctx context.Context, pair prompt.Pair, settings Settings) (string, error) {
	if o.APIKey == "" {
		return "", invocationError(o.Name(), errors.New("openai api key not configured"))
	}
	payload := openAIRequest{
		Model: settings.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: pair.System},
			{Role: "user", Content: pair.User},
		},
		Temperature:    settings.Temperature,
		MaxTokens:      settings.MaxTokens,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	var decoded openAIResponse
	headers := map[string]string{"Authorization": "Bearer " + o.APIKey}
	if err := postJSON(ctx, o.Client, o.BaseURL+"/chat/completions", headers, payload, &decoded); err != nil {
		return "", invocationError(o.Name(), err)
	}
	if len(decoded.Choices) == 0 {
		return "", invocationError(o.Name(), errors.New("response contained no choices"))
	}
	content := decoded.Choices[0].Message.Content
	if content == nil {
		return "", invocationError(o.Name(), errors.New("first choice has no content"))
	}
	return *content, nil
}
