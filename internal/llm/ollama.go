package llm

import (
	"context"
	"errors"
	"time"

	"clientcomms/internal/prompt"
)

type Ollama struct {
	BaseURL string
	Client  httpDoer
}

func NewOllama(baseURL string, timeout time.Duration) *Ollama {
	return &Ollama{BaseURL: trimBaseURL(baseURL, "http://localhost:11434"), Client: newHTTPClient(timeout)}
}

func (o *Ollama) Name() string { return string(OllamaProvider) }

func (o *Ollama) Invoke(ctx context.Context, pair prompt.Pair, settings Settings) (string, error) {
	payload := map[string]any{
		"model": settings.Model,
		"messages": []map[string]string{
			{"role": "system", "content": pair.System},
			{"role": "user", "content": pair.User},
		},
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": settings.Temperature,
			"num_predict": settings.MaxTokens,
		},
	}
	var decoded struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := postJSON(ctx, o.Client, o.BaseURL+"/api/chat", nil, payload, &decoded); err != nil {
		return "", invocationError(o.Name(), err)
	}
	if decoded.Message.Content == "" {
		return "", invocationError(o.Name(), errors.New("response contained no message content"))
	}
	return decoded.Message.Content, nil
}
