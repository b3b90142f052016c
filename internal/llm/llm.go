// Package llm holds one adapter per model backend. Every adapter turns the
// canonical prompt pair into its backend's request shape and hands back the
// raw text of the first completion; parsing belongs to the caller.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"clientcomms/internal/prompt"
)

type ProviderID string

const (
	OpenAIProvider    ProviderID = "openai"
	AnthropicProvider ProviderID = "anthropic"
	OllamaProvider    ProviderID = "ollama"
	NoopProvider      ProviderID = "noop"
)

// ParseProviderID maps configuration values onto a provider. Empty selects OpenAI.
func ParseProviderID(value string) (ProviderID, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "openai", "a":
		return OpenAIProvider, nil
	case "anthropic", "claude", "b":
		return AnthropicProvider, nil
	case "ollama":
		return OllamaProvider, nil
	case "noop":
		return NoopProvider, nil
	default:
		return "", fmt.Errorf("unknown llm provider %q", value)
	}
}

// DefaultModel is used when no model is configured for the provider.
func DefaultModel(id ProviderID) string {
	switch id {
	case AnthropicProvider:
		return "claude-3-5-sonnet-20241022"
	case OllamaProvider:
		return "llama3"
	case NoopProvider:
		return "noop"
	default:
		return "gpt-4-turbo-preview"
	}
}

// Settings are the per-invocation generation parameters.
type Settings struct {
	Provider    ProviderID
	Model       string
	Temperature float64
	MaxTokens   int
}

type Provider interface {
	Name() string
	Invoke(ctx context.Context, pair prompt.Pair, settings Settings) (string, error)
}

// Registry is a fixed set of providers keyed by id. It is never mutated after
// NewRegistry, so lookups are safe from concurrent invocations.
type Registry struct {
	providers map[ProviderID]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[ProviderID]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		r.providers[ProviderID(p.Name())] = p
	}
	return r
}

func (r *Registry) Lookup(id ProviderID) (Provider, error) {
	if r != nil {
		if p, ok := r.providers[id]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no adapter registered for provider %q", id)
}

func (r *Registry) IDs() []ProviderID {
	if r == nil {
		return nil
	}
	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
