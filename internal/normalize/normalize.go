// Package normalize pulls a single JSON object out of a provider's raw reply.
// Providers are asked for bare JSON but often wrap it in prose or a fenced
// markdown block; only the first block is considered.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

const (
	fence     = "```"
	jsonFence = "```json"
)

// ParseError reports that no JSON object could be recovered from the reply.
type ParseError struct {
	Snippet string
	Cause   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse provider response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Extractor applies the fence rules and optionally one repair pass.
type Extractor struct {
	Repair bool
}

// ExtractJSON applies the fence rules without repair.
func ExtractJSON(raw string) (map[string]any, error) {
	return Extractor{}.Extract(raw)
}

func (x Extractor) Extract(raw string) (map[string]any, error) {
	candidate := strings.TrimSpace(Unfence(raw))
	obj, err := decodeObject(candidate)
	if err == nil {
		return obj, nil
	}
	if x.Repair && candidate != "" {
		if repaired, repairErr := jsonrepair.JSONRepair(candidate); repairErr == nil {
			if obj, retryErr := decodeObject(repaired); retryErr == nil {
				return obj, nil
			}
		}
	}
	return nil, &ParseError{Snippet: snippet(candidate), Cause: err}
}

// Unfence returns the body of the first ```json block, else of the first
// unlabeled fenced block, else the input unchanged.
func Unfence(raw string) string {
	if idx := strings.Index(raw, jsonFence); idx >= 0 {
		rest := raw[idx+len(jsonFence):]
		if end := strings.Index(rest, fence); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	if idx := strings.Index(raw, fence); idx >= 0 {
		rest := raw[idx+len(fence):]
		if end := strings.Index(rest, fence); end >= 0 {
			return rest[:end]
		}
		return rest
	}
	return raw
}

func decodeObject(text string) (map[string]any, error) {
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %T", value)
	}
	return obj, nil
}

func snippet(text string) string {
	const limit = 120
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
