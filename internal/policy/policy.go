// Package policy screens drafted client messages before they leave the
// service: forbidden phrases and over-long drafts are withheld, sensitive
// patterns are redacted, and missing disclosures flag the draft for review.
package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
)

type Policy struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Version             int      `yaml:"version"`
	ForbiddenPhrases    []string `yaml:"forbidden_phrases"`
	RequiredDisclosures []string `yaml:"required_disclosures"`
	MaxDraftLength      int      `yaml:"max_draft_length_chars"`
	Redactions          struct {
		Patterns    []string `yaml:"patterns"`
		Replacement string   `yaml:"replacement"`
	} `yaml:"redactions"`

	compiled []*regexp.Regexp
}

// Review is the outcome of screening one draft.
type Review struct {
	Allowed           bool     `json:"allowed"`
	ViolationLevel    string   `json:"violation_level,omitempty"`
	Reason            string   `json:"reason,omitempty"`
	RiskFlags         []string `json:"risk_flags,omitempty"`
	NeedsReview       bool     `json:"needs_review"`
	RedactionsApplied []string `json:"redactions_applied,omitempty"`
}

func (r Review) Blocked() bool {
	return !r.Allowed && r.ViolationLevel == LevelCritical
}

func Load(path string) (Policy, error) {
	var p Policy
	if path == "" {
		return p, errors.New("missing policy path")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := p.compile(); err != nil {
		return p, err
	}
	return p, nil
}

// IsZero reports whether the policy has no rules at all.
func (p Policy) IsZero() bool {
	return len(p.ForbiddenPhrases) == 0 && len(p.RequiredDisclosures) == 0 &&
		p.MaxDraftLength == 0 && len(p.Redactions.Patterns) == 0
}

func (p *Policy) compile() error {
	p.compiled = p.compiled[:0]
	for _, pattern := range p.Redactions.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("redaction pattern %q: %w", pattern, err)
		}
		p.compiled = append(p.compiled, re)
	}
	return nil
}

func (p Policy) redactors() []*regexp.Regexp {
	if len(p.compiled) == len(p.Redactions.Patterns) {
		return p.compiled
	}
	out := make([]*regexp.Regexp, 0, len(p.Redactions.Patterns))
	for _, pattern := range p.Redactions.Patterns {
		if re, err := regexp.Compile(pattern); err == nil {
			out = append(out, re)
		}
	}
	return out
}

// Evaluate returns the draft after redaction together with its review.
func Evaluate(draft string, p Policy) (string, Review) {
	res := Review{Allowed: true}
	text := draft
	lower := strings.ToLower(text)

	for _, phrase := range p.ForbiddenPhrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(phrase)) {
			res.Allowed = false
			res.ViolationLevel = LevelCritical
			res.Reason = "Draft contains forbidden phrase: " + phrase
			res.RiskFlags = append(res.RiskFlags, "forbidden_phrase")
			res.NeedsReview = true
			return text, res
		}
	}

	replacement := p.Redactions.Replacement
	if replacement == "" {
		replacement = "[REDACTED]"
	}
	for _, re := range p.redactors() {
		if re.MatchString(text) {
			res.RiskFlags = append(res.RiskFlags, "contains_sensitive_data")
			res.RedactionsApplied = append(res.RedactionsApplied, re.String())
			text = re.ReplaceAllString(text, replacement)
		}
	}

	if p.MaxDraftLength > 0 && len([]rune(text)) > p.MaxDraftLength {
		res.Allowed = false
		res.ViolationLevel = LevelCritical
		res.Reason = "Draft exceeds max length"
		res.RiskFlags = append(res.RiskFlags, "too_long")
		res.NeedsReview = true
		return text, res
	}

	for _, disclosure := range p.RequiredDisclosures {
		if disclosure == "" {
			continue
		}
		if !strings.Contains(text, disclosure) {
			res.RiskFlags = append(res.RiskFlags, "missing_disclosure")
			res.NeedsReview = true
		}
	}

	if len(res.RiskFlags) > 0 && res.ViolationLevel == "" {
		res.ViolationLevel = LevelWarning
	}
	return text, res
}
