package validation

import (
	"context"
	"regexp"
	"strings"
	"sync"
)

// Prompt length bounds, enforced regardless of whether term lists are loaded.
const (
	PromptMinLength = 3
	PromptMaxLength = 1000
)

// Rejection reasons reported by PromptChecker.Check.
const (
	PromptReasonTooShort   = "too_short"
	PromptReasonTooLong    = "too_long"
	PromptReasonBannedTerm = "banned_term"
)

var sensitivePattern = regexp.MustCompile(`(?i)gewalt|nackt|waffe|tod|töten|beleidig|hass|rassist|sexuell`)

var promptTokenSplit = regexp.MustCompile(`[\s,.;:!?()\[\]{}'"«»„“]+`)

// PromptResult is the outcome of a prompt check. Warnings flag sensitive
// wording without rejecting the prompt.
type PromptResult struct {
	OK       bool
	Reason   string
	Term     string
	Warnings []string
}

// TermSource supplies the banned-term lists, typically from bundled files or
// a remote config document.
type TermSource interface {
	LoadTerms(ctx context.Context) (words []string, phrases []string, err error)
}

// StaticTermSource serves fixed lists, used by tests and bundled defaults.
type StaticTermSource struct {
	Words   []string
	Phrases []string
}

func (s StaticTermSource) LoadTerms(context.Context) ([]string, []string, error) {
	return s.Words, s.Phrases, nil
}

// PromptChecker validates generation prompts. Term lists load asynchronously;
// until they arrive the content check passes (fail-open) while the length
// bounds still apply.
type PromptChecker struct {
	mu      sync.RWMutex
	loaded  bool
	words   map[string]struct{}
	phrases []string
}

// NewPromptChecker builds a checker with no terms loaded.
func NewPromptChecker() *PromptChecker {
	return &PromptChecker{words: make(map[string]struct{})}
}

// Load fetches the term lists from src and installs them. Single-word terms
// match whole words; multi-word phrases match as substrings. All matching is
// case-insensitive.
func (c *PromptChecker) Load(ctx context.Context, src TermSource) error {
	words, phrases, err := src.LoadTerms(ctx)
	if err != nil {
		return err
	}

	wordSet := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			wordSet[w] = struct{}{}
		}
	}
	cleaned := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	c.mu.Lock()
	c.words = wordSet
	c.phrases = cleaned
	c.loaded = true
	c.mu.Unlock()
	return nil
}

// Loaded reports whether term lists have been installed.
func (c *PromptChecker) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Check applies length bounds, the banned-term lists, and the sensitive
// wording scan. Sensitive matches only produce warnings.
func (c *PromptChecker) Check(prompt string) PromptResult {
	trimmed := strings.TrimSpace(prompt)
	if len([]rune(trimmed)) < PromptMinLength {
		return PromptResult{Reason: PromptReasonTooShort}
	}
	if len([]rune(trimmed)) > PromptMaxLength {
		return PromptResult{Reason: PromptReasonTooLong}
	}

	result := PromptResult{OK: true}
	if match := sensitivePattern.FindString(trimmed); match != "" {
		result.Warnings = append(result.Warnings, strings.ToLower(match))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return result
	}

	lower := strings.ToLower(trimmed)
	for _, token := range promptTokenSplit.Split(lower, -1) {
		if token == "" {
			continue
		}
		if _, banned := c.words[token]; banned {
			return PromptResult{Reason: PromptReasonBannedTerm, Term: token, Warnings: result.Warnings}
		}
	}
	for _, phrase := range c.phrases {
		if strings.Contains(lower, phrase) {
			return PromptResult{Reason: PromptReasonBannedTerm, Term: phrase, Warnings: result.Warnings}
		}
	}
	return result
}
