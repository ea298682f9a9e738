package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrSearchKey is returned when no usable keyword search term can be derived
// from the input content.
var ErrSearchKey = errors.New("search key generation failed")

// maxSummarizeInput bounds the content sent to the summarize model so it fits
// the context window.
const maxSummarizeInput = 4000

// Summarizer derives a keyword search term from input content. The term seeds
// both the web search and the deterministic index name.
type Summarizer struct {
	provider    LLMProvider
	temperature float64
}

func NewSummarizer(provider LLMProvider, temperature float64) *Summarizer {
	return &Summarizer{provider: provider, temperature: temperature}
}

// GetKeywordSearchTerm asks the model for a search term as a JSON object
// {"search_term": ...}. A fence-wrapped response gets one cleanup pass before
// the call is declared failed.
func (s *Summarizer) GetKeywordSearchTerm(ctx context.Context, document, proposedTitle string) (string, error) {
	if strings.TrimSpace(document) == "" {
		if proposedTitle != "" {
			return proposedTitle, nil
		}
		return "", fmt.Errorf("%w: no content to summarize", ErrSearchKey)
	}

	document = truncateRunes(document, maxSummarizeInput)

	prompt := strings.ReplaceAll(SummarizeInstruction, "{content}", document)
	raw, err := s.provider.Generate(ctx, prompt,
		WithTemperature(s.temperature),
		WithTopP(1),
		WithMaxTokens(1024),
		WithJSONObject(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSearchKey, err)
	}

	var response struct {
		SearchTerm string `json:"search_term"`
		Message    string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		// One bounded cleanup attempt: strip fences and braces, use as-is.
		cleaned := strings.Trim(StripFences(raw), "{}\n ")
		if cleaned == "" {
			return "", fmt.Errorf("%w: unparsable response", ErrSearchKey)
		}
		return cleaned, nil
	}

	if response.SearchTerm != "" {
		return response.SearchTerm, nil
	}
	if response.Message != "" {
		return response.Message, nil
	}
	return "", fmt.Errorf("%w: empty response", ErrSearchKey)
}

// truncateRunes cuts s to at most max bytes without splitting a UTF-8
// sequence.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
