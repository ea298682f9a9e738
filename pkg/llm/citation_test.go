package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

type stubProvider struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
}

func (s *stubProvider) Chat(ctx context.Context, history []Message, opts ...Option) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.response, s.err
}

func (s *stubProvider) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	return s.Chat(ctx, nil, opts...)
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\":1}```", `{"a":1}`},
		{"bare fence", "```{\"a\":1}```", `{"a":1}`},
		{"leading newline", "\n{\"a\":1}\n", `{"a":1}`},
		{"no fences", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCitationJSON(t *testing.T) {
	parsed, err := parseCitationJSON("```json\n{\"formatted_text\":\"Text (Doe, 2024).\",\"references\":[\"Doe, J. (2024).\"]}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.FormattedText != "Text (Doe, 2024)." {
		t.Errorf("formatted_text = %q", parsed.FormattedText)
	}
	if len(parsed.References) != 1 || parsed.References[0] != "Doe, J. (2024)." {
		t.Errorf("references = %v", parsed.References)
	}
}

func TestParseCitationJSONMalformed(t *testing.T) {
	_, err := parseCitationJSON("the model ignored the format")

	var malformed *MalformedResponseError
	if !errors.As(err, &malformed) {
		t.Fatalf("got %T, want MalformedResponseError", err)
	}
	if !strings.Contains(malformed.Raw, "ignored") {
		t.Errorf("raw response not preserved: %q", malformed.Raw)
	}
}

func TestCiterPropagatesMalformedBatch(t *testing.T) {
	provider := &stubProvider{response: "not json at all"}
	citer := NewCiter(provider, provider, 0.1, 10)

	_, err := citer.Cite(context.Background(), []string{"some text"}, "[]", "APA")
	if !errors.Is(err, ErrCitationFailed) {
		t.Errorf("got %v, want ErrCitationFailed", err)
	}
}

func TestCiterMergesBatches(t *testing.T) {
	provider := &stubProvider{response: `{"formatted_text":"Cited.","references":["Ref 1"]}`}
	citer := NewCiter(provider, provider, 0.1, 2)

	text := []string{"one", "two", "three", "four"}
	parsed, err := citer.Cite(context.Background(), text, "[]", "APA")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.FormattedText != "Cited." {
		t.Errorf("formatted_text = %q", parsed.FormattedText)
	}
	// 2 batches of 2 chunks each, plus the merge call
	if provider.calls != 3 {
		t.Errorf("provider calls = %d, want 3", provider.calls)
	}
}

func TestSummarizerSearchTerm(t *testing.T) {
	provider := &stubProvider{response: `{"search_term":"sea level rise"}`}
	s := NewSummarizer(provider, 0.9)

	term, err := s.GetKeywordSearchTerm(context.Background(), "long document text", "Fallback Title")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != "sea level rise" {
		t.Errorf("term = %q, want %q", term, "sea level rise")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short input untouched", "héllo", 100, "héllo"},
		{"ascii cut at limit", "abcdef", 3, "abc"},
		{"multibyte rune not split", "abécd", 3, "ab"}, // é is 2 bytes starting at offset 2
		{"cut lands on rune start", "abécd", 4, "abé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateRunes(tt.in, tt.max)
			if got != tt.want {
				t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncateRunes produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestSummarizerEmptyDocumentFallsBack(t *testing.T) {
	provider := &stubProvider{response: `{"message":"no content to summarize"}`}
	s := NewSummarizer(provider, 0.9)

	term, err := s.GetKeywordSearchTerm(context.Background(), "   ", "Proposed Title")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term != "Proposed Title" {
		t.Errorf("term = %q, want the proposed title", term)
	}
}
