package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrCitationFailed wraps any error that makes the citation LLM step fatal to
// the request.
var ErrCitationFailed = errors.New("citation generation failed")

// MalformedResponseError is returned when the model's output survives fence
// stripping but still isn't the expected JSON shape. Raw keeps the original
// text for the caller.
type MalformedResponseError struct {
	Raw string
}

func (e *MalformedResponseError) Error() string {
	return "llm returned malformed citation JSON"
}

// responseCleanup strips markdown code fences the model wraps around JSON.
var responseCleanup = regexp.MustCompile("^(```json\n|```|json|\n)|(```|\n)$")

func StripFences(s string) string {
	s = strings.TrimSpace(s)
	return responseCleanup.ReplaceAllString(s, "")
}

// ParsedCitation is the schema both cite and merge calls must return.
type ParsedCitation struct {
	FormattedText   string   `json:"formatted_text"`
	References      []string `json:"references"`
	ValidationNotes []string `json:"validation_notes,omitempty"`
}

func parseCitationJSON(raw string) (*ParsedCitation, error) {
	cleaned := StripFences(raw)
	var parsed ParsedCitation
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, &MalformedResponseError{Raw: raw}
	}
	return &parsed, nil
}

// Citer drives the two-stage cite-then-merge flow: the query chunks are split
// into parallel batches, each batch produces one citation JSON, and a second
// model call merges the batch outputs and dedups their references.
type Citer struct {
	provider    LLMProvider
	merger      LLMProvider
	temperature float64
	topP        float64
	batches     int
}

func NewCiter(provider, merger LLMProvider, temperature float64, batches int) *Citer {
	if merger == nil {
		merger = provider
	}
	if batches < 1 {
		batches = 10
	}
	return &Citer{
		provider:    provider,
		merger:      merger,
		temperature: temperature,
		topP:        0.1,
		batches:     batches,
	}
}

// Cite generates formatted text and a bibliography for the text chunks
// against the given sources, in the requested citation style.
func (c *Citer) Cite(ctx context.Context, text []string, sources string, style string) (*ParsedCitation, error) {
	if len(text) == 0 {
		return nil, fmt.Errorf("%w: no text to cite", ErrCitationFailed)
	}

	batchSize := len(text) / c.batches
	if batchSize < 1 {
		batchSize = 1
	}

	type batchResult struct {
		idx int
		raw string
		err error
	}

	var batches [][]string
	for i := 0; i < len(text); i += batchSize {
		end := i + batchSize
		if end > len(text) {
			end = len(text)
		}
		batches = append(batches, text[i:end])
	}

	results := make([]batchResult, len(batches))
	var wg sync.WaitGroup
	for i, batch := range batches {
		wg.Add(1)
		go func(i int, batch []string) {
			defer wg.Done()
			raw, err := c.citeBatch(ctx, batch, sources, style)
			results[i] = batchResult{idx: i, raw: raw, err: err}
		}(i, batch)
	}
	wg.Wait()

	var blobs []string
	for _, r := range results {
		if r.err != nil {
			return nil, fmt.Errorf("%w: batch %d: %v", ErrCitationFailed, r.idx, r.err)
		}
		blobs = append(blobs, r.raw)
	}

	return c.merge(ctx, blobs, style)
}

func (c *Citer) citeBatch(ctx context.Context, text []string, sources, style string) (string, error) {
	system := strings.ReplaceAll(SystemInstruction, "{format}", style)
	user := strings.NewReplacer(
		"{format}", style,
		"{sources}", sources,
		"{text}", strings.Join(text, "\n"),
	).Replace(UserInstruction)

	raw, err := c.provider.Chat(ctx, []Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}, WithTemperature(c.temperature), WithTopP(c.topP))
	if err != nil {
		return "", err
	}

	// Validate the batch output parses; the merge step consumes the raw JSON.
	if _, err := parseCitationJSON(raw); err != nil {
		return "", err
	}
	return StripFences(raw), nil
}

func (c *Citer) merge(ctx context.Context, blobs []string, style string) (*ParsedCitation, error) {
	prompt := strings.NewReplacer(
		"{text}", strings.Join(blobs, "\n"),
		"{format}", style,
	).Replace(MergeInstruction)

	raw, err := c.merger.Generate(ctx, prompt, WithTemperature(c.temperature), WithJSONObject())
	if err != nil {
		return nil, fmt.Errorf("%w: merge: %v", ErrCitationFailed, err)
	}

	parsed, err := parseCitationJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCitationFailed, err)
	}
	return parsed, nil
}
