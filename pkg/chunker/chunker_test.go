package chunker

import (
	"fmt"
	"strings"
	"testing"

	"ai-citation-be/pkg/store"
)

func TestCountTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 2},
		{"one two", 3},
		{"one two three four", 6},
		{"  spaced   out  words  ", 5},
	}

	for _, tt := range tests {
		if got := CountTokens(tt.text); got != tt.want {
			t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "plain sentences",
			text: "First sentence. Second sentence. Third one!",
			want: []string{"First sentence.", "Second sentence.", "Third one!"},
		},
		{
			name: "terminator with closing quote",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
		{
			name: "question and exclamation",
			text: "Is it true? Yes! Definitely.",
			want: []string{"Is it true?", "Yes!", "Definitely."},
		},
		{
			name: "empty input",
			text: "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitSentences(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunkTextRespectsTokenBudget(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "Sentence number %d has exactly seven words total. ", i)
	}

	maxTokens := 40
	chunks := ChunkText(sb.String(), maxTokens, 10)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if got := CountTokens(chunk); got > maxTokens {
			t.Errorf("chunk %d has %d estimated tokens, budget is %d", i, got, maxTokens)
		}
	}
}

func TestChunkTextOverlap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&sb, "Short sentence number %d. ", i)
	}

	chunks := ChunkText(sb.String(), 30, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Each chunk after the first starts with the tail sentences of its
	// predecessor.
	for i := 1; i < len(chunks); i++ {
		prev := SplitSentences(chunks[i-1])
		last := prev[len(prev)-1]
		if !strings.HasPrefix(chunks[i], last) {
			t.Errorf("chunk %d does not begin with the last sentence of chunk %d:\nprev tail: %q\nchunk: %q",
				i, i-1, last, chunks[i])
		}
	}
}

func TestChunkTextPreservesSentenceSequence(t *testing.T) {
	var sentences []string
	for i := 0; i < 30; i++ {
		sentences = append(sentences, fmt.Sprintf("Unique sentence number %d stands here.", i))
	}
	text := strings.Join(sentences, " ")

	chunks := ChunkText(text, 35, 10)

	// Every sentence must appear in at least one chunk, in order of first
	// occurrence.
	joined := strings.Join(chunks, "\x00")
	lastIdx := -1
	for i, sentence := range sentences {
		idx := strings.Index(joined, sentence)
		if idx < 0 {
			t.Fatalf("sentence %d missing from chunks", i)
		}
		if idx < lastIdx {
			t.Errorf("sentence %d appears out of order", i)
		}
		lastIdx = idx
	}
}

func TestChunkTextOversizedSentence(t *testing.T) {
	// One sentence far over the budget must still be split, on the forced
	// character path.
	giant := strings.Repeat("word ", 400)
	chunks := ChunkText(giant+".", 50, 10)

	if len(chunks) < 2 {
		t.Fatalf("oversized sentence was not split, got %d chunks", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk == "" {
			t.Errorf("chunk %d is empty", i)
		}
	}
}

func TestSplitDocumentsPreservesOrderAndMetadata(t *testing.T) {
	docs := make([]store.Document, 6)
	for i := range docs {
		var sb strings.Builder
		for j := 0; j < 20; j++ {
			fmt.Fprintf(&sb, "Document %d sentence %d goes right here. ", i, j)
		}
		docs[i] = store.NewDocument(sb.String(), map[string]interface{}{"page": i})
	}

	chunks := SplitDocuments(docs, 30, 10, 4)
	if len(chunks) <= len(docs) {
		t.Fatalf("expected more chunks than documents, got %d", len(chunks))
	}

	lastPage := 0
	for i, chunk := range chunks {
		page := chunk.Metadata["page"].(int)
		if page < lastPage {
			t.Fatalf("chunk %d from page %d appears after page %d: order not preserved", i, page, lastPage)
		}
		lastPage = page

		if !strings.Contains(chunk.PageContent, fmt.Sprintf("Document %d ", page)) {
			t.Errorf("chunk %d content does not match its page metadata %d", i, page)
		}
	}

	// Metadata maps must not be shared between chunks.
	chunks[0].Metadata["page"] = 99
	if chunks[1].Metadata["page"] == 99 {
		t.Error("metadata map shared between chunks")
	}
}

func TestCreateBatches(t *testing.T) {
	docs := make([]store.Document, 7)
	for i := range docs {
		docs[i] = store.NewDocument(fmt.Sprintf("doc %d", i), nil)
	}

	tests := []struct {
		batchSize int
		wantLens  []int
	}{
		{3, []int{3, 3, 1}},
		{7, []int{7}},
		{10, []int{7}},
		{1, []int{1, 1, 1, 1, 1, 1, 1}},
	}

	for _, tt := range tests {
		batches := CreateBatches(docs, tt.batchSize)
		if len(batches) != len(tt.wantLens) {
			t.Errorf("batchSize %d: got %d batches, want %d", tt.batchSize, len(batches), len(tt.wantLens))
			continue
		}
		for i, want := range tt.wantLens {
			if len(batches[i]) != want {
				t.Errorf("batchSize %d: batch %d has %d docs, want %d", tt.batchSize, i, len(batches[i]), want)
			}
		}
	}
}
