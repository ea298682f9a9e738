package chunker

import (
	"math"
	"regexp"
	"strings"
	"sync"

	"ai-citation-be/pkg/store"
)

// sentenceEnd matches a sentence terminator followed by whitespace. Closing
// quotes and brackets stay attached to the sentence they end.
var sentenceEnd = regexp.MustCompile(`([.!?]+["')\]]*)\s+`)

// CountTokens estimates tokens from word count. Most tokenizers average
// 1.3-1.5 tokens per word, so 1.5 overestimates rather than underestimates.
func CountTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Round(float64(words) * 1.5))
}

// SplitSentences breaks text on sentence boundaries. The terminator stays on
// the sentence it closes.
func SplitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// ChunkText splits text into chunks of at most maxTokens estimated tokens,
// carrying overlapPercent% of trailing sentences (min 1) into the next chunk.
func ChunkText(text string, maxTokens, overlapPercent int) []string {
	return processChunk(SplitSentences(text), maxTokens, overlapPercent)
}

func processChunk(sentences []string, maxTokens, overlapPercent int) []string {
	var chunks []string
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := CountTokens(sentence)

		// A single oversized sentence bypasses the sentence-aware path.
		if sentenceTokens > maxTokens {
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, " "))
				current = nil
				currentTokens = 0
			}
			overlap := overlapPercent
			if limit := maxTokens / 10; limit < overlap {
				overlap = limit
			}
			chunks = append(chunks, recursiveCharacterSplit(sentence, maxTokens, overlap)...)
			continue
		}

		if currentTokens+sentenceTokens > maxTokens {
			chunks = append(chunks, strings.Join(current, " "))

			// Retain overlap context from the closed chunk.
			overlapSize := len(current) * overlapPercent / 100
			if overlapSize < 1 {
				overlapSize = 1
			}
			current = append([]string(nil), current[len(current)-overlapSize:]...)
			currentTokens = CountTokens(strings.Join(current, " "))
		}

		current = append(current, sentence)
		currentTokens += sentenceTokens
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}

	return chunks
}

var splitSeparators = []string{"\n\n", "\n", " ", ""}

// recursiveCharacterSplit is the generic fallback splitter: it cuts on the
// coarsest separator that produces pieces under chunkSize characters, merging
// pieces back together with charOverlap characters of carry-over.
func recursiveCharacterSplit(text string, chunkSize, charOverlap int) []string {
	return splitRecursive(text, chunkSize, charOverlap, 0)
}

func splitRecursive(text string, chunkSize, charOverlap, sepIdx int) []string {
	if len(text) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}
	if sepIdx >= len(splitSeparators)-1 {
		return hardSplit(text, chunkSize, charOverlap)
	}

	sep := splitSeparators[sepIdx]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, chunkSize, charOverlap, sepIdx+1)
	}

	var chunks []string
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}
	for _, part := range parts {
		if len(part) > chunkSize {
			flush()
			chunks = append(chunks, splitRecursive(part, chunkSize, charOverlap, sepIdx+1)...)
			continue
		}
		if current.Len()+len(sep)+len(part) > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(sep)
		}
		current.WriteString(part)
	}
	flush()
	return chunks
}

func hardSplit(text string, chunkSize, charOverlap int) []string {
	runes := []rune(text)
	step := chunkSize - charOverlap
	if step <= 0 {
		step = chunkSize
	}
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// SplitDocuments chunks a batch of page-level documents on a bounded worker
// pool, preserving input order and copying each page's metadata into every
// chunk produced from it.
func SplitDocuments(documents []store.Document, maxTokens, overlapPercent, workers int) []store.Document {
	if workers < 1 {
		workers = 1
	}

	results := make([][]store.Document, len(documents))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				doc := documents[i]
				chunks := ChunkText(doc.PageContent, maxTokens, overlapPercent)
				split := make([]store.Document, 0, len(chunks))
				for _, chunk := range chunks {
					meta := make(map[string]interface{}, len(doc.Metadata))
					for k, v := range doc.Metadata {
						meta[k] = v
					}
					split = append(split, store.Document{PageContent: chunk, Metadata: meta})
				}
				results[i] = split
			}
		}()
	}

	for i := range documents {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var flat []store.Document
	for _, r := range results {
		flat = append(flat, r...)
	}
	return flat
}

// CreateBatches windows the chunk list into fixed-size batches so each
// embedding request stays under the inference API's per-request item cap.
func CreateBatches(documents []store.Document, batchSize int) [][]store.Document {
	if batchSize < 1 {
		batchSize = 1
	}
	var batches [][]store.Document
	for i := 0; i < len(documents); i += batchSize {
		end := i + batchSize
		if end > len(documents) {
			end = len(documents)
		}
		batches = append(batches, documents[i:end])
	}
	return batches
}
