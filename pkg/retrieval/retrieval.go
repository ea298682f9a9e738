package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/vectorstore"
)

// relevanceThreshold is the minimum rerank score a match must reach to be
// considered evidence for a citation.
const relevanceThreshold = 0.6

// Retriever fans chunked queries out against the active index and keeps only
// the single best reranked match per query.
type Retriever struct {
	manager *vectorstore.Manager
	topK    int
	log     logger.ILogger
}

func NewRetriever(manager *vectorstore.Manager, topK int, log logger.ILogger) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{manager: manager, topK: topK, log: log}
}

// ProcessSingleQuery runs one hybrid search and reranks the candidates down
// to the best match. A query with no candidates yields an empty slice, not an
// error.
func (r *Retriever) ProcessSingleQuery(ctx context.Context, query string) ([]vectorstore.RerankResult, error) {
	resp, err := r.manager.HybridQuery(ctx, query, r.topK, true)
	if err != nil {
		return nil, fmt.Errorf("hybrid query failed: %w", err)
	}
	if len(resp.Matches) == 0 {
		return nil, nil
	}
	return r.manager.Rerank(ctx, query, resp.Matches, 1)
}

// ProcessQueries runs every query concurrently, preserving query order in the
// result. The whole batch retries with exponential backoff when any query
// fails, up to three attempts.
func (r *Retriever) ProcessQueries(ctx context.Context, queries []string) ([][]vectorstore.RerankResult, error) {
	var results [][]vectorstore.RerankResult

	operation := func() error {
		var err error
		results, err = r.runBatch(ctx, queries)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(newBatchBackoff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("query batch failed after retries: %w", err)
	}
	return results, nil
}

func newBatchBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 4 * time.Second
	b.MaxInterval = 10 * time.Second
	return b
}

func (r *Retriever) runBatch(ctx context.Context, queries []string) ([][]vectorstore.RerankResult, error) {
	results := make([][]vectorstore.RerankResult, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results[i], errs[i] = r.ProcessSingleQuery(ctx, query)
		}(i, query)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			r.log.Warn("retrieval", "query failed in batch", map[string]interface{}{"index": fmt.Sprint(i), "error": err.Error()})
			return nil, err
		}
	}
	return results, nil
}

// FilterRerankResults flattens per-query results, drops matches under the
// relevance threshold and keeps only the first occurrence per document id.
func FilterRerankResults(batches [][]vectorstore.RerankResult) []vectorstore.RerankResult {
	seen := make(map[string]struct{})
	var kept []vectorstore.RerankResult

	for _, batch := range batches {
		for _, result := range batch {
			if result.Score < relevanceThreshold {
				continue
			}
			if _, dup := seen[result.Document.ID]; dup {
				continue
			}
			seen[result.Document.ID] = struct{}{}
			kept = append(kept, result)
		}
	}
	return kept
}
