package vectorstore

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path"
	"strings"
	"sync"

	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/store"

	"github.com/google/uuid"
)

// Manager owns the lifecycle of one active index at a time: create, select,
// populate, query. Concurrent requests share the current index handle; which
// index is current changes only inside SetCurrentIndex.
type Manager struct {
	client *Client
	log    logger.ILogger

	cloud       string
	region      string
	denseModel  string
	sparseModel string
	rerankModel string
	dimension   int

	mu               sync.Mutex
	currentIndex     *IndexHandle
	currentIndexName string
	currentIndexHost string
}

type ManagerConfig struct {
	Cloud       string
	Region      string
	DenseModel  string
	SparseModel string
	RerankModel string
	Dimension   int
}

func NewManager(client *Client, cfg ManagerConfig, log logger.ILogger) *Manager {
	return &Manager{
		client:      client,
		log:         log,
		cloud:       cfg.Cloud,
		region:      cfg.Region,
		denseModel:  cfg.DenseModel,
		sparseModel: cfg.SparseModel,
		rerankModel: cfg.RerankModel,
		dimension:   cfg.Dimension,
	}
}

func (m *Manager) CurrentIndexName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentIndexName
}

// CreateIndex is idempotent: an index that already exists remotely is adopted
// as current without re-creating it.
func (m *Manager) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	if metric == "" {
		metric = "dotproduct"
	}
	if dimension == 0 {
		dimension = m.dimension
	}

	exists, err := m.client.HasIndex(ctx, name)
	if err != nil {
		return fmt.Errorf("checking index %q: %w", name, err)
	}
	if !exists {
		desc, err := m.client.CreateIndex(ctx, name, dimension, metric, m.cloud, m.region)
		if err != nil {
			return fmt.Errorf("creating index %q: %w", name, err)
		}
		m.adopt(name, desc.Host)
		return nil
	}

	if ok, err := m.SetCurrentIndex(ctx, name, ""); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("index %q disappeared during creation", name)
	}
	return nil
}

// SetCurrentIndex switches the active index. It returns false when the named
// index does not exist remotely, and is the only place allowed to mutate which
// index is current. The prior handle is closed before the new one opens.
func (m *Manager) SetCurrentIndex(ctx context.Context, name, host string) (bool, error) {
	m.mu.Lock()
	if m.currentIndexName == name && m.currentIndex != nil {
		m.mu.Unlock()
		return true, nil
	}
	m.mu.Unlock()

	exists, err := m.client.HasIndex(ctx, name)
	if err != nil {
		return false, fmt.Errorf("checking index %q: %w", name, err)
	}
	if !exists {
		return false, nil
	}

	if host == "" {
		desc, err := m.client.DescribeIndex(ctx, name)
		if err != nil {
			return false, fmt.Errorf("describing index %q: %w", name, err)
		}
		host = desc.Host
	}

	m.adopt(name, host)
	return true, nil
}

func (m *Manager) adopt(name, host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentIndex != nil && m.currentIndexName != name {
		m.currentIndex.Close()
	}
	m.currentIndexName = name
	m.currentIndexHost = host
	m.currentIndex = m.client.Index(host)
	m.log.Info("vectorstore", "Current index switched", map[string]interface{}{"index": name})
}

func (m *Manager) handle() (*IndexHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentIndex == nil {
		return nil, ErrIndexNotSet
	}
	return m.currentIndex, nil
}

// makeID derives a globally unique vector id from the chunk's provenance plus
// a time-salted hash. Ids are not stable across runs and don't need to be.
func makeID(metadata map[string]interface{}, chunkNum, batchNum int) string {
	basename := ""
	if fp, ok := metadata["file_path"].(string); ok {
		basename = strings.TrimSuffix(path.Base(fp), ".pdf")
		basename = strings.ReplaceAll(basename, " ", "-")
	}
	page := ""
	if p, ok := metadata["page"]; ok {
		page = fmt.Sprint(p)
	}
	salt := fmt.Sprintf("%x", sha256.Sum256([]byte(uuid.NewString())))[:12]
	return fmt.Sprintf("%s-%s-%d-%s-%d", basename, page, chunkNum, salt, batchNum)
}

// UpsertDocuments embeds each batch with the dense and sparse models, builds
// composite vectors and flushes them to the store every 10 batches or on the
// final batch to amortize network round-trips.
func (m *Manager) UpsertDocuments(ctx context.Context, batches [][]store.Document) error {
	handle, err := m.handle()
	if err != nil {
		return err
	}

	var pending []Vector
	chunkNum := 1

	for batchNum, documents := range batches {
		texts := make([]string, len(documents))
		for i, doc := range documents {
			texts[i] = doc.PageContent
		}

		dense, err := m.client.EmbedDense(ctx, m.denseModel, texts, "passage")
		if err != nil {
			return fmt.Errorf("dense embedding batch %d: %w", batchNum, err)
		}
		sparse, err := m.client.EmbedSparse(ctx, m.sparseModel, texts, "passage")
		if err != nil {
			return fmt.Errorf("sparse embedding batch %d: %w", batchNum, err)
		}
		if len(dense) != len(documents) || len(sparse) != len(documents) {
			return fmt.Errorf("embedding count mismatch in batch %d", batchNum)
		}

		for i, doc := range documents {
			doc.Metadata["page_content"] = doc.PageContent
			id := makeID(doc.Metadata, chunkNum, batchNum)
			doc.Metadata["id"] = id

			pending = append(pending, Vector{
				ID:     id,
				Values: dense[i].Values,
				SparseValues: &SparseVector{
					Values:  sparse[i].SparseValues,
					Indices: sparse[i].SparseIndices,
				},
				Metadata: doc.Metadata,
			})
			chunkNum++
		}

		if (batchNum+1)%10 == 0 || batchNum == len(batches)-1 {
			if err := handle.Upsert(ctx, pending); err != nil {
				return fmt.Errorf("upserting batch %d: %w", batchNum, err)
			}
			m.log.Info("vectorstore", "Flushed vectors to index", map[string]interface{}{
				"count": len(pending),
				"batch": batchNum,
			})
			pending = nil
			chunkNum = 1
		}
	}

	return nil
}

// HybridScoreNorm scales dense and sparse vectors by a convex combination:
// alpha*dense + (1-alpha)*sparse.
func HybridScoreNorm(dense []float64, sparse *SparseVector, alpha float64) ([]float64, *SparseVector, error) {
	if alpha < 0 || alpha > 1 {
		return nil, nil, ErrInvalidAlpha
	}
	if sparse == nil || len(sparse.Values) == 0 {
		return nil, nil, ErrMissingSparse
	}

	scaledDense := make([]float64, len(dense))
	for i, v := range dense {
		scaledDense[i] = v * alpha
	}
	scaledSparse := &SparseVector{
		Indices: sparse.Indices,
		Values:  make([]float64, len(sparse.Values)),
	}
	for i, v := range sparse.Values {
		scaledSparse.Values[i] = v * (1 - alpha)
	}
	return scaledDense, scaledSparse, nil
}

// hybridAlpha is fixed: citation-relevant passages often hinge on exact
// terminology that the sparse side captures, so neither side dominates.
const hybridAlpha = 0.5

// HybridQuery embeds a string query with both models, normalizes the scores
// and runs a fused similarity search against the current index.
func (m *Manager) HybridQuery(ctx context.Context, query string, topK int, includeMetadata bool) (*QueryResponse, error) {
	handle, err := m.handle()
	if err != nil {
		return nil, err
	}

	dense, err := m.client.EmbedDense(ctx, m.denseModel, []string{query}, "query")
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	sparse, err := m.client.EmbedSparse(ctx, m.sparseModel, []string{query}, "query")
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(dense) == 0 || len(sparse) == 0 {
		return nil, fmt.Errorf("empty embedding response for query")
	}

	dv, sv, err := HybridScoreNorm(dense[0].Values, &SparseVector{
		Values:  sparse[0].SparseValues,
		Indices: sparse[0].SparseIndices,
	}, hybridAlpha)
	if err != nil {
		return nil, err
	}

	return handle.Query(ctx, Query{
		Vector:          dv,
		SparseVector:    sv,
		TopK:            topK,
		IncludeMetadata: includeMetadata,
	})
}

// HybridQueryStructured passes a pre-built query through, filling defaults.
func (m *Manager) HybridQueryStructured(ctx context.Context, q Query) (*QueryResponse, error) {
	handle, err := m.handle()
	if err != nil {
		return nil, err
	}
	if q.TopK == 0 {
		q.TopK = 10
	}
	return handle.Query(ctx, q)
}

// SparseQuery runs a lexical-only search.
func (m *Manager) SparseQuery(ctx context.Context, query string, topK int, includeMetadata bool) (*QueryResponse, error) {
	handle, err := m.handle()
	if err != nil {
		return nil, err
	}
	sparse, err := m.client.EmbedSparse(ctx, m.sparseModel, []string{query}, "query")
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(sparse) == 0 {
		return nil, fmt.Errorf("empty embedding response for query")
	}
	return handle.Query(ctx, Query{
		SparseVector: &SparseVector{
			Values:  sparse[0].SparseValues,
			Indices: sparse[0].SparseIndices,
		},
		TopK:            topK,
		IncludeMetadata: includeMetadata,
	})
}

// DenseQuery runs a semantic-only search.
func (m *Manager) DenseQuery(ctx context.Context, query string, topK int, includeMetadata bool) (*QueryResponse, error) {
	handle, err := m.handle()
	if err != nil {
		return nil, err
	}
	dense, err := m.client.EmbedDense(ctx, m.denseModel, []string{query}, "query")
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(dense) == 0 {
		return nil, fmt.Errorf("empty embedding response for query")
	}
	return handle.Query(ctx, Query{
		Vector:          dense[0].Values,
		TopK:            topK,
		IncludeMetadata: includeMetadata,
	})
}

// Rerank re-scores retrieved matches on their page content.
func (m *Manager) Rerank(ctx context.Context, query string, matches []Match, topN int) ([]RerankResult, error) {
	docs := make([]RerankDocument, 0, len(matches))
	for _, match := range matches {
		content, _ := match.Metadata["page_content"].(string)
		docs = append(docs, RerankDocument{
			ID:          match.ID,
			PageContent: content,
			Metadata:    match.Metadata,
		})
	}
	return m.client.Rerank(ctx, m.rerankModel, query, docs, topN, []string{"page_content"})
}

// IndexStats returns the total vector count of the current index.
func (m *Manager) IndexStats(ctx context.Context) (int, error) {
	handle, err := m.handle()
	if err != nil {
		return 0, err
	}
	return handle.Stats(ctx)
}

func (m *Manager) DeleteIndex(ctx context.Context, name string) error {
	return m.client.DeleteIndex(ctx, name)
}

// Cleanup releases the current handle.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.currentIndex != nil {
		m.currentIndex.Close()
		m.currentIndex = nil
		m.currentIndexName = ""
		m.currentIndexHost = ""
	}
}
