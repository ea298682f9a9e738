package vectorstore

import "errors"

var (
	// ErrIndexNotSet is returned when a data-plane call runs without a
	// current index.
	ErrIndexNotSet = errors.New("vectorstore: no active index, create or set an index first")

	// ErrInvalidAlpha is returned when the hybrid fusion weight leaves [0,1].
	ErrInvalidAlpha = errors.New("vectorstore: alpha must be between 0 and 1")

	// ErrMissingSparse is returned when hybrid normalization gets no sparse vector.
	ErrMissingSparse = errors.New("vectorstore: sparse vector cannot be nil or empty")
)

type SparseVector struct {
	Indices []int64   `json:"indices"`
	Values  []float64 `json:"values"`
}

type Vector struct {
	ID           string                 `json:"id"`
	Values       []float64              `json:"values"`
	SparseValues *SparseVector          `json:"sparse_values,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Query is the structured form accepted by HybridQuery. String queries are
// embedded and normalized into this shape first.
type Query struct {
	Vector          []float64              `json:"vector,omitempty"`
	SparseVector    *SparseVector          `json:"sparse_vector,omitempty"`
	TopK            int                    `json:"top_k"`
	IncludeMetadata bool                   `json:"include_metadata"`
	Filter          map[string]interface{} `json:"filter,omitempty"`
}

type Match struct {
	ID       string                 `json:"id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type QueryResponse struct {
	Matches []Match `json:"matches"`
}

type DenseEmbedding struct {
	Values []float64 `json:"values"`
}

type SparseEmbedding struct {
	SparseValues  []float64 `json:"sparse_values"`
	SparseIndices []int64   `json:"sparse_indices"`
}

type IndexDescription struct {
	Name      string `json:"name"`
	Host      string `json:"host"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

type RerankDocument struct {
	ID          string                 `json:"id"`
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type RerankResult struct {
	Index    int            `json:"index"`
	Score    float64        `json:"score"`
	Document RerankDocument `json:"document"`
}
