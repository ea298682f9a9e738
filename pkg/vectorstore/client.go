package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a minimal HTTP client for a serverless vector store. The control
// plane (index lifecycle, inference) lives on the base URL; data-plane calls
// go to the per-index host returned by describe.
type Client struct {
	apiKey string
	base   string
	http   *http.Client
}

type ClientConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		apiKey: cfg.APIKey,
		base:   cfg.BaseURL,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("vectorstore: %s %s returned %d: %s", method, url, resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type createIndexRequest struct {
	Name      string         `json:"name"`
	Dimension int            `json:"dimension"`
	Metric    string         `json:"metric"`
	Spec      map[string]any `json:"spec"`
}

// CreateIndex provisions a serverless index and returns its description.
func (c *Client) CreateIndex(ctx context.Context, name string, dimension int, metric, cloud, region string) (*IndexDescription, error) {
	req := createIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
		Spec: map[string]any{
			"serverless": map[string]string{"cloud": cloud, "region": region},
		},
	}
	var desc IndexDescription
	if err := c.do(ctx, http.MethodPost, c.base+"/indexes", req, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

func (c *Client) DescribeIndex(ctx context.Context, name string) (*IndexDescription, error) {
	var desc IndexDescription
	if err := c.do(ctx, http.MethodGet, c.base+"/indexes/"+name, nil, &desc); err != nil {
		return nil, err
	}
	return &desc, nil
}

// HasIndex reports whether the named index exists remotely.
func (c *Client) HasIndex(ctx context.Context, name string) (bool, error) {
	var list struct {
		Indexes []IndexDescription `json:"indexes"`
	}
	if err := c.do(ctx, http.MethodGet, c.base+"/indexes", nil, &list); err != nil {
		return false, err
	}
	for _, idx := range list.Indexes {
		if idx.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, c.base+"/indexes/"+name, nil, nil)
}

type embedRequest struct {
	Model      string            `json:"model"`
	Inputs     []map[string]any  `json:"inputs"`
	Parameters map[string]string `json:"parameters"`
}

// EmbedDense runs the store's dense inference model over the inputs.
// inputType is "passage" for documents and "query" for queries.
func (c *Client) EmbedDense(ctx context.Context, model string, inputs []string, inputType string) ([]DenseEmbedding, error) {
	var resp struct {
		Data []DenseEmbedding `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.base+"/embed", newEmbedRequest(model, inputs, inputType), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// EmbedSparse runs the store's sparse (lexical) inference model over the inputs.
func (c *Client) EmbedSparse(ctx context.Context, model string, inputs []string, inputType string) ([]SparseEmbedding, error) {
	var resp struct {
		Data []SparseEmbedding `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.base+"/embed", newEmbedRequest(model, inputs, inputType), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func newEmbedRequest(model string, inputs []string, inputType string) embedRequest {
	wrapped := make([]map[string]any, len(inputs))
	for i, text := range inputs {
		wrapped[i] = map[string]any{"text": text}
	}
	return embedRequest{
		Model:  model,
		Inputs: wrapped,
		Parameters: map[string]string{
			"input_type": inputType,
			"truncate":   "END",
		},
	}
}

type rerankRequest struct {
	Model           string            `json:"model"`
	Query           string            `json:"query"`
	Documents       []RerankDocument  `json:"documents"`
	TopN            int               `json:"top_n"`
	RankFields      []string          `json:"rank_fields"`
	ReturnDocuments bool              `json:"return_documents"`
	Parameters      map[string]string `json:"parameters"`
}

// Rerank scores candidate documents against the query with the store's rerank
// model, ranking only on the listed fields.
func (c *Client) Rerank(ctx context.Context, model, query string, documents []RerankDocument, topN int, rankFields []string) ([]RerankResult, error) {
	req := rerankRequest{
		Model:           model,
		Query:           query,
		Documents:       documents,
		TopN:            topN,
		RankFields:      rankFields,
		ReturnDocuments: true,
		Parameters:      map[string]string{"truncate": "END"},
	}
	var resp struct {
		Data []RerankResult `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, c.base+"/rerank", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// IndexHandle is a data-plane connection to one index host.
type IndexHandle struct {
	client *Client
	host   string
}

func (c *Client) Index(host string) *IndexHandle {
	if !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &IndexHandle{client: c, host: host}
}

func (h *IndexHandle) Upsert(ctx context.Context, vectors []Vector) error {
	body := map[string]any{"vectors": vectors}
	return h.client.do(ctx, http.MethodPost, h.host+"/vectors/upsert", body, nil)
}

func (h *IndexHandle) Query(ctx context.Context, q Query) (*QueryResponse, error) {
	var resp QueryResponse
	if err := h.client.do(ctx, http.MethodPost, h.host+"/query", q, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stats returns the total vector count, used as the population convergence oracle.
func (h *IndexHandle) Stats(ctx context.Context) (int, error) {
	var resp struct {
		TotalVectorCount int `json:"totalVectorCount"`
	}
	if err := h.client.do(ctx, http.MethodPost, h.host+"/describe_index_stats", map[string]any{}, &resp); err != nil {
		return 0, err
	}
	return resp.TotalVectorCount, nil
}

// Close releases the handle. The underlying HTTP client is shared, so this is
// bookkeeping for the single-active-index lifecycle rather than a socket close.
func (h *IndexHandle) Close() {
	h.client = nil
}
