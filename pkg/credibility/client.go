package credibility

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ai-citation-be/internal/pkg/logger"
)

// Client calls the external credibility scoring service. Failures degrade to
// an empty result set so citation generation never blocks on scoring.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.ILogger
}

func NewClient(baseURL string, log logger.ILogger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

type batchRequest struct {
	Sources []map[string]interface{} `json:"sources"`
}

// Metric is one scored source as returned by the batch endpoint.
type Metric struct {
	Status string                 `json:"status"`
	Data   map[string]interface{} `json:"data"`
}

// Score extracts the 0-100 credibility score, or 0 when absent.
func (m Metric) Score() float64 {
	if v, ok := m.Data["credibility_score"].(float64); ok {
		return v
	}
	return 0
}

// ScoreBatch scores every source record in one call. Any transport or decode
// failure is logged and an empty slice returned.
func (c *Client) ScoreBatch(ctx context.Context, sources []map[string]interface{}) []Metric {
	if len(sources) == 0 {
		return nil
	}

	body, err := json.Marshal(batchRequest{Sources: sources})
	if err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/credibility/batch", bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("credibility", "scoring service unreachable", map[string]interface{}{"error": err.Error()})
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("credibility", "scoring service returned error", map[string]interface{}{"status": fmt.Sprint(resp.StatusCode)})
		return nil
	}

	var metrics []Metric
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		c.log.Warn("credibility", "failed to decode scoring response", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return metrics
}
