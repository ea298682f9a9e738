package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ai-citation-be/internal/pkg/logger"
	"ai-citation-be/pkg/store"
)

// SearchClient wraps the custom-search API: templated URL with key, engine id,
// query, date restriction and result count.
type SearchClient struct {
	baseURL      string
	apiKey       string
	cx           string
	topN         int
	dateRestrict string
	http         *http.Client
	log          logger.ILogger
}

type SearchConfig struct {
	BaseURL      string
	APIKey       string
	CX           string
	TopN         int
	DateRestrict string
}

func NewSearchClient(cfg SearchConfig, log logger.ILogger) *SearchClient {
	return &SearchClient{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		cx:           cfg.CX,
		topN:         cfg.TopN,
		dateRestrict: cfg.DateRestrict,
		http:         &http.Client{Timeout: 15 * time.Second},
		log:          log,
	}
}

// CleanResult is the normalized output of one search: per-link metadata plus
// the ordered link list.
type CleanResult struct {
	Meta  map[string]map[string]interface{}
	Links []string
}

type searchResponse struct {
	Items []struct {
		Pagemap struct {
			Metatags []map[string]string `json:"metatags"`
		} `json:"pagemap"`
	} `json:"items"`
}

// fieldMappings is the priority table for metadata extraction: per field, the
// first non-empty metatag candidate wins.
var fieldMappings = []struct {
	field string
	keys  []string
}{
	{"title", []string{"citation_title", "dc.title", "og:title"}},
	{"link", []string{"citation_pdf_url", "htmlFormattedUrl", "og:url"}},
	{"type", []string{"type", "og:type"}},
	{"publisher", []string{"dc.publisher", "citation_publisher"}},
	{"journal_title", []string{"citation_journal_title", "citation_conference_title", "citation_book_title"}},
	{"publication_date", []string{"prism.publicationdate", "Updated Date", "citation_publication_date"}},
	{"citation_doi", []string{"citation_doi"}},
	{"author_name", []string{"dc.creator", "citation_author"}},
	{"volume", []string{"citation_volume"}},
	{"issn", []string{"citation_issn", "prism.issn"}},
	{"abstract", []string{"citation_abstract", "dc.description"}},
}

// search fetches raw results for the query. topN <= 0 falls back to the
// configured default.
func (s *SearchClient) search(ctx context.Context, query string, topN int) (*searchResponse, error) {
	if topN <= 0 {
		topN = s.topN
	}

	params := url.Values{}
	params.Set("key", s.apiKey)
	params.Set("cx", s.cx)
	params.Set("q", query)
	params.Set("dateRestrict", s.dateRestrict)
	params.Set("num", fmt.Sprint(topN))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	var data searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &data, nil
}

// CleanSearch performs a search and extracts structured metadata per result.
func (s *SearchClient) CleanSearch(ctx context.Context, query string, topN int) (*CleanResult, error) {
	data, err := s.search(ctx, query, topN)
	if err != nil {
		return nil, err
	}
	return cleanData(data), nil
}

// cleanData extracts relevant metadata from raw search results.
func cleanData(data *searchResponse) *CleanResult {
	result := &CleanResult{Meta: make(map[string]map[string]interface{})}

	for _, item := range data.Items {
		var metatags map[string]string
		if len(item.Pagemap.Metatags) > 0 {
			metatags = item.Pagemap.Metatags[0]
		} else {
			metatags = map[string]string{}
		}

		link := firstNonEmpty(metatags, "citation_pdf_url", "htmlFormattedUrl", "og:url")
		if link == "" {
			continue
		}

		result.Meta[link] = CleanMetatags(metatags)
		result.Links = append(result.Links, link)
	}

	return result
}

// CleanMetatags maps raw metatags onto the citation metadata schema via the
// field priority table.
func CleanMetatags(metatags map[string]string) map[string]interface{} {
	cleaned := make(map[string]interface{}, len(fieldMappings)+1)
	for _, mapping := range fieldMappings {
		cleaned[mapping.field] = firstNonEmpty(metatags, mapping.keys...)
	}

	cleaned["access_date"] = time.Now().UTC().Format("2006-01-02 15:04:05")

	if cleaned["type"] == "" {
		cleaned["type"] = "website"
	}
	return cleaned
}

// SourceFromMeta synthesizes a Source from one cleaned search record, for
// supplementing caller-provided sources with searched ones.
func SourceFromMeta(link string, meta map[string]interface{}) store.Source {
	str := func(key string) string {
		v, _ := meta[key].(string)
		return v
	}
	return store.Source{
		URL:           link,
		Title:         str("title"),
		Authors:       str("author_name"),
		Type:          str("type"),
		PublishedDate: str("publication_date"),
		DOI:           str("citation_doi"),
		Volume:        str("volume"),
		AccessDate:    str("access_date"),
	}
}

func firstNonEmpty(tags map[string]string, keys ...string) string {
	for _, key := range keys {
		if v := tags[key]; v != "" {
			return v
		}
	}
	return ""
}
