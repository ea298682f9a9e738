package store

import "time"

// Document is one chunk of source text plus the acquisition metadata that
// travels with it into the vector index. Metadata gets a "page_content" mirror
// and a synthesized "id" right before upsert.
type Document struct {
	PageContent string
	Metadata    map[string]interface{}
}

func NewDocument(content string, metadata map[string]interface{}) Document {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return Document{PageContent: content, Metadata: metadata}
}

// Source is one citable origin, either supplied by the caller or synthesized
// from a search result record. Immutable once built.
type Source struct {
	URL           string `json:"url,omitempty"`
	Content       string `json:"content,omitempty"`
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Type          string `json:"type"`
	PublishedDate string `json:"publishedDate,omitempty"`
	DOI           string `json:"doi,omitempty"`
	Volume        string `json:"volume,omitempty"`
	AccessDate    string `json:"accessDate,omitempty"`
}

// Normalize fills the defaulted fields the same way user input is defaulted.
func (s *Source) Normalize() {
	if s.Type == "" {
		s.Type = "website"
	}
	if s.AccessDate == "" {
		s.AccessDate = time.Now().UTC().Format("2006-01-02")
	}
}

// MetadataMap flattens a source into document metadata, skipping empty fields
// and the raw content body.
func (s Source) MetadataMap() map[string]interface{} {
	meta := make(map[string]interface{})
	put := func(key, value string) {
		if value != "" {
			meta[key] = value
		}
	}
	put("url", s.URL)
	put("link", s.URL)
	put("title", s.Title)
	put("author_name", s.Authors)
	put("type", s.Type)
	put("publication_date", s.PublishedDate)
	put("citation_doi", s.DOI)
	put("volume", s.Volume)
	put("access_date", s.AccessDate)
	return meta
}
