package dto

import (
	"ai-citation-be/pkg/credibility"
	"ai-citation-be/pkg/store"
)

type SourceInput struct {
	URL           string `json:"url"`
	Content       string `json:"content"`
	Title         string `json:"title"`
	Authors       string `json:"authors"`
	Type          string `json:"type"`
	PublishedDate string `json:"publishedDate"`
	DOI           string `json:"doi"`
	Volume        string `json:"volume"`
	AccessDate    string `json:"accessDate"`
}

func (s SourceInput) ToSource() store.Source {
	return store.Source{
		URL:           s.URL,
		Content:       s.Content,
		Title:         s.Title,
		Authors:       s.Authors,
		Type:          s.Type,
		PublishedDate: s.PublishedDate,
		DOI:           s.DOI,
		Volume:        s.Volume,
		AccessDate:    s.AccessDate,
	}
}

type GenerateCitationRequest struct {
	Title          string        `json:"title" validate:"required"`
	Content        string        `json:"content" validate:"required"`
	FormType       string        `json:"formType" validate:"required,oneof=auto web source"`
	CitationStyle  string        `json:"citationStyle"`
	Sources        []SourceInput `json:"sources" validate:"required_unless=FormType auto,omitempty,min=1,dive"`
	SupplementURLs bool          `json:"supplementUrls"`
}

type CitationResult struct {
	FormattedText   string   `json:"formatted_text"`
	References      []string `json:"references"`
	ValidationNotes []string `json:"validation_notes,omitempty"`
}

type GenerateCitationResponse struct {
	Result       CitationResult            `json:"result"`
	OverallScore float64                   `json:"overall_score"`
	Sources      []credibility.SourceScore `json:"sources"`
}
