package dto

import (
	"testing"

	"ai-citation-be/internal/pkg/serverutils"
)

func TestGenerateCitationRequestValidation(t *testing.T) {
	valid := GenerateCitationRequest{
		Title:    "Sea Level Rise",
		Content:  "Climate change drives sea-level rise.",
		FormType: "auto",
	}

	tests := []struct {
		name    string
		mutate  func(r *GenerateCitationRequest)
		wantErr bool
	}{
		{"valid auto request", func(r *GenerateCitationRequest) {}, false},
		{"missing title", func(r *GenerateCitationRequest) { r.Title = "" }, true},
		{"missing content", func(r *GenerateCitationRequest) { r.Content = "" }, true},
		{"missing form type", func(r *GenerateCitationRequest) { r.FormType = "" }, true},
		{"invalid form type", func(r *GenerateCitationRequest) { r.FormType = "magic" }, true},
		{"web without sources", func(r *GenerateCitationRequest) { r.FormType = "web" }, true},
		{"source without sources", func(r *GenerateCitationRequest) { r.FormType = "source" }, true},
		{
			"web with sources",
			func(r *GenerateCitationRequest) {
				r.FormType = "web"
				r.Sources = []SourceInput{{URL: "https://example.org", Title: "Example"}}
			},
			false,
		},
		{
			"source with content sources",
			func(r *GenerateCitationRequest) {
				r.FormType = "source"
				r.Sources = []SourceInput{{Content: "Direct content.", Title: "Direct"}}
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := serverutils.ValidateRequest(req)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSourceInputToSource(t *testing.T) {
	in := SourceInput{
		URL:           "https://example.org/paper",
		Content:       "body",
		Title:         "Paper",
		Authors:       "Doe, J.",
		Type:          "journal",
		PublishedDate: "2024-01-01",
		DOI:           "10.1/x",
		Volume:        "12",
		AccessDate:    "2026-09-01",
	}

	got := in.ToSource()
	if got.URL != in.URL || got.Title != in.Title || got.Authors != in.Authors ||
		got.DOI != in.DOI || got.Volume != in.Volume || got.Content != in.Content {
		t.Errorf("ToSource() dropped fields: %+v", got)
	}
}
