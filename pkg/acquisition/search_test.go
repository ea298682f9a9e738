package acquisition

import "testing"

func TestCleanMetatags(t *testing.T) {
	tests := []struct {
		name     string
		metatags map[string]string
		field    string
		want     string
	}{
		{
			name:     "citation title wins over og title",
			metatags: map[string]string{"citation_title": "Proper Title", "og:title": "Social Title"},
			field:    "title",
			want:     "Proper Title",
		},
		{
			name:     "falls through to og title",
			metatags: map[string]string{"og:title": "Social Title"},
			field:    "title",
			want:     "Social Title",
		},
		{
			name:     "pdf url preferred for link",
			metatags: map[string]string{"citation_pdf_url": "https://x/p.pdf", "og:url": "https://x/p"},
			field:    "link",
			want:     "https://x/p.pdf",
		},
		{
			name:     "dc creator wins for author",
			metatags: map[string]string{"dc.creator": "Doe, J.", "citation_author": "Roe, R."},
			field:    "author_name",
			want:     "Doe, J.",
		},
		{
			name:     "missing field is empty",
			metatags: map[string]string{},
			field:    "citation_doi",
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleaned := CleanMetatags(tt.metatags)
			if got := cleaned[tt.field]; got != tt.want {
				t.Errorf("%s = %v, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestCleanMetatagsDefaults(t *testing.T) {
	cleaned := CleanMetatags(map[string]string{})

	if cleaned["type"] != "website" {
		t.Errorf("type = %v, want website default", cleaned["type"])
	}
	if cleaned["access_date"] == "" {
		t.Error("access_date not set")
	}
}

func TestFilterReferencePages(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  int
	}{
		{
			name:  "references after conclusion trimmed",
			pages: []string{"intro", "methods", "the conclusion section", "References\n[1] ..."},
			want:  3,
		},
		{
			name:  "references before conclusion kept",
			pages: []string{"see references in section 2", "body", "conclusion"},
			want:  3,
		},
		{
			name:  "no conclusion keeps everything",
			pages: []string{"intro", "References\n[1] ..."},
			want:  2,
		},
		{
			name:  "bibliography marker",
			pages: []string{"conclusion", "Bibliography"},
			want:  1,
		},
		{
			name:  "singular reference heading trimmed",
			pages: []string{"intro", "conclusion", "Reference\n[1] ..."},
			want:  2,
		},
		{
			name:  "conclusion page carrying the reference heading is cut",
			pages: []string{"intro", "in conclusion...\nReferences\n[1] ..."},
			want:  1,
		},
		{
			name:  "empty input",
			pages: nil,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterReferencePages(tt.pages)
			if len(got) != tt.want {
				t.Errorf("kept %d pages, want %d", len(got), tt.want)
			}
		})
	}
}

func TestArtifactName(t *testing.T) {
	a := artifactName("https://example.org/paper.pdf")
	b := artifactName("https://example.org/other.pdf")

	if a == b {
		t.Error("different urls produced the same artifact name")
	}
	if a != artifactName("https://example.org/paper.pdf") {
		t.Error("artifact name is not stable for the same url")
	}
	if len(a) != 16 {
		t.Errorf("artifact name length = %d, want 16", len(a))
	}
}
