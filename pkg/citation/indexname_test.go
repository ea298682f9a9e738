package citation

import (
	"strings"
	"testing"
)

func TestGenerateIndexName(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		maxLen int
		want   string
	}{
		{
			name:   "spaces and case",
			key:    "Test Search Key With Spaces",
			maxLen: 42,
			want:   "test-search-key-with-spacesa",
		},
		{
			name:   "truncated to max length",
			key:    strings.Repeat("verylongword ", 10),
			maxLen: 42,
			want:   strings.Repeat("verylongword-", 10)[:42] + "a",
		},
		{
			name:   "surrounding whitespace trimmed",
			key:    "  Climate Change  ",
			maxLen: 42,
			want:   "climate-changea",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateIndexName(tt.key, tt.maxLen)
			if got != tt.want {
				t.Errorf("GenerateIndexName(%q) = %q, want %q", tt.key, got, tt.want)
			}
			if len(got) > tt.maxLen+1 {
				t.Errorf("name %q longer than %d plus suffix", got, tt.maxLen)
			}
			if !strings.HasSuffix(got, "a") {
				t.Errorf("name %q missing fixed suffix", got)
			}
			if got != strings.ToLower(got) {
				t.Errorf("name %q is not lowercase", got)
			}
		})
	}
}
