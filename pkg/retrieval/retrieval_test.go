package retrieval

import (
	"testing"

	"ai-citation-be/pkg/vectorstore"
)

func result(id string, score float64) vectorstore.RerankResult {
	return vectorstore.RerankResult{
		Score:    score,
		Document: vectorstore.RerankDocument{ID: id},
	}
}

func TestFilterRerankResults(t *testing.T) {
	tests := []struct {
		name    string
		batches [][]vectorstore.RerankResult
		wantIDs []string
	}{
		{
			name: "below threshold excluded",
			batches: [][]vectorstore.RerankResult{
				{result("a", 0.59)},
				{result("b", 0.61)},
			},
			wantIDs: []string{"b"},
		},
		{
			name: "threshold is inclusive",
			batches: [][]vectorstore.RerankResult{
				{result("a", 0.6)},
			},
			wantIDs: []string{"a"},
		},
		{
			name: "duplicate id keeps first occurrence",
			batches: [][]vectorstore.RerankResult{
				{result("a", 0.7)},
				{result("a", 0.95)},
				{result("b", 0.8)},
			},
			wantIDs: []string{"a", "b"},
		},
		{
			name: "duplicate below threshold still excluded",
			batches: [][]vectorstore.RerankResult{
				{result("a", 0.5)},
				{result("a", 0.5)},
			},
			wantIDs: nil,
		},
		{
			name:    "empty input",
			batches: nil,
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterRerankResults(tt.batches)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.wantIDs))
			}
			for i, want := range tt.wantIDs {
				if got[i].Document.ID != want {
					t.Errorf("result %d id = %q, want %q", i, got[i].Document.ID, want)
				}
			}
		})
	}
}

func TestFilterRerankResultsKeepsFirstScore(t *testing.T) {
	batches := [][]vectorstore.RerankResult{
		{result("a", 0.7)},
		{result("a", 0.95)},
	}

	got := FilterRerankResults(batches)
	if len(got) != 1 {
		t.Fatalf("got %d results, want 1", len(got))
	}
	if got[0].Score != 0.7 {
		t.Errorf("kept score = %v, want the first occurrence 0.7", got[0].Score)
	}
}
