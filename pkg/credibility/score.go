package credibility

import "math"

const (
	rerankWeight      = 0.6
	credibilityWeight = 0.4
)

// SourceScore pairs a source with its relevance and credibility components.
// Both component scores live on a 0-1 scale.
type SourceScore struct {
	Link             string  `json:"link"`
	RerankScore      float64 `json:"rerank_score"`
	CredibilityScore float64 `json:"credibility_score"`
	Combined         float64 `json:"combined_score"`
}

// CalculateOverallScore fills in each source's combined score and returns the
// mean across all sources. Combined scores land on a 0-100 scale, rounded to
// two decimals.
func CalculateOverallScore(items []SourceScore) ([]SourceScore, float64) {
	if len(items) == 0 {
		return items, 0
	}

	var total float64
	for i := range items {
		combined := (items[i].RerankScore*rerankWeight + items[i].CredibilityScore*credibilityWeight) * 100
		items[i].Combined = round2(combined)
		total += items[i].Combined
	}
	return items, round2(total / float64(len(items)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
