package credibility

import "testing"

func TestCalculateOverallScore(t *testing.T) {
	items := []SourceScore{
		{Link: "https://example.org/a", RerankScore: 0.9, CredibilityScore: 0.8},
	}

	scored, overall := CalculateOverallScore(items)

	if scored[0].Combined != 86.00 {
		t.Errorf("combined = %v, want 86.00", scored[0].Combined)
	}
	if overall != 86.00 {
		t.Errorf("overall = %v, want 86.00", overall)
	}
}

func TestCalculateOverallScoreMean(t *testing.T) {
	items := []SourceScore{
		{RerankScore: 1.0, CredibilityScore: 1.0}, // 100
		{RerankScore: 0.5, CredibilityScore: 0.5}, // 50
	}

	scored, overall := CalculateOverallScore(items)

	if scored[0].Combined != 100.00 {
		t.Errorf("first combined = %v, want 100.00", scored[0].Combined)
	}
	if scored[1].Combined != 50.00 {
		t.Errorf("second combined = %v, want 50.00", scored[1].Combined)
	}
	if overall != 75.00 {
		t.Errorf("overall = %v, want 75.00", overall)
	}
}

func TestCalculateOverallScoreEmpty(t *testing.T) {
	scored, overall := CalculateOverallScore(nil)
	if len(scored) != 0 {
		t.Errorf("expected no items, got %d", len(scored))
	}
	if overall != 0 {
		t.Errorf("overall = %v, want 0", overall)
	}
}

func TestMetricScore(t *testing.T) {
	tests := []struct {
		name   string
		metric Metric
		want   float64
	}{
		{"present", Metric{Data: map[string]interface{}{"credibility_score": 72.5}}, 72.5},
		{"absent", Metric{Data: map[string]interface{}{}}, 0},
		{"nil data", Metric{}, 0},
		{"wrong type", Metric{Data: map[string]interface{}{"credibility_score": "high"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.metric.Score(); got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}
