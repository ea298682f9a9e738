package vectorstore

import (
	"errors"
	"testing"
)

func TestHybridScoreNorm(t *testing.T) {
	dense := []float64{1, 1}
	sparse := &SparseVector{Indices: []int64{0}, Values: []float64{1}}

	scaledDense, scaledSparse, err := HybridScoreNorm(dense, sparse, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, v := range scaledDense {
		if v != 0.5 {
			t.Errorf("dense[%d] = %v, want 0.5", i, v)
		}
	}
	if scaledSparse.Values[0] != 0.5 {
		t.Errorf("sparse value = %v, want 0.5", scaledSparse.Values[0])
	}
	if scaledSparse.Indices[0] != 0 {
		t.Errorf("sparse index = %v, want 0", scaledSparse.Indices[0])
	}

	// Input vectors must not be mutated.
	if dense[0] != 1 || sparse.Values[0] != 1 {
		t.Error("HybridScoreNorm mutated its inputs")
	}
}

func TestHybridScoreNormAlphaExtremes(t *testing.T) {
	dense := []float64{2}
	sparse := &SparseVector{Indices: []int64{3}, Values: []float64{4}}

	d, s, err := HybridScoreNorm(dense, sparse, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d[0] != 2 || s.Values[0] != 0 {
		t.Errorf("alpha=1: dense %v sparse %v, want dense unchanged, sparse zeroed", d[0], s.Values[0])
	}

	d, s, err = HybridScoreNorm(dense, sparse, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d[0] != 0 || s.Values[0] != 4 {
		t.Errorf("alpha=0: dense %v sparse %v, want dense zeroed, sparse unchanged", d[0], s.Values[0])
	}
}

func TestHybridScoreNormErrors(t *testing.T) {
	sparse := &SparseVector{Indices: []int64{0}, Values: []float64{1}}

	tests := []struct {
		name    string
		sparse  *SparseVector
		alpha   float64
		wantErr error
	}{
		{"alpha below range", sparse, -0.1, ErrInvalidAlpha},
		{"alpha above range", sparse, 1.1, ErrInvalidAlpha},
		{"nil sparse", nil, 0.5, ErrMissingSparse},
		{"empty sparse", &SparseVector{}, 0.5, ErrMissingSparse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := HybridScoreNorm([]float64{1}, tt.sparse, tt.alpha)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got err %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMakeID(t *testing.T) {
	meta := map[string]interface{}{
		"file_path": "/tmp/downloads/some topic/My Paper.pdf",
		"page":      3,
	}

	id := makeID(meta, 7, 2)

	if len(id) == 0 {
		t.Fatal("empty id")
	}
	// basename with spaces hyphenated, pdf suffix stripped
	wantPrefix := "My-Paper-3-7-"
	if id[:len(wantPrefix)] != wantPrefix {
		t.Errorf("id = %q, want prefix %q", id, wantPrefix)
	}
	if id[len(id)-2:] != "-2" {
		t.Errorf("id = %q, want batch suffix -2", id)
	}

	// Two calls for the same chunk must not collide.
	if other := makeID(meta, 7, 2); other == id {
		t.Error("ids are not salted")
	}
}
