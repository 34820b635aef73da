package ranking

import (
	"errors"
	"math"
	"testing"

	"github.com/amansour/techsouk/internal/catalog"
)

func mkCandidate(id, name, brand string, price float64, embedding []float32) catalog.Candidate {
	return catalog.Candidate{
		ID:        id,
		Embedding: embedding,
		Product: catalog.Product{
			Name:     name,
			Brand:    brand,
			Price:    price,
			HasPrice: true,
		},
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"scaled", []float32{1, 1}, []float32{5, 5}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Cosine(tt.a, tt.b)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Cosine() = %f, expected %f", got, tt.expected)
			}
			if got < -1.0-1e-9 || got > 1.0+1e-9 {
				t.Errorf("Cosine() = %f outside [-1, 1]", got)
			}
		})
	}
}

func TestCosine_ZeroVector(t *testing.T) {
	_, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("expected ErrZeroVector, got %v", err)
	}

	_, err = Cosine([]float32{1, 2, 3}, []float32{0, 0, 0})
	if !errors.Is(err, ErrZeroVector) {
		t.Errorf("expected ErrZeroVector, got %v", err)
	}
}

func TestCosine_DimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestScore_LexicalBoost(t *testing.T) {
	// Identical vectors fix similarity at 1.0 so the boost is observable.
	vec := []float32{1, 0, 0}
	query := QuerySpec{Vector: vec, Text: "iphone 15"}

	tests := []struct {
		name     string
		product  catalog.Candidate
		expected float64
	}{
		{
			"full name substring plus both words",
			mkCandidate("a", "Apple iPhone 15 Pro", "Apple", 3000, vec),
			1.0 + 0.30 + 0.15, // substring + 2/2 words
		},
		{
			"brand substring only",
			mkCandidate("b", "Galaxy S23", "iPhone 15 Reseller", 1800, vec),
			1.0 + 0.20,
		},
		{
			"partial word match",
			mkCandidate("c", "Coque iphone silicone", "Generic", 30, vec),
			1.0 + 0.15*0.5, // 1 of 2 words, no full substring
		},
		{
			"no match",
			mkCandidate("d", "Galaxy S23", "Samsung", 1800, vec),
			1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(query, tt.product)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Score() = %f, expected %f", got, tt.expected)
			}
		})
	}
}

func TestScore_EmptyTextMeansNoBoost(t *testing.T) {
	vec := []float32{1, 0}
	c := mkCandidate("a", "iPhone 15", "Apple", 3000, vec)

	got, err := Score(QuerySpec{Vector: vec, Text: ""}, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("image query score = %f, expected pure similarity 1.0", got)
	}
}

func TestScore_BoostMonotonic(t *testing.T) {
	// Adding a matching word to an otherwise-matching name never decreases
	// the boost term.
	vec := []float32{1, 0}
	base := mkCandidate("a", "Galaxy ultra", "Samsung", 1800, vec)
	extended := mkCandidate("b", "Galaxy ultra 5g", "Samsung", 1800, vec)

	query := QuerySpec{Vector: vec, Text: "galaxy 5g"}

	scoreBase, err := Score(query, base)
	if err != nil {
		t.Fatal(err)
	}
	scoreExtended, err := Score(query, extended)
	if err != nil {
		t.Fatal(err)
	}
	if scoreExtended < scoreBase {
		t.Errorf("boost not monotonic: %f < %f", scoreExtended, scoreBase)
	}
}

func TestRank_NameBoostBeatsSimilarity(t *testing.T) {
	// Both candidates are equally similar to the query vector; the
	// name-substring boost must put the iPhone first despite its price
	// exceeding the budget by more.
	vec := []float32{1, 1, 0}
	candidates := []catalog.Candidate{
		mkCandidate("galaxy", "Galaxy S23", "Samsung", 1800, vec),
		mkCandidate("iphone", "iPhone 15", "Apple", 3000, vec),
	}

	ranked := Rank(QuerySpec{Vector: vec, Text: "iphone", Budget: 2000}, candidates, 100)

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Candidate.ID != "iphone" {
		t.Errorf("expected iphone ranked first, got %s", ranked[0].Candidate.ID)
	}
}

func TestRank_TiesKeepFetchOrder(t *testing.T) {
	vec := []float32{0, 1}
	candidates := []catalog.Candidate{
		mkCandidate("first", "Item A", "X", 100, vec),
		mkCandidate("second", "Item B", "X", 200, vec),
		mkCandidate("third", "Item C", "X", 300, vec),
	}

	ranked := Rank(QuerySpec{Vector: vec}, candidates, 100)

	for i, id := range []string{"first", "second", "third"} {
		if ranked[i].Candidate.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, ranked[i].Candidate.ID)
		}
	}
}

func TestRank_TruncatesAfterSorting(t *testing.T) {
	vec := []float32{1, 0}
	candidates := make([]catalog.Candidate, 150)
	for i := range candidates {
		candidates[i] = mkCandidate("c", "Item", "X", 100, vec)
	}
	// A late candidate with a lexical boost must survive the cut.
	candidates[149] = mkCandidate("boosted", "special widget", "X", 100, vec)

	ranked := Rank(QuerySpec{Vector: vec, Text: "special widget"}, candidates, 100)

	if len(ranked) != 100 {
		t.Fatalf("expected 100 ranked candidates, got %d", len(ranked))
	}
	if ranked[0].Candidate.ID != "boosted" {
		t.Errorf("expected boosted candidate first, got %s", ranked[0].Candidate.ID)
	}
}

func TestRank_ExcludesUnscoreable(t *testing.T) {
	vec := []float32{1, 0}
	candidates := []catalog.Candidate{
		mkCandidate("zero", "Item", "X", 100, []float32{0, 0}),
		mkCandidate("short", "Item", "X", 100, []float32{1}),
		mkCandidate("ok", "Item", "X", 100, vec),
	}

	ranked := Rank(QuerySpec{Vector: vec}, candidates, 100)

	if len(ranked) != 1 {
		t.Fatalf("expected 1 ranked candidate, got %d", len(ranked))
	}
	if ranked[0].Candidate.ID != "ok" {
		t.Errorf("expected only scoreable candidate, got %s", ranked[0].Candidate.ID)
	}
}
