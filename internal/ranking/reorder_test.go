package ranking

import (
	"fmt"
	"sort"
	"testing"

	"github.com/amansour/techsouk/internal/catalog"
)

func scoredWithPrices(prices []float64) []ScoredCandidate {
	scored := make([]ScoredCandidate, len(prices))
	for i, p := range prices {
		scored[i] = ScoredCandidate{
			Candidate: catalog.Candidate{
				ID: fmt.Sprintf("p%d", i),
				Product: catalog.Product{
					Name:     fmt.Sprintf("Item %d", i),
					Price:    p,
					HasPrice: true,
				},
			},
			Score: 0.5,
		}
	}
	return scored
}

func pricesOf(scored []ScoredCandidate) []float64 {
	prices := make([]float64, len(scored))
	for i, sc := range scored {
		prices[i] = sc.Candidate.Product.Price
	}
	return prices
}

func TestReorder_HeadByBudgetDistanceTailByPrice(t *testing.T) {
	// 10 candidates with identical relevance, budget 1000, head size 7:
	// head is the first 7 re-sorted by |price-1000|, tail the last 3 by
	// ascending price.
	ranked := scoredWithPrices([]float64{500, 2000, 100, 1500, 300, 2500, 50, 800, 1200, 900})

	out := Reorder(ranked, 1000, 7)

	expected := []float64{500, 1500, 300, 100, 50, 2000, 2500, 800, 900, 1200}
	got := pricesOf(out)
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("position %d: expected price %v, got %v (full order %v)", i, expected[i], got[i], got)
		}
	}
}

func TestReorder_IsPermutation(t *testing.T) {
	ranked := scoredWithPrices([]float64{900, 100, 700, 300, 500, 1100, 50, 60, 70, 80, 90})

	out := Reorder(ranked, 400, 7)

	if len(out) != len(ranked) {
		t.Fatalf("length changed: %d != %d", len(out), len(ranked))
	}
	inIDs := make([]string, len(ranked))
	outIDs := make([]string, len(out))
	for i := range ranked {
		inIDs[i] = ranked[i].Candidate.ID
		outIDs[i] = out[i].Candidate.ID
	}
	sort.Strings(inIDs)
	sort.Strings(outIDs)
	for i := range inIDs {
		if inIDs[i] != outIDs[i] {
			t.Fatalf("element set changed: %v vs %v", inIDs, outIDs)
		}
	}
}

func TestReorder_Idempotent(t *testing.T) {
	ranked := scoredWithPrices([]float64{500, 2000, 100, 1500, 300, 2500, 50, 800, 1200, 900})

	once := Reorder(ranked, 1000, 7)
	twice := Reorder(once, 1000, 7)

	for i := range once {
		if once[i].Candidate.ID != twice[i].Candidate.ID {
			t.Fatalf("reorder not idempotent at position %d: %s != %s",
				i, once[i].Candidate.ID, twice[i].Candidate.ID)
		}
	}
}

func TestReorder_InputUnchanged(t *testing.T) {
	ranked := scoredWithPrices([]float64{2000, 100, 500})
	before := pricesOf(ranked)

	Reorder(ranked, 1000, 7)

	after := pricesOf(ranked)
	for i := range before {
		if before[i] != after[i] {
			t.Fatal("Reorder mutated its input")
		}
	}
}

func TestReorder_ShorterThanHead(t *testing.T) {
	// With fewer elements than the head size the whole list follows the
	// budget-distance rule.
	ranked := scoredWithPrices([]float64{2000, 950, 100})

	out := Reorder(ranked, 1000, 7)

	// Distances: 950->50, 100->900, 2000->1000.
	got := pricesOf(out)
	if got[0] != 950 || got[1] != 100 || got[2] != 2000 {
		t.Fatalf("expected order [950 100 2000], got %v", got)
	}
}

func TestReorder_UnknownPriceActsAsBudget(t *testing.T) {
	ranked := scoredWithPrices([]float64{500, 300})
	noPrice := ScoredCandidate{
		Candidate: catalog.Candidate{
			ID:      "nopriced",
			Product: catalog.Product{Name: "Mystery", HasPrice: false},
		},
		Score: 0.5,
	}
	ranked = append(ranked, noPrice)

	out := Reorder(ranked, 1000, 7)

	// Distance 0 beats 500 and 700; the unpriced product leads.
	if out[0].Candidate.ID != "nopriced" {
		t.Errorf("expected unpriced candidate first, got %s", out[0].Candidate.ID)
	}
	if len(out) != 3 {
		t.Errorf("unpriced candidate must not be excluded, got %d elements", len(out))
	}
}

func TestReorder_TieStability(t *testing.T) {
	// Two products at the same distance from budget keep relevance order.
	ranked := scoredWithPrices([]float64{1100, 900, 500})

	out := Reorder(ranked, 1000, 7)

	got := pricesOf(out)
	if got[0] != 1100 || got[1] != 900 {
		t.Errorf("equal-distance tie broke relevance order: %v", got)
	}
}
