package ranking

import "sort"

// DefaultHeadSize is the size of the relevance head that gets re-sorted by
// budget proximity. Tunable via config; fixed rather than scaled with the
// result count so repeated calls on identical input are deterministic.
const DefaultHeadSize = 7

// Reorder applies the two-phase price-aware pass to a relevance-ranked list
// and returns a pure permutation of it: the first headSize elements are
// re-sorted by ascending distance between price and budget, the remainder
// by ascending raw price. Both sorts are stable, so ties preserve the
// relevance order and the pass is idempotent for a fixed budget.
//
// A product whose price is unknown behaves as if priced exactly at the
// budget: distance zero in the head, budget in the tail. It is never
// excluded.
func Reorder(ranked []ScoredCandidate, budget float64, headSize int) []ScoredCandidate {
	if headSize <= 0 {
		headSize = DefaultHeadSize
	}

	out := make([]ScoredCandidate, len(ranked))
	copy(out, ranked)

	split := headSize
	if split > len(out) {
		split = len(out)
	}
	head, tail := out[:split], out[split:]

	sort.SliceStable(head, func(i, j int) bool {
		di := priceOrBudget(head[i], budget) - budget
		dj := priceOrBudget(head[j], budget) - budget
		if di < 0 {
			di = -di
		}
		if dj < 0 {
			dj = -dj
		}
		return di < dj
	})

	sort.SliceStable(tail, func(i, j int) bool {
		return priceOrBudget(tail[i], budget) < priceOrBudget(tail[j], budget)
	})

	return out
}

func priceOrBudget(sc ScoredCandidate, budget float64) float64 {
	if sc.Candidate.Product.HasPrice {
		return sc.Candidate.Product.Price
	}
	return budget
}
