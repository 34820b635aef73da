// Package ranking implements the retrieval ranking and result-ordering
// pipeline: blended vector+lexical scoring, price-aware reordering, and
// deterministic pagination. All functions are pure; callers own any state.
package ranking

import (
	"errors"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/amansour/techsouk/internal/catalog"
)

var (
	// ErrZeroVector is returned when either vector has zero norm.
	ErrZeroVector = errors.New("zero-norm vector")
	// ErrDimensionMismatch is returned when the vectors differ in length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Lexical boost weights, layered on top of cosine similarity.
const (
	nameMatchBoost  = 0.30
	brandMatchBoost = 0.20
	wordMatchBoost  = 0.15
)

// QuerySpec describes one search invocation. Text is present only for
// text-originated queries; an empty Text means lexical boosting contributes
// zero. Scores computed from one QuerySpec are never comparable to scores
// from another.
type QuerySpec struct {
	Vector []float32
	Text   string
	Budget float64
}

// ScoredCandidate pairs a candidate with its relevance score. The score is
// ordinal only: similarity in [-1,1] plus unbounded boost terms, unclipped.
type ScoredCandidate struct {
	Candidate catalog.Candidate
	Score     float64
}

// Score computes the blended relevance of a candidate against a query:
// cosine similarity plus lexical boost. It returns ErrZeroVector or
// ErrDimensionMismatch for unscoreable embeddings; callers exclude such
// candidates rather than failing the ranking pass.
func Score(query QuerySpec, c catalog.Candidate) (float64, error) {
	similarity, err := Cosine(query.Vector, c.Embedding)
	if err != nil {
		return 0, err
	}
	return similarity + lexicalBoost(query.Text, c.Product), nil
}

// Cosine returns the cosine similarity between two vectors, in [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroVector
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// lexicalBoost computes the additive text-match boost. Terms stack:
// +0.30 for the full query as a substring of the name, +0.20 for the brand,
// and up to +0.15 proportional to the fraction of query words appearing as
// whole words in the name.
func lexicalBoost(text string, p catalog.Product) float64 {
	query := strings.ToLower(strings.TrimSpace(text))
	if query == "" {
		return 0
	}

	name := strings.ToLower(p.Name)
	brand := strings.ToLower(p.Brand)

	var boost float64
	if strings.Contains(name, query) {
		boost += nameMatchBoost
	}
	if strings.Contains(brand, query) {
		boost += brandMatchBoost
	}

	queryWords := strings.Fields(query)
	if len(queryWords) > 0 {
		nameWords := make(map[string]struct{})
		for _, w := range strings.Fields(name) {
			nameWords[w] = struct{}{}
		}
		matching := 0
		for _, w := range queryWords {
			if _, ok := nameWords[w]; ok {
				matching++
			}
		}
		boost += wordMatchBoost * float64(matching) / float64(len(queryWords))
	}

	return boost
}

// Rank scores all candidates against the query, sorts them by score
// descending (ties keep fetch order, so pagination is deterministic across
// identical inputs), and truncates to maxRanked. Unscoreable candidates are
// skipped and logged, never fatal to the pass.
func Rank(query QuerySpec, candidates []catalog.Candidate, maxRanked int) []ScoredCandidate {
	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		score, err := Score(query, c)
		if err != nil {
			slog.Warn("excluding unscoreable candidate", "id", c.ID, "error", err)
			continue
		}
		scored = append(scored, ScoredCandidate{Candidate: c, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	// Truncation bounds downstream work and happens strictly after sorting.
	if maxRanked > 0 && len(scored) > maxRanked {
		scored = scored[:maxRanked]
	}

	return scored
}
