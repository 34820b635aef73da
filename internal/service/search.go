// Package service implements the application use cases on top of the
// catalog, ranking, embedder, and repository layers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/embedder"
	"github.com/amansour/techsouk/internal/ranking"
	"github.com/amansour/techsouk/internal/session"
)

var (
	// ErrInvalidInput is returned for malformed or missing request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoActiveSearch is returned when paging without a retained search.
	ErrNoActiveSearch = errors.New("no active search for session")
	// ErrEmbedderUnavailable is returned when the embedding service fails.
	ErrEmbedderUnavailable = errors.New("embedding service unavailable")
)

// PageDirection selects which way a paging request moves.
type PageDirection string

const (
	PageNext PageDirection = "next"
	PagePrev PageDirection = "prev"
)

// ResultItem is one ranked product with its retrieval score.
type ResultItem struct {
	Product catalog.Product `json:"product"`
	Score   float64         `json:"score"`
}

// SearchResult is one page of ranked products.
type SearchResult struct {
	Items      []ResultItem `json:"items"`
	Page       int          `json:"page"`
	TotalPages int          `json:"total_pages"`
	Total      int          `json:"total"`
}

// SearchConfig bundles the ranking pipeline tunables.
type SearchConfig struct {
	PageSize   int
	HeadSize   int
	MaxRanked  int
	FetchLimit int
}

// DefaultSearchConfig returns the standard pipeline tunables.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		PageSize:   ranking.DefaultPageSize,
		HeadSize:   ranking.DefaultHeadSize,
		MaxRanked:  100,
		FetchLimit: 500,
	}
}

// SearchService runs the retrieval pipeline: embed, fetch, score, reorder,
// paginate. Paging recomputes the ordering from the session's retained
// query, so results stay deterministic across page moves.
type SearchService struct {
	embedder embedder.Embedder
	source   catalog.Source
	sessions *session.Store
	cfg      SearchConfig
	logger   *slog.Logger
}

// NewSearchService creates a new search service
func NewSearchService(
	emb embedder.Embedder,
	source catalog.Source,
	sessions *session.Store,
	cfg SearchConfig,
	logger *slog.Logger,
) *SearchService {
	return &SearchService{
		embedder: emb,
		source:   source,
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

// SearchText runs a text query through the full pipeline and retains it
// for paging. An empty result set is a valid outcome, not an error.
func (s *SearchService) SearchText(ctx context.Context, sessionID, query string, budget float64, filter catalog.Filter) (*SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	if budget <= 0 {
		return nil, fmt.Errorf("%w: budget must be positive", ErrInvalidInput)
	}

	start := time.Now()
	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}

	spec := ranking.QuerySpec{Vector: vector, Text: query, Budget: budget}
	return s.runAndRetain(ctx, sessionID, spec, capPrice(filter, budget), start)
}

// SearchImage runs an image query through the pipeline. The image carries
// no text, so no lexical boost applies.
func (s *SearchService) SearchImage(ctx context.Context, sessionID string, image []byte, budget float64, filter catalog.Filter) (*SearchResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", ErrInvalidInput)
	}
	if budget <= 0 {
		return nil, fmt.Errorf("%w: budget must be positive", ErrInvalidInput)
	}

	start := time.Now()
	vector, err := s.embedder.EmbedImage(ctx, image)
	if err != nil {
		if errors.Is(err, embedder.ErrImageNotSupported) {
			return nil, fmt.Errorf("%w: image search is not available with the configured embedder", ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: %v", ErrEmbedderUnavailable, err)
	}

	spec := ranking.QuerySpec{Vector: vector, Budget: budget}
	return s.runAndRetain(ctx, sessionID, spec, capPrice(filter, budget), start)
}

// Page moves the session's cursor and recomputes that page of the retained
// search. The first and last pages absorb further moves in their direction.
func (s *SearchService) Page(ctx context.Context, sessionID string, direction PageDirection) (*SearchResult, error) {
	retained, ok := s.sessions.GetSearch(sessionID)
	if !ok {
		return nil, ErrNoActiveSearch
	}

	ordered, err := s.run(ctx, retained.Query, retained.Filter)
	if err != nil {
		return nil, err
	}

	cursor := retained.Cursor
	switch direction {
	case PageNext:
		cursor = cursor.Next(len(ordered), s.cfg.PageSize)
	case PagePrev:
		cursor = cursor.Prev(s.cfg.PageSize)
	default:
		return nil, fmt.Errorf("%w: unknown page direction %q", ErrInvalidInput, direction)
	}
	// The catalog may have shrunk since the search was retained.
	cursor = cursor.Clamp(len(ordered), s.cfg.PageSize)
	s.sessions.SetCursor(sessionID, cursor)

	return s.page(ordered, cursor), nil
}

// runAndRetain executes the pipeline, stores the query for later paging,
// and returns the first page.
func (s *SearchService) runAndRetain(ctx context.Context, sessionID string, spec ranking.QuerySpec, filter catalog.Filter, start time.Time) (*SearchResult, error) {
	ordered, err := s.run(ctx, spec, filter)
	if err != nil {
		return nil, err
	}

	s.sessions.SetSearch(sessionID, session.Search{
		Query:  spec,
		Filter: filter,
		Total:  len(ordered),
	})

	s.logger.Info("search completed",
		slog.String("query", spec.Text),
		slog.Float64("budget", spec.Budget),
		slog.Int("results", len(ordered)),
		slog.Duration("duration", time.Since(start)))

	return s.page(ordered, ranking.PageCursor{}), nil
}

// capPrice defaults the price ceiling to the budget: the store always
// filters on price, and the budget is the cap unless the caller tightens it.
func capPrice(filter catalog.Filter, budget float64) catalog.Filter {
	if filter.MaxPrice <= 0 || filter.MaxPrice > budget {
		filter.MaxPrice = budget
	}
	return filter
}

// run executes fetch, score, and reorder for a query.
func (s *SearchService) run(ctx context.Context, spec ranking.QuerySpec, filter catalog.Filter) ([]ranking.ScoredCandidate, error) {
	candidates, err := s.source.Fetch(ctx, filter, s.cfg.FetchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidates: %w", err)
	}

	ranked := ranking.Rank(spec, candidates, s.cfg.MaxRanked)
	return ranking.Reorder(ranked, spec.Budget, s.cfg.HeadSize), nil
}

func (s *SearchService) page(ordered []ranking.ScoredCandidate, cursor ranking.PageCursor) *SearchResult {
	window, _ := ranking.Page(ordered, cursor.Offset, s.cfg.PageSize)

	items := make([]ResultItem, 0, len(window))
	for _, sc := range window {
		items = append(items, ResultItem{Product: sc.Candidate.Product, Score: sc.Score})
	}

	return &SearchResult{
		Items:      items,
		Page:       cursor.PageNumber(s.cfg.PageSize),
		TotalPages: ranking.TotalPages(len(ordered), s.cfg.PageSize),
		Total:      len(ordered),
	}
}
