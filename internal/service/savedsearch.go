package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amansour/techsouk/internal/repository"
)

// ErrSavedSearchNotFound is returned when a saved search does not exist
// for the requesting user.
var ErrSavedSearchNotFound = errors.New("saved search not found")

// ErrNameTaken is returned when a user already has a saved search with
// the same name.
var ErrNameTaken = errors.New("a saved search with this name already exists")

const maxSavedSearchName = 100

// SavedSearchService manages a user's saved searches.
type SavedSearchService struct {
	searches repository.SavedSearchRepository
	logger   *slog.Logger
}

// NewSavedSearchService creates a new saved-search service
func NewSavedSearchService(searches repository.SavedSearchRepository, logger *slog.Logger) *SavedSearchService {
	return &SavedSearchService{searches: searches, logger: logger}
}

// Create saves a named search for the user.
func (s *SavedSearchService) Create(ctx context.Context, userID uuid.UUID, name string, filters repository.SearchFilters, keywords string) (*repository.SavedSearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if len(name) > maxSavedSearchName {
		return nil, fmt.Errorf("%w: name exceeds %d characters", ErrInvalidInput, maxSavedSearchName)
	}

	search := &repository.SavedSearch{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Filters:   filters,
		Keywords:  keywords,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.searches.Create(ctx, search); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrNameTaken
		}
		return nil, fmt.Errorf("failed to create saved search: %w", err)
	}

	s.logger.Info("saved search created",
		slog.String("user_id", userID.String()),
		slog.String("name", name))
	return search, nil
}

// List returns the user's saved searches, favorites first, then most
// recently used, then newest.
func (s *SavedSearchService) List(ctx context.Context, userID uuid.UUID) ([]*repository.SavedSearch, error) {
	searches, err := s.searches.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}
	return searches, nil
}

// Delete removes one of the user's saved searches.
func (s *SavedSearchService) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.searches.Delete(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSavedSearchNotFound
		}
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value.
func (s *SavedSearchService) ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	favorite, err := s.searches.ToggleFavorite(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrSavedSearchNotFound
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}

// Use returns the saved search for re-running and stamps it as used now.
func (s *SavedSearchService) Use(ctx context.Context, userID, id uuid.UUID) (*repository.SavedSearch, error) {
	search, err := s.searches.GetByID(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSavedSearchNotFound
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}

	if err := s.searches.TouchLastUsed(ctx, userID, id); err != nil {
		// Non-fatal: the search is still usable
		s.logger.Warn("failed to stamp saved search",
			slog.String("search_id", id.String()),
			slog.String("error", err.Error()))
	}

	return search, nil
}
