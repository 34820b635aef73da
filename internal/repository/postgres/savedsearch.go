package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/amansour/techsouk/internal/repository"
)

// SavedSearchRepo implements repository.SavedSearchRepository
type SavedSearchRepo struct {
	db *DB
}

// NewSavedSearchRepo creates a new saved-search repository
func NewSavedSearchRepo(db *DB) *SavedSearchRepo {
	return &SavedSearchRepo{db: db}
}

// Create creates a new saved search
func (r *SavedSearchRepo) Create(ctx context.Context, search *repository.SavedSearch) error {
	filtersJSON, err := json.Marshal(search.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	query := `
		INSERT INTO saved_searches (id, user_id, name, filters, keywords, created_at, is_favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		search.ID, search.UserID, search.Name, filtersJSON,
		search.Keywords, search.CreatedAt, search.IsFavorite)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create saved search: %w", err)
	}
	return nil
}

// GetByID retrieves a saved search by ID, scoped to its owner
func (r *SavedSearchRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*repository.SavedSearch, error) {
	query := `
		SELECT id, user_id, name, filters, keywords, created_at, last_used, is_favorite
		FROM saved_searches
		WHERE user_id = $1 AND id = $2
	`
	var search repository.SavedSearch
	var filtersJSON []byte
	err := r.db.Pool.QueryRow(ctx, query, userID, id).Scan(
		&search.ID, &search.UserID, &search.Name, &filtersJSON,
		&search.Keywords, &search.CreatedAt, &search.LastUsed, &search.IsFavorite,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get saved search: %w", err)
	}
	if err := json.Unmarshal(filtersJSON, &search.Filters); err != nil {
		return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
	}
	return &search, nil
}

// List retrieves a user's saved searches, favorites first, then most
// recently used, then newest.
func (r *SavedSearchRepo) List(ctx context.Context, userID uuid.UUID) ([]*repository.SavedSearch, error) {
	query := `
		SELECT id, user_id, name, filters, keywords, created_at, last_used, is_favorite
		FROM saved_searches
		WHERE user_id = $1
		ORDER BY is_favorite DESC, last_used DESC NULLS LAST, created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved searches: %w", err)
	}
	defer rows.Close()

	var searches []*repository.SavedSearch
	for rows.Next() {
		var search repository.SavedSearch
		var filtersJSON []byte
		if err := rows.Scan(&search.ID, &search.UserID, &search.Name, &filtersJSON,
			&search.Keywords, &search.CreatedAt, &search.LastUsed, &search.IsFavorite); err != nil {
			return nil, fmt.Errorf("failed to scan saved search: %w", err)
		}
		if err := json.Unmarshal(filtersJSON, &search.Filters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filters: %w", err)
		}
		searches = append(searches, &search)
	}

	return searches, nil
}

// Delete deletes a saved search, scoped to its owner
func (r *SavedSearchRepo) Delete(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM saved_searches WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to delete saved search: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ToggleFavorite flips the favorite flag and returns the new value
func (r *SavedSearchRepo) ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	query := `
		UPDATE saved_searches
		SET is_favorite = NOT is_favorite
		WHERE user_id = $1 AND id = $2
		RETURNING is_favorite
	`
	var favorite bool
	err := r.db.Pool.QueryRow(ctx, query, userID, id).Scan(&favorite)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, fmt.Errorf("failed to toggle favorite: %w", err)
	}
	return favorite, nil
}

// TouchLastUsed stamps the saved search as used now
func (r *SavedSearchRepo) TouchLastUsed(ctx context.Context, userID, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx,
		`UPDATE saved_searches SET last_used = NOW() WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("failed to touch saved search: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure SavedSearchRepo implements the interface
var _ repository.SavedSearchRepository = (*SavedSearchRepo)(nil)
