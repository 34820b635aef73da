// Package repository defines domain models and data access interfaces for
// users, sessions, and saved searches.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested entity does not exist
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a uniqueness constraint is violated
	ErrDuplicate = errors.New("already exists")
)

// User represents a registered account
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	PasswordSalt string
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Session represents a server-side login session. Tokens carry the session
// ID; deleting the row revokes the token.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SearchFilters is the opaque filter blob a saved search round-trips. The
// service stores and returns it without interpreting the contents.
type SearchFilters struct {
	Query    string  `json:"query"`
	Budget   float64 `json:"budget"`
	Category string  `json:"category"`
	Color    string  `json:"color"`
}

// SavedSearch represents a user's saved search
type SavedSearch struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Filters    SearchFilters
	Keywords   string
	CreatedAt  time.Time
	LastUsed   *time.Time
	IsFavorite bool
}

// UserRepository defines operations for account and session persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error

	// Session operations
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SavedSearchRepository defines operations for saved-search persistence
type SavedSearchRepository interface {
	Create(ctx context.Context, search *SavedSearch) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*SavedSearch, error)
	// List returns a user's saved searches ordered favorites first, then
	// last-used descending, then created descending.
	List(ctx context.Context, userID uuid.UUID) ([]*SavedSearch, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	ToggleFavorite(ctx context.Context, userID, id uuid.UUID) (bool, error)
	TouchLastUsed(ctx context.Context, userID, id uuid.UUID) error
}
