// Package session provides in-memory per-session UI state: the retained
// search, its page cursor, and the comparison list.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/ranking"
)

// ErrCompareFull is returned when the comparison list is at capacity.
var ErrCompareFull = errors.New("comparison list is full")

// DefaultMaxCompare is the comparison list capacity.
const DefaultMaxCompare = 5

// Search is the retained query a session can page through without
// re-issuing it.
type Search struct {
	Query  ranking.QuerySpec
	Filter catalog.Filter
	Cursor ranking.PageCursor
	Total  int
}

// CompareItem is one product on the comparison list, keyed by its catalog
// point ID.
type CompareItem struct {
	ID      string          `json:"id"`
	Product catalog.Product `json:"product"`
}

// state holds everything tracked for one session.
type state struct {
	search    *Search
	compare   []CompareItem
	updatedAt time.Time
}

// Store provides in-memory session state storage.
// For production, consider using Redis for persistence and TTL support.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*state
	maxCompare int
	ttl        time.Duration // Time-to-live for idle sessions
}

// NewStore creates a new session state store.
func NewStore(maxCompare int, ttl time.Duration) *Store {
	s := &Store{
		sessions:   make(map[string]*state),
		maxCompare: maxCompare,
		ttl:        ttl,
	}

	// Start cleanup goroutine
	go s.cleanupLoop()

	return s
}

// DefaultStore creates a store with sensible defaults.
// - Comparison list capped at 5 products
// - 1 hour TTL (state expires after 1 hour of inactivity)
func DefaultStore() *Store {
	return NewStore(DefaultMaxCompare, 1*time.Hour)
}

func (s *Store) get(sessionID string) *state {
	st, exists := s.sessions[sessionID]
	if !exists {
		st = &state{}
		s.sessions[sessionID] = st
	}
	st.updatedAt = time.Now()
	return st
}

// SetSearch retains a new search for the session. The cursor starts at
// the first page.
func (s *Store) SetSearch(sessionID string, search Search) {
	s.mu.Lock()
	defer s.mu.Unlock()

	search.Cursor = ranking.PageCursor{}
	s.get(sessionID).search = &search
}

// GetSearch returns the retained search, or false if the session has none.
func (s *Store) GetSearch(sessionID string) (Search, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.sessions[sessionID]
	if !exists || st.search == nil {
		return Search{}, false
	}
	return *st.search, true
}

// SetCursor moves the retained search's page cursor. No-op if the session
// has no retained search.
func (s *Store) SetCursor(sessionID string, cursor ranking.PageCursor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, exists := s.sessions[sessionID]
	if !exists || st.search == nil {
		return
	}
	st.search.Cursor = cursor
	st.updatedAt = time.Now()
}

// ToggleCompare adds the product to the comparison list, or removes it if
// an item with the same ID is already present. Returns whether the product
// is in the list after the call.
func (s *Store) ToggleCompare(sessionID, productID string, product catalog.Product) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.get(sessionID)
	for i, item := range st.compare {
		if item.ID == productID {
			st.compare = append(st.compare[:i], st.compare[i+1:]...)
			return false, nil
		}
	}
	if len(st.compare) >= s.maxCompare {
		return false, ErrCompareFull
	}
	st.compare = append(st.compare, CompareItem{ID: productID, Product: product})
	return true, nil
}

// CompareList returns a copy of the session's comparison list.
func (s *Store) CompareList(sessionID string) []CompareItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, exists := s.sessions[sessionID]
	if !exists {
		return nil
	}
	list := make([]CompareItem, len(st.compare))
	copy(list, st.compare)
	return list
}

// ClearCompare empties the session's comparison list.
func (s *Store) ClearCompare(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, exists := s.sessions[sessionID]; exists {
		st.compare = nil
		st.updatedAt = time.Now()
	}
}

// ClearSession removes all state for a session.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// cleanupLoop periodically removes idle sessions.
func (s *Store) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.cleanup()
	}
}

func (s *Store) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for id, st := range s.sessions {
		if now.Sub(st.updatedAt) > s.ttl {
			delete(s.sessions, id)
		}
	}
}
