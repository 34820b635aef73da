package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/amansour/techsouk/internal/auth"
	"github.com/amansour/techsouk/internal/catalog"
	"github.com/amansour/techsouk/internal/repository"
	"github.com/amansour/techsouk/internal/service"
	"github.com/amansour/techsouk/internal/session"
)

// memUserRepo is an in-memory repository.UserRepository.
type memUserRepo struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*repository.User
	byEmail  map[string]uuid.UUID
	sessions map[uuid.UUID]*repository.Session
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{
		users:    make(map[uuid.UUID]*repository.User),
		byEmail:  make(map[string]uuid.UUID),
		sessions: make(map[uuid.UUID]*repository.Session),
	}
}

func (r *memUserRepo) Create(_ context.Context, user *repository.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return repository.ErrDuplicate
	}
	u := *user
	r.users[user.ID] = &u
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *user
	return &u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := *r.users[id]
	return &u, nil
}

func (r *memUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	user.LastLogin = &now
	return nil
}

func (r *memUserRepo) CreateSession(_ context.Context, s *repository.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess := *s
	r.sessions[s.ID] = &sess
	return nil
}

func (r *memUserRepo) GetSession(_ context.Context, id uuid.UUID) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s := *sess
	return &s, nil
}

func (r *memUserRepo) DeleteSession(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *memUserRepo) DeleteExpiredSessions(_ context.Context) (int64, error) {
	return 0, nil
}

// memSavedSearchRepo is an in-memory repository.SavedSearchRepository.
type memSavedSearchRepo struct {
	mu       sync.Mutex
	searches map[uuid.UUID]*repository.SavedSearch
}

func newMemSavedSearchRepo() *memSavedSearchRepo {
	return &memSavedSearchRepo{searches: make(map[uuid.UUID]*repository.SavedSearch)}
}

func (r *memSavedSearchRepo) Create(_ context.Context, search *repository.SavedSearch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.searches {
		if s.UserID == search.UserID && s.Name == search.Name {
			return repository.ErrDuplicate
		}
	}
	s := *search
	r.searches[search.ID] = &s
	return nil
}

func (r *memSavedSearchRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*repository.SavedSearch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.searches[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	out := *s
	return &out, nil
}

func (r *memSavedSearchRepo) List(_ context.Context, userID uuid.UUID) ([]*repository.SavedSearch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*repository.SavedSearch
	for _, s := range r.searches {
		if s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memSavedSearchRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.searches[id]
	if !ok || s.UserID != userID {
		return repository.ErrNotFound
	}
	delete(r.searches, id)
	return nil
}

func (r *memSavedSearchRepo) ToggleFavorite(_ context.Context, userID, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.searches[id]
	if !ok || s.UserID != userID {
		return false, repository.ErrNotFound
	}
	s.IsFavorite = !s.IsFavorite
	return s.IsFavorite, nil
}

func (r *memSavedSearchRepo) TouchLastUsed(_ context.Context, userID, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.searches[id]
	if !ok || s.UserID != userID {
		return repository.ErrNotFound
	}
	now := time.Now()
	s.LastUsed = &now
	return nil
}

// staticSource serves a fixed candidate list.
type staticSource struct {
	candidates []catalog.Candidate
}

func (s *staticSource) Fetch(_ context.Context, _ catalog.Filter, _ int) ([]catalog.Candidate, error) {
	return s.candidates, nil
}

// unitEmbedder returns the same unit vector for every input.
type unitEmbedder struct{}

func (unitEmbedder) EmbedText(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (unitEmbedder) EmbedImage(_ context.Context, _ []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (unitEmbedder) EmbedTextBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (unitEmbedder) Dimension() int    { return 2 }
func (unitEmbedder) ModelName() string { return "unit" }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	users := newMemUserRepo()
	sessions := session.NewStore(session.DefaultMaxCompare, time.Hour)
	jwtManager := auth.NewJWTManager(auth.DefaultJWTConfig("test-secret"))
	accounts := service.NewAccountService(users, jwtManager, sessions, logger)

	source := &staticSource{}
	for i := 0; i < 12; i++ {
		source.candidates = append(source.candidates, catalog.Candidate{
			ID:        fmt.Sprintf("p%d", i),
			Embedding: []float32{1, 0},
			Product: catalog.Product{
				Name:     fmt.Sprintf("Product %d", i),
				Price:    float64(100 + i*10),
				HasPrice: true,
				URL:      fmt.Sprintf("https://example.com/p/%d", i),
			},
		})
	}
	search := service.NewSearchService(unitEmbedder{}, source, sessions, service.DefaultSearchConfig(), logger)
	savedSearches := service.NewSavedSearchService(newMemSavedSearchRepo(), logger)

	srv, err := NewHTTPServer(HTTPServerConfig{
		Port:          0,
		Logger:        logger,
		Search:        search,
		Accounts:      accounts,
		SavedSearches: savedSearches,
		Sessions:      sessions,
	})
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}

	ts := httptest.NewServer(srv.GetRouter())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, ts.URL+path, reqBody)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	fields := make(map[string]json.RawMessage)
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		_ = json.Unmarshal(data, &fields)
	}
	return resp, fields
}

func loginAs(t *testing.T, ts *httptest.Server, email string) string {
	t.Helper()
	creds := map[string]string{"email": email, "password": "longenough"}
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/register", "", creds)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.StatusCode)
	}
	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/auth/login", "", creds)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil || token == "" {
		t.Fatalf("login returned no token: %v", err)
	}
	return token
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)

	// Duplicate registration conflicts
	creds := map[string]string{"email": "user@example.com", "password": "longenough"}
	doJSON(t, ts, http.MethodPost, "/v1/auth/register", "", creds)
	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/register", "", creds)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: expected 409, got %d", resp.StatusCode)
	}

	// Short password rejected
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": "other@example.com", "password": "short"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", resp.StatusCode)
	}

	// Wrong password rejected
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/auth/login", "",
		map[string]string{"email": "user@example.com", "password": "wrongpassword"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "me@example.com")

	resp, fields := doJSON(t, ts, http.MethodGet, "/v1/auth/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var email string
	json.Unmarshal(fields["email"], &email)
	if email != "me@example.com" {
		t.Errorf("expected own email, got %q", email)
	}
}

func TestSearchRequiresAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/search", "",
		map[string]any{"query": "product", "budget": 500})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestSearchAndPaging(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "search@example.com")

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/search", token,
		map[string]any{"query": "product", "budget": 500})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: expected 200, got %d", resp.StatusCode)
	}

	var page, totalPages, total int
	json.Unmarshal(fields["page"], &page)
	json.Unmarshal(fields["total_pages"], &totalPages)
	json.Unmarshal(fields["total"], &total)
	if page != 1 || total != 12 || totalPages != 2 {
		t.Errorf("expected page 1 of 2 with 12 results, got page=%d pages=%d total=%d", page, totalPages, total)
	}

	resp, fields = doJSON(t, ts, http.MethodPost, "/v1/search/page", token,
		map[string]string{"direction": "next"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page next: expected 200, got %d", resp.StatusCode)
	}
	json.Unmarshal(fields["page"], &page)
	if page != 2 {
		t.Errorf("expected page 2 after next, got %d", page)
	}

	// Unknown direction is a client error
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/search/page", token,
		map[string]string{"direction": "sideways"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown direction, got %d", resp.StatusCode)
	}
}

func TestPagingWithoutSearch(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "pager@example.com")

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/search/page", token,
		map[string]string{"direction": "next"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 when paging without a search, got %d", resp.StatusCode)
	}
}

func TestUseSavedSearchReexecutes(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "saver@example.com")

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/saved-searches", token, map[string]any{
		"name":    "cheap products",
		"filters": map[string]any{"query": "product", "budget": 500},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var savedID string
	json.Unmarshal(fields["id"], &savedID)

	// Walk an unrelated search to page 2 so the cursor reset is observable.
	doJSON(t, ts, http.MethodPost, "/v1/search", token,
		map[string]any{"query": "product", "budget": 500})
	doJSON(t, ts, http.MethodPost, "/v1/search/page", token,
		map[string]string{"direction": "next"})

	resp, fields = doJSON(t, ts, http.MethodPost, "/v1/saved-searches/"+savedID+"/use", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("use: expected 200, got %d", resp.StatusCode)
	}

	var result struct {
		Page       int `json:"page"`
		TotalPages int `json:"total_pages"`
		Total      int `json:"total"`
	}
	if err := json.Unmarshal(fields["results"], &result); err != nil {
		t.Fatalf("use returned no results payload: %v", err)
	}
	if result.Page != 1 || result.Total != 12 {
		t.Errorf("expected a fresh search on page 1 of 12 results, got page=%d total=%d", result.Page, result.Total)
	}

	// Paging continues from the re-executed search
	resp, fields = doJSON(t, ts, http.MethodPost, "/v1/search/page", token,
		map[string]string{"direction": "next"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("page after use: expected 200, got %d", resp.StatusCode)
	}
	var page int
	json.Unmarshal(fields["page"], &page)
	if page != 2 {
		t.Errorf("expected page 2 after next, got %d", page)
	}
}

func TestCompareEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "compare@example.com")

	product := map[string]any{"product": map[string]any{
		"name": "Product 1", "url": "https://example.com/p/1",
	}}

	resp, fields := doJSON(t, ts, http.MethodPost, "/v1/compare/p1", token, product)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("toggle: expected 200, got %d", resp.StatusCode)
	}
	var count int
	json.Unmarshal(fields["count"], &count)
	if count != 1 {
		t.Errorf("expected 1 product after toggle, got %d", count)
	}

	// Toggling the same ID again removes
	_, fields = doJSON(t, ts, http.MethodPost, "/v1/compare/p1", token, product)
	json.Unmarshal(fields["count"], &count)
	if count != 0 {
		t.Errorf("expected empty list after second toggle, got %d", count)
	}

	// Capacity enforced
	for i := 0; i < session.DefaultMaxCompare; i++ {
		doJSON(t, ts, http.MethodPost, fmt.Sprintf("/v1/compare/c%d", i), token, map[string]any{
			"product": map[string]any{"name": "P", "url": fmt.Sprintf("https://example.com/c/%d", i)},
		})
	}
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/compare/overflow", token, map[string]any{
		"product": map[string]any{"name": "P", "url": "https://example.com/c/overflow"},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 at capacity, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, ts, http.MethodDelete, "/v1/compare", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear: expected 204, got %d", resp.StatusCode)
	}
	_, fields = doJSON(t, ts, http.MethodGet, "/v1/compare", token, nil)
	json.Unmarshal(fields["count"], &count)
	if count != 0 {
		t.Errorf("expected empty list after clear, got %d", count)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	token := loginAs(t, ts, "logout@example.com")

	resp, _ := doJSON(t, ts, http.MethodPost, "/v1/auth/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	// The token signature is still valid but the session row is gone
	resp, _ = doJSON(t, ts, http.MethodPost, "/v1/search", token,
		map[string]any{"query": "product", "budget": 500})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}
